package storage

import (
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"
)

const testWebhookSecret = "test_webhook_secret_key_123"

var testPushPayload = []byte(`{"repository":{"id":"repo_abc123","url":"https://git.example.com/org/repo"},"ref":"refs/heads/main","before":"abc123","after":"def456","customer_id":"cust_123","pushed_at":"2024-01-20T10:30:00Z"}`)

func TestParseSignatureHeader(t *testing.T) {
	t.Run("well formed", func(t *testing.T) {
		result := ParseSignatureHeader("t=1234567890,sha256=abcdef123456")
		if result == nil || result.Timestamp != "1234567890" || result.Signature != "abcdef123456" {
			t.Fatalf("unexpected parse: %+v", result)
		}
	})

	t.Run("spaces between pairs", func(t *testing.T) {
		result := ParseSignatureHeader("t=1234567890, sha256=abcdef123456")
		if result == nil || result.Signature != "abcdef123456" {
			t.Fatalf("expected parse with spaces")
		}
	})

	t.Run("unknown pairs ignored", func(t *testing.T) {
		result := ParseSignatureHeader("t=1234567890,sha256=abcdef123456,v1=ignored")
		if result == nil || result.Signature != "abcdef123456" {
			t.Fatalf("expected parse with extra fields")
		}
	})

	t.Run("rejects incomplete headers", func(t *testing.T) {
		for _, header := range []string{"", "invalid", "t=123", "sha256=abc", "timestamp=123,signature=abc"} {
			if ParseSignatureHeader(header) != nil {
				t.Errorf("expected nil for %q", header)
			}
		}
	})
}

func TestValidateWebhookSignature(t *testing.T) {
	t.Run("valid signature", func(t *testing.T) {
		stamp := time.Now().Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		result := ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{})
		if !result.Valid || result.Timestamp != stamp {
			t.Fatalf("expected valid signature: %+v", result)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		stamp := time.Now().Unix()
		header := buildSignatureHeader(t, testPushPayload, "wrong_secret", stamp)
		result := ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid signature" {
			t.Fatalf("expected invalid signature: %+v", result)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		stamp := time.Now().Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		modified := []byte(strings.ReplaceAll(string(testPushPayload), "main", "master"))
		if ValidateWebhookSignature(modified, header, testWebhookSecret, WebhookValidationOptions{}).Valid {
			t.Fatalf("expected tampered payload to fail")
		}
		if ValidateWebhookSignature(append(append([]byte{}, testPushPayload...), ' '), header, testWebhookSecret, WebhookValidationOptions{}).Valid {
			t.Fatalf("expected whitespace-extended payload to fail")
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		stamp := time.Now().Add(-301 * time.Second).Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		result := ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || !strings.Contains(result.Error, "webhook timestamp too old") {
			t.Fatalf("expected old timestamp error: %+v", result)
		}
		if result.Timestamp != stamp {
			t.Errorf("expected parsed timestamp on failure")
		}
	})

	t.Run("future timestamp", func(t *testing.T) {
		stamp := time.Now().Add(120 * time.Second).Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		result := ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "webhook timestamp is in the future" {
			t.Fatalf("expected future timestamp error: %+v", result)
		}
	})

	t.Run("small future skew tolerated", func(t *testing.T) {
		stamp := time.Now().Add(30 * time.Second).Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		if result := ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{}); !result.Valid {
			t.Fatalf("expected small skew to validate: %+v", result)
		}
	})

	t.Run("custom max age", func(t *testing.T) {
		stamp := time.Now().Add(-60 * time.Second).Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		if ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{MaxAgeSeconds: 30}).Valid {
			t.Fatalf("expected signature to be too old with tight window")
		}
		if !ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{MaxAgeSeconds: 120}).Valid {
			t.Fatalf("expected signature to be valid with relaxed window")
		}
	})

	t.Run("timestamp checks disabled", func(t *testing.T) {
		stamp := time.Now().Add(-24 * time.Hour).Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)
		if !ValidateWebhookSignature(testPushPayload, header, testWebhookSecret, WebhookValidationOptions{MaxAgeSeconds: -1}).Valid {
			t.Fatalf("expected negative max age to skip timestamp checks")
		}
	})

	t.Run("malformed inputs", func(t *testing.T) {
		stamp := time.Now().Unix()
		header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)

		result := ValidateWebhookSignature(testPushPayload, header, "", WebhookValidationOptions{})
		if result.Valid || result.Error != "empty secret is not allowed" {
			t.Errorf("expected empty secret error: %+v", result)
		}

		result = ValidateWebhookSignature(testPushPayload, "invalid_header", testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid signature header format" {
			t.Errorf("expected invalid header format error: %+v", result)
		}

		result = ValidateWebhookSignature(testPushPayload, "t=not_a_number,sha256=abcdef", testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid timestamp in signature" {
			t.Errorf("expected invalid timestamp error: %+v", result)
		}

		nonHex := "t=" + strconv.FormatInt(time.Now().Unix(), 10) + ",sha256=zzzz"
		result = ValidateWebhookSignature(testPushPayload, nonHex, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid signature" {
			t.Errorf("expected non-hex signature to fail: %+v", result)
		}
	})
}

func TestValidateWebhook(t *testing.T) {
	stamp := time.Now().Unix()
	header := buildSignatureHeader(t, testPushPayload, testWebhookSecret, stamp)

	t.Run("valid push delivery", func(t *testing.T) {
		headers := http.Header{}
		headers.Set("X-Pierre-Signature", header)
		headers.Set("X-Pierre-Event", "push")

		result := ValidateWebhook(testPushPayload, headers, testWebhookSecret, WebhookValidationOptions{})
		if !result.Valid || result.EventType != "push" {
			t.Fatalf("expected valid webhook: %+v", result.WebhookValidationResult)
		}
		if result.Payload == nil || result.Payload.Push == nil {
			t.Fatalf("expected push payload")
		}
		push := result.Payload.Push
		if push.Repository.ID != "repo_abc123" || push.CustomerID != "cust_123" || push.Ref != "refs/heads/main" {
			t.Errorf("unexpected push payload: %+v", push)
		}
		if push.PushedAt.IsZero() || push.RawPushedAt != "2024-01-20T10:30:00Z" {
			t.Errorf("unexpected pushed_at handling: %+v", push)
		}
	})

	t.Run("missing headers", func(t *testing.T) {
		missingSig := http.Header{}
		missingSig.Set("X-Pierre-Event", "push")
		result := ValidateWebhook(testPushPayload, missingSig, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "missing or invalid X-Pierre-Signature header" {
			t.Errorf("expected missing signature error: %+v", result.WebhookValidationResult)
		}

		missingEvent := http.Header{}
		missingEvent.Set("X-Pierre-Signature", header)
		result = ValidateWebhook(testPushPayload, missingEvent, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "missing or invalid X-Pierre-Event header" {
			t.Errorf("expected missing event error: %+v", result.WebhookValidationResult)
		}
	})

	t.Run("invalid json body", func(t *testing.T) {
		invalidJSON := []byte("not valid json")
		badHeader := buildSignatureHeader(t, invalidJSON, testWebhookSecret, stamp)
		headers := http.Header{}
		headers.Set("X-Pierre-Signature", badHeader)
		headers.Set("X-Pierre-Event", "push")

		result := ValidateWebhook(invalidJSON, headers, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid JSON payload" {
			t.Errorf("expected invalid JSON payload error: %+v", result.WebhookValidationResult)
		}
	})

	t.Run("push payload missing fields", func(t *testing.T) {
		partial := []byte(`{"repository":{"id":"repo_abc123","url":"https://git.example.com/org/repo"},"ref":"refs/heads/main"}`)
		partialHeader := buildSignatureHeader(t, partial, testWebhookSecret, stamp)
		headers := http.Header{}
		headers.Set("X-Pierre-Signature", partialHeader)
		headers.Set("X-Pierre-Event", "push")

		result := ValidateWebhook(partial, headers, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid push payload" {
			t.Errorf("expected invalid push payload error: %+v", result.WebhookValidationResult)
		}
	})

	t.Run("unknown event passes through", func(t *testing.T) {
		body := []byte(`{"anything": true}`)
		unknownHeader := buildSignatureHeader(t, body, testWebhookSecret, stamp)
		headers := http.Header{}
		headers.Set("X-Pierre-Signature", unknownHeader)
		headers.Set("X-Pierre-Event", "repository.deleted")

		result := ValidateWebhook(body, headers, testWebhookSecret, WebhookValidationOptions{})
		if !result.Valid || result.EventType != "repository.deleted" {
			t.Fatalf("expected unknown event to validate: %+v", result.WebhookValidationResult)
		}
		if result.Payload == nil || result.Payload.Unknown == nil || result.Payload.Unknown.Type != "repository.deleted" {
			t.Errorf("expected unknown payload: %+v", result.Payload)
		}
	})

	t.Run("invalid signature short circuits parsing", func(t *testing.T) {
		wrongSig := buildSignatureHeader(t, testPushPayload, "wrong_secret", stamp)
		headers := http.Header{}
		headers.Set("X-Pierre-Signature", wrongSig)
		headers.Set("X-Pierre-Event", "push")

		result := ValidateWebhook(testPushPayload, headers, testWebhookSecret, WebhookValidationOptions{})
		if result.Valid || result.Error != "invalid signature" {
			t.Errorf("expected invalid signature: %+v", result.WebhookValidationResult)
		}
		if result.Payload != nil {
			t.Errorf("payload must not be parsed for invalid deliveries")
		}
	})
}

func TestParseEventTime(t *testing.T) {
	if parseEventTime("2024-01-20T10:30:00.123456789Z").IsZero() {
		t.Errorf("expected RFC3339Nano to parse")
	}
	if parseEventTime("2024-01-20T10:30:00Z").IsZero() {
		t.Errorf("expected RFC3339 to parse")
	}
	if !parseEventTime("January 20, 2024").IsZero() {
		t.Errorf("expected unparseable time to be zero")
	}
	if !parseEventTime("").IsZero() {
		t.Errorf("expected empty time to be zero")
	}
}
