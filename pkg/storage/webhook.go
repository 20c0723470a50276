package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// defaultWebhookMaxAgeSeconds is the replay window applied when options
// leave MaxAgeSeconds at zero.
const defaultWebhookMaxAgeSeconds = 300

// webhookFutureSkewSeconds tolerates clock drift between the sender and
// this host; timestamps further in the future are rejected.
const webhookFutureSkewSeconds = 60

// ParseSignatureHeader decomposes an X-Pierre-Signature header of the form
// "t=<unix>,sha256=<hex>". Unknown pairs are ignored; both t and sha256
// must be present or the header is rejected as a whole.
func ParseSignatureHeader(header string) *ParsedWebhookSignature {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil
	}

	var parsed ParsedWebhookSignature
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			parsed.Timestamp = value
		case "sha256":
			parsed.Signature = value
		}
	}

	if parsed.Timestamp == "" || parsed.Signature == "" {
		return nil
	}
	return &parsed
}

// ValidateWebhookSignature checks the HMAC signature and timestamp of a raw
// webhook body. Failures come back as a result value; only the caller knows
// whether an invalid delivery is worth logging or an attack worth counting.
//
// The signed message is "<timestamp>.<body>" over the exact bytes received.
// Any re-serialization of the body before validation will break the MAC.
func ValidateWebhookSignature(payload []byte, signatureHeader string, secret string, options WebhookValidationOptions) WebhookValidationResult {
	if strings.TrimSpace(secret) == "" {
		return WebhookValidationResult{Error: "empty secret is not allowed"}
	}

	parsed := ParseSignatureHeader(signatureHeader)
	if parsed == nil {
		return WebhookValidationResult{Error: "invalid signature header format"}
	}

	timestamp, err := strconv.ParseInt(parsed.Timestamp, 10, 64)
	if err != nil {
		return WebhookValidationResult{Error: "invalid timestamp in signature"}
	}

	maxAge := options.MaxAgeSeconds
	if maxAge == 0 {
		maxAge = defaultWebhookMaxAgeSeconds
	}
	if maxAge > 0 {
		age := time.Now().Unix() - timestamp
		if age > int64(maxAge) {
			return WebhookValidationResult{
				Error:     "webhook timestamp too old (" + strconv.FormatInt(age, 10) + " seconds)",
				Timestamp: timestamp,
			}
		}
		if age < -webhookFutureSkewSeconds {
			return WebhookValidationResult{
				Error:     "webhook timestamp is in the future",
				Timestamp: timestamp,
			}
		}
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(parsed.Timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(parsed.Signature)
	if err != nil || len(provided) != len(expected) {
		return WebhookValidationResult{Error: "invalid signature", Timestamp: timestamp}
	}
	if !hmac.Equal(expected, provided) {
		return WebhookValidationResult{Error: "invalid signature", Timestamp: timestamp}
	}

	return WebhookValidationResult{Valid: true, Timestamp: timestamp}
}

// ValidateWebhook validates the delivery headers and signature, then parses
// the payload into a typed event. Header lookup is case-insensitive.
func ValidateWebhook(payload []byte, headers http.Header, secret string, options WebhookValidationOptions) WebhookValidation {
	signatureHeader := headers.Get("X-Pierre-Signature")
	if signatureHeader == "" {
		return WebhookValidation{WebhookValidationResult: WebhookValidationResult{
			Error: "missing or invalid X-Pierre-Signature header",
		}}
	}

	eventType := headers.Get("X-Pierre-Event")
	if eventType == "" {
		return WebhookValidation{WebhookValidationResult: WebhookValidationResult{
			Error: "missing or invalid X-Pierre-Event header",
		}}
	}

	validation := ValidateWebhookSignature(payload, signatureHeader, secret, options)
	if !validation.Valid {
		return WebhookValidation{WebhookValidationResult: validation}
	}
	validation.EventType = eventType

	if !json.Valid(payload) {
		validation.Valid = false
		validation.Error = "invalid JSON payload"
		return WebhookValidation{WebhookValidationResult: validation}
	}

	converted, err := convertWebhookPayload(eventType, payload)
	if err != nil {
		validation.Valid = false
		validation.Error = err.Error()
		return WebhookValidation{WebhookValidationResult: validation}
	}

	return WebhookValidation{WebhookValidationResult: validation, Payload: &converted}
}

type rawWebhookPushEvent struct {
	Repository struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"repository"`
	Ref        string `json:"ref"`
	Before     string `json:"before"`
	After      string `json:"after"`
	CustomerID string `json:"customer_id"`
	PushedAt   string `json:"pushed_at"`
}

// convertWebhookPayload maps a verified body onto the schema for its event
// type. The type set is open; types without a schema pass through raw.
func convertWebhookPayload(eventType string, payload []byte) (WebhookEventPayload, error) {
	if eventType != "push" {
		return WebhookEventPayload{Unknown: &WebhookUnknownEvent{Type: eventType, Raw: payload}}, nil
	}

	var raw rawWebhookPushEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return WebhookEventPayload{}, err
	}
	if raw.Repository.ID == "" || raw.Repository.URL == "" ||
		raw.Ref == "" || raw.Before == "" || raw.After == "" ||
		raw.CustomerID == "" || raw.PushedAt == "" {
		return WebhookEventPayload{}, errors.New("invalid push payload")
	}

	return WebhookEventPayload{Push: &WebhookPushEvent{
		Type:        "push",
		Repository:  WebhookRepository{ID: raw.Repository.ID, URL: raw.Repository.URL},
		Ref:         raw.Ref,
		Before:      raw.Before,
		After:       raw.After,
		CustomerID:  raw.CustomerID,
		PushedAt:    parseEventTime(raw.PushedAt),
		RawPushedAt: raw.PushedAt,
	}}, nil
}

// parseEventTime parses the timestamps webhooks carry. A value that fits
// neither RFC 3339 form yields the zero time; RawPushedAt keeps the original
// string for callers that need it.
func parseEventTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return parsed
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed
	}
	return time.Time{}
}
