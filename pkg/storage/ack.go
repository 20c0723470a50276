package storage

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// commitPackAck is the strict acknowledgement schema for 2xx responses.
type commitPackAck struct {
	Commit struct {
		CommitSHA    string `json:"commit_sha"`
		TreeSHA      string `json:"tree_sha"`
		TargetBranch string `json:"target_branch"`
		PackBytes    int    `json:"pack_bytes"`
		BlobCount    int    `json:"blob_count"`
	} `json:"commit"`
	Result struct {
		Branch  string `json:"branch"`
		OldSHA  string `json:"old_sha"`
		NewSHA  string `json:"new_sha"`
		Success bool   `json:"success"`
		Status  string `json:"status"`
		Message string `json:"message,omitempty"`
	} `json:"result"`
}

// commitPackResponse is the loose shape tried against error bodies; every
// field defaults independently.
type commitPackResponse struct {
	Result struct {
		Branch  string `json:"branch"`
		OldSHA  string `json:"old_sha"`
		NewSHA  string `json:"new_sha"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"result"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// translateCommitResponse converts a raw commit-pack (or diff-commit)
// response into a CommitResult or a typed error. label names the operation
// in fallback messages.
func translateCommitResponse(resp *http.Response, label string) (CommitResult, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fallback := label + " request failed (" + strconv.Itoa(resp.StatusCode) + " " + resp.Status + ")"
		message, statusLabel, refUpdate, err := parseCommitPackError(resp, fallback)
		if err != nil {
			return CommitResult{}, err
		}
		return CommitResult{}, newRefUpdateError(message, statusLabel, refUpdate)
	}

	var ack commitPackAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return CommitResult{}, &SchemaError{
			Message: label + " response did not match the acknowledgement schema",
			Err:     err,
		}
	}

	return buildCommitResult(ack)
}

// buildCommitResult converts a parsed ack into a result or a ref-update
// error. The RefUpdate is carried even on failure; old/new SHAs still tell
// the caller what the server saw.
func buildCommitResult(ack commitPackAck) (CommitResult, error) {
	refUpdate := RefUpdate{
		Branch: ack.Result.Branch,
		OldSHA: ack.Result.OldSHA,
		NewSHA: ack.Result.NewSHA,
	}

	if !ack.Result.Success {
		message := ack.Result.Message
		if strings.TrimSpace(message) == "" {
			message = "commit failed with status " + ack.Result.Status
		}
		return CommitResult{}, newRefUpdateError(message, ack.Result.Status, &refUpdate)
	}

	return CommitResult{
		CommitSHA:    ack.Commit.CommitSHA,
		TreeSHA:      ack.Commit.TreeSHA,
		TargetBranch: ack.Commit.TargetBranch,
		PackBytes:    ack.Commit.PackBytes,
		BlobCount:    ack.Commit.BlobCount,
		RefUpdate:    refUpdate,
	}, nil
}

// parseCommitPackError extracts a message, status label, and partial ref
// update from a failure body. The service emits typed, loosely-typed, or
// plain-text error bodies depending on failure class, so parsers are tried
// in order until one yields a message.
func parseCommitPackError(resp *http.Response, fallbackMessage string) (string, string, *RefUpdate, error) {
	body, err := readAll(resp)
	if err != nil {
		return "", "", nil, err
	}

	statusLabel := defaultStatusLabel(resp.StatusCode)
	var refUpdate *RefUpdate
	message := ""

	var parsed commitPackResponse
	if err := json.Unmarshal(body, &parsed); err == nil {
		if strings.TrimSpace(parsed.Result.Status) != "" {
			statusLabel = strings.TrimSpace(parsed.Result.Status)
		}
		message = strings.TrimSpace(parsed.Result.Message)
		refUpdate = partialRefUpdate(parsed.Result.Branch, parsed.Result.OldSHA, parsed.Result.NewSHA)
	}

	if message == "" {
		message = parseErrorEnvelope(body)
	}
	if message == "" {
		message = parseJSONString(body)
	}
	if message == "" {
		message = strings.TrimSpace(string(body))
	}
	if message == "" {
		message = fallbackMessage
	}

	return message, statusLabel, refUpdate, nil
}

// parseErrorEnvelope extracts the message from a generic {"error": "..."}
// body.
func parseErrorEnvelope(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ""
	}
	return strings.TrimSpace(env.Error)
}

// parseJSONString extracts the body when it is itself a bare JSON string.
func parseJSONString(body []byte) string {
	var text string
	if err := json.Unmarshal(body, &text); err != nil {
		return ""
	}
	return strings.TrimSpace(text)
}

// defaultStatusLabel maps an HTTP status code onto the closed reason set.
func defaultStatusLabel(statusCode int) string {
	return string(httpStatusReason(statusCode))
}

func httpStatusReason(statusCode int) RefUpdateReason {
	switch statusCode {
	case http.StatusUnauthorized:
		return RefUpdateReasonUnauthorized
	case http.StatusForbidden:
		return RefUpdateReasonForbidden
	case http.StatusNotFound:
		return RefUpdateReasonNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return RefUpdateReasonTimeout
	case http.StatusConflict:
		return RefUpdateReasonConflict
	case http.StatusPreconditionFailed:
		return RefUpdateReasonPreconditionFailed
	case http.StatusUnprocessableEntity, http.StatusBadRequest:
		return RefUpdateReasonInvalid
	case http.StatusServiceUnavailable:
		return RefUpdateReasonUnavailable
	case http.StatusInternalServerError:
		return RefUpdateReasonInternal
	default:
		return RefUpdateReasonFailed
	}
}

// partialRefUpdate keeps whatever ref state the body carried; all-blank
// means the body had none.
func partialRefUpdate(branch string, oldSHA string, newSHA string) *RefUpdate {
	branch = strings.TrimSpace(branch)
	oldSHA = strings.TrimSpace(oldSHA)
	newSHA = strings.TrimSpace(newSHA)

	if branch == "" && oldSHA == "" && newSHA == "" {
		return nil
	}
	return &RefUpdate{Branch: branch, OldSHA: oldSHA, NewSHA: newSHA}
}

func readAll(resp *http.Response) ([]byte, error) {
	if resp.Body == nil {
		return nil, errors.New("response body is empty")
	}
	return io.ReadAll(resp.Body)
}
