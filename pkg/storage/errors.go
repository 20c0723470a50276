package storage

import "strings"

// ValidationError reports malformed caller input, raised before any network
// activity. Fix the input and retry; the client never retries on its own.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

// SchemaError reports an HTTP-success response whose body does not match the
// acknowledgement schema. Unexpected and fatal; not a ref-update failure.
type SchemaError struct {
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	return e.Message
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// RefUpdateReason classifies a ref update failure.
type RefUpdateReason string

const (
	RefUpdateReasonPreconditionFailed RefUpdateReason = "precondition_failed"
	RefUpdateReasonConflict           RefUpdateReason = "conflict"
	RefUpdateReasonNotFound           RefUpdateReason = "not_found"
	RefUpdateReasonInvalid            RefUpdateReason = "invalid"
	RefUpdateReasonTimeout            RefUpdateReason = "timeout"
	RefUpdateReasonUnauthorized       RefUpdateReason = "unauthorized"
	RefUpdateReasonForbidden          RefUpdateReason = "forbidden"
	RefUpdateReasonUnavailable        RefUpdateReason = "unavailable"
	RefUpdateReasonInternal           RefUpdateReason = "internal"
	RefUpdateReasonFailed             RefUpdateReason = "failed"
	RefUpdateReasonUnknown            RefUpdateReason = "unknown"
)

// RefUpdateError reports a commit the server received but did not apply,
// either as an HTTP failure or an in-band success:false acknowledgement.
// RefUpdate may be partial (or nil) but old/new SHAs are kept when the
// service reports them; they distinguish "nothing changed" from "rejected
// after partial server-side work".
type RefUpdateError struct {
	Message   string
	Status    string
	Reason    RefUpdateReason
	RefUpdate *RefUpdate
}

func (e *RefUpdateError) Error() string {
	return e.Message
}

func newRefUpdateError(message string, status string, refUpdate *RefUpdate) *RefUpdateError {
	return &RefUpdateError{
		Message:   message,
		Status:    status,
		Reason:    inferRefUpdateReason(status),
		RefUpdate: refUpdate,
	}
}

func inferRefUpdateReason(status string) RefUpdateReason {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "precondition_failed":
		return RefUpdateReasonPreconditionFailed
	case "conflict":
		return RefUpdateReasonConflict
	case "not_found":
		return RefUpdateReasonNotFound
	case "invalid":
		return RefUpdateReasonInvalid
	case "timeout":
		return RefUpdateReasonTimeout
	case "unauthorized":
		return RefUpdateReasonUnauthorized
	case "forbidden":
		return RefUpdateReasonForbidden
	case "unavailable":
		return RefUpdateReasonUnavailable
	case "internal":
		return RefUpdateReasonInternal
	case "failed":
		return RefUpdateReasonFailed
	default:
		return RefUpdateReasonUnknown
	}
}
