package storage

import (
	"net/http"
	"time"

	"code-storage-client/pkg/log"
)

// DefaultAPIVersion is used when Options.APIVersion is zero.
const DefaultAPIVersion = 1

// Permission defines the token scopes understood by the API.
type Permission string

const (
	PermissionGitRead  Permission = "git:read"
	PermissionGitWrite Permission = "git:write"
)

// Options configure the storage client.
type Options struct {
	// Name is the org name, used to derive the default API base URL.
	Name string
	// APIBaseURL overrides the derived base URL.
	APIBaseURL string
	APIVersion int
	// Tokens supplies bearer tokens for API calls. Required.
	Tokens TokenProvider
	// IDGenerator overrides content-ID generation. Defaults to UUIDs.
	IDGenerator IDGenerator
	HTTPClient  *http.Client
	Logger      log.Logger
}

// InvocationOptions holds per-request options.
type InvocationOptions struct {
	// TTL bounds the lifetime of the bearer token minted for this call.
	TTL time.Duration
}

// CommitSignature identifies an author or committer.
type CommitSignature struct {
	Name  string
	Email string
}

// GitFileMode describes a git file mode string.
type GitFileMode string

const (
	GitFileModeRegular    GitFileMode = "100644"
	GitFileModeExecutable GitFileMode = "100755"
	GitFileModeSymlink    GitFileMode = "120000"
	GitFileModeSubmodule  GitFileMode = "160000"
)

// CommitOptions configure a commit-pack request.
type CommitOptions struct {
	InvocationOptions
	TargetBranch string
	// TargetRef is the legacy full-ref form; it must start with refs/heads/
	// and is ignored when TargetBranch is set.
	TargetRef       string
	CommitMessage   string
	ExpectedHeadSHA string
	BaseBranch      string
	Ephemeral       bool
	EphemeralBase   bool
	Author          CommitSignature
	Committer       *CommitSignature
}

// CommitFileOptions configure a single upsert operation.
type CommitFileOptions struct {
	Mode GitFileMode
}

// CommitTextFileOptions configure a text upsert.
type CommitTextFileOptions struct {
	CommitFileOptions
	Encoding string
}

// CommitFromDiffOptions configure a diff-commit request.
type CommitFromDiffOptions struct {
	InvocationOptions
	TargetBranch    string
	CommitMessage   string
	Diff            ByteSource
	ExpectedHeadSHA string
	BaseBranch      string
	Ephemeral       bool
	EphemeralBase   bool
	Author          CommitSignature
	Committer       *CommitSignature
}

// RefUpdate describes the branch pointer transition reported by the service.
type RefUpdate struct {
	Branch string
	OldSHA string
	NewSHA string
}

// CommitResult describes an accepted commit.
type CommitResult struct {
	CommitSHA    string
	TreeSHA      string
	TargetBranch string
	PackBytes    int
	BlobCount    int
	RefUpdate    RefUpdate
}

// WebhookValidationOptions control webhook signature validation.
type WebhookValidationOptions struct {
	// MaxAgeSeconds is the replay window; 0 means the 300s default,
	// negative disables the timestamp checks.
	MaxAgeSeconds int
}

// WebhookValidationResult describes the outcome of signature validation.
// Validation failures are values, not errors: webhook input is untrusted.
type WebhookValidationResult struct {
	Valid     bool
	Error     string
	Timestamp int64
	EventType string
}

// WebhookValidation includes the parsed payload when validation succeeds.
type WebhookValidation struct {
	WebhookValidationResult
	Payload *WebhookEventPayload
}

// ParsedWebhookSignature is the decomposed X-Pierre-Signature header.
type ParsedWebhookSignature struct {
	Timestamp string
	Signature string
}

// WebhookRepository identifies the repository a webhook refers to.
type WebhookRepository struct {
	ID  string
	URL string
}

// WebhookPushEvent is the typed payload of a push webhook.
type WebhookPushEvent struct {
	Type        string
	Repository  WebhookRepository
	Ref         string
	Before      string
	After       string
	CustomerID  string
	PushedAt    time.Time
	RawPushedAt string
}

// WebhookUnknownEvent carries an event type this client has no schema for.
// The event-type set is open; unknown types pass through unvalidated.
type WebhookUnknownEvent struct {
	Type string
	Raw  []byte
}

// WebhookEventPayload is a validated, typed webhook event.
type WebhookEventPayload struct {
	Push    *WebhookPushEvent
	Unknown *WebhookUnknownEvent
}
