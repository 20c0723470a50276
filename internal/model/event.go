package model

import "time"

// PushEvent represents a validated push notification from code storage
type PushEvent struct {
	RepoID     string    // Repository identifier
	RepoURL    string    // Clone URL
	Ref        string    // Full ref name (refs/heads/...)
	Before     string    // Commit SHA before the push
	After      string    // Commit SHA after the push
	CustomerID string    // Owning customer
	PushedAt   time.Time // Server-side push time
	ReceivedAt time.Time // When the webhook was received
}
