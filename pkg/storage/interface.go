package storage

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// TokenProvider supplies bearer tokens for API requests. How tokens are
// minted (JWT signing, key management) is the provider's concern.
type TokenProvider interface {
	Token(ctx context.Context, repoID string, options TokenOptions) (string, error)
}

// TokenOptions describe the token a request needs.
type TokenOptions struct {
	Permissions []Permission
	TTL         time.Duration
}

// StaticTokenProvider returns the same token for every request.
type StaticTokenProvider string

func (p StaticTokenProvider) Token(ctx context.Context, repoID string, options TokenOptions) (string, error) {
	return string(p), nil
}

// IDGenerator produces opaque content IDs, unique within a commit request.
type IDGenerator func() string

// defaultContentID returns a random UUID, falling back to a time+random
// identifier (not cryptographically strong, but unique enough to correlate
// metadata entries with blob-chunk frames) if the UUID source fails.
func defaultContentID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("cid-%d-%06x", time.Now().UnixNano(), rand.Intn(1<<24))
	}
	return id.String()
}
