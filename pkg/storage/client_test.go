package storage

import (
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	t.Run("requires token provider", func(t *testing.T) {
		if _, err := NewClient(Options{Name: "acme"}); err == nil {
			t.Fatalf("expected error without token provider")
		}
	})

	t.Run("requires name or base url", func(t *testing.T) {
		if _, err := NewClient(Options{Tokens: StaticTokenProvider("t")}); err == nil {
			t.Fatalf("expected error without name or base url")
		}
	})

	t.Run("derives base url from name", func(t *testing.T) {
		client, err := NewClient(Options{Name: "acme", Tokens: StaticTokenProvider("t")})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		if client.basePath() != "https://api.acme.code.storage/api/v1" {
			t.Errorf("unexpected base path: %s", client.basePath())
		}
	})

	t.Run("explicit base url and version", func(t *testing.T) {
		client, err := NewClient(Options{
			APIBaseURL: "https://storage.internal/",
			APIVersion: 2,
			Tokens:     StaticTokenProvider("t"),
		})
		if err != nil {
			t.Fatalf("new client: %v", err)
		}
		if client.basePath() != "https://storage.internal/api/v2" {
			t.Errorf("unexpected base path: %s", client.basePath())
		}
	})
}

func TestDefaultAPIBaseURL(t *testing.T) {
	if got := DefaultAPIBaseURL("acme"); got != "https://api.acme.code.storage" {
		t.Errorf("unexpected url: %s", got)
	}
}

func TestUserAgent(t *testing.T) {
	agent := userAgent()
	if !strings.HasPrefix(agent, PackageName+"/") {
		t.Errorf("agent must start with package name: %s", agent)
	}
	if !strings.Contains(agent, PackageVersion) {
		t.Errorf("agent must carry the version: %s", agent)
	}
	if strings.Count(agent, "/") != 1 {
		t.Errorf("agent must be name/version: %s", agent)
	}
}

func TestDefaultContentID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := defaultContentID()
		if id == "" {
			t.Fatalf("empty content id")
		}
		if seen[id] {
			t.Fatalf("duplicate content id: %s", id)
		}
		seen[id] = true
	}
}
