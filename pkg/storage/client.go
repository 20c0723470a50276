package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"code-storage-client/pkg/log"
)

const (
	defaultAPIBaseURL = "https://api.{{org}}.code.storage"
	defaultTokenTTL   = time.Hour
)

// Client talks to the code storage API.
type Client struct {
	baseURL    string
	version    int
	tokens     TokenProvider
	newID      IDGenerator
	httpClient *http.Client
	l          log.Logger
}

// NewClient creates a storage client.
func NewClient(options Options) (*Client, error) {
	if options.Tokens == nil {
		return nil, errors.New("storage client requires a token provider")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(options.APIBaseURL), "/")
	if baseURL == "" {
		if strings.TrimSpace(options.Name) == "" {
			return nil, errors.New("storage client requires a name or an API base URL")
		}
		baseURL = strings.ReplaceAll(defaultAPIBaseURL, "{{org}}", strings.TrimSpace(options.Name))
	}

	version := options.APIVersion
	if version == 0 {
		version = DefaultAPIVersion
	}

	newID := options.IDGenerator
	if newID == nil {
		newID = defaultContentID
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logger := options.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	return &Client{
		baseURL:    baseURL,
		version:    version,
		tokens:     options.Tokens,
		newID:      newID,
		httpClient: httpClient,
		l:          logger,
	}, nil
}

// DefaultAPIBaseURL builds the default API base URL for an org name.
func DefaultAPIBaseURL(name string) string {
	return strings.ReplaceAll(defaultAPIBaseURL, "{{org}}", name)
}

// Repo returns a handle for commit operations against one repository.
func (c *Client) Repo(id string) *Repo {
	return &Repo{ID: id, client: c}
}

// Repo is a repository handle.
type Repo struct {
	ID     string
	client *Client
}

func (c *Client) basePath() string {
	return c.baseURL + "/api/v" + strconv.Itoa(c.version)
}

// doStreamingPost sends an NDJSON body. The body reader is consumed as the
// transport accepts bytes; cancelling ctx aborts the request and stops the
// producer goroutine feeding the pipe.
func (c *Client) doStreamingPost(ctx context.Context, url string, token string, body io.Reader) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/x-ndjson")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Code-Storage-Agent", userAgent())

	c.l.Debugf(ctx, "POST %s (%s)", url, userAgent())
	return c.httpClient.Do(req)
}

func resolveTTL(options InvocationOptions) time.Duration {
	if options.TTL > 0 {
		return options.TTL
	}
	return defaultTokenTTL
}
