package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BAL-DMU/mapcov/internal/logging"
)

const (
	defaultStartupTimeout = 5 * time.Minute
	defaultPollInterval   = 5 * time.Second
)

// MatchboxClient talks to a matchbox FHIR server over its REST API. It
// covers the three operations coverage verification needs: a readiness
// probe, StructureMap upload and StructureMap deletion.
type MatchboxClient struct {
	baseURL        string
	canonicalBase  string
	httpClient     *http.Client
	startupTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

// Option configures the MatchboxClient during construction.
type Option func(*clientConfig) error

type clientConfig struct {
	httpClient     *http.Client
	logger         *slog.Logger
	timeout        time.Duration
	startupTimeout time.Duration
	pollInterval   time.Duration
}

// NewMatchbox creates a client for the matchbox server at baseURL. The
// canonicalBase is the url prefix under which the maps declare their
// canonical identity; it is needed to find maps again for deletion.
func NewMatchbox(baseURL, canonicalBase string, opts ...Option) (*MatchboxClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("matchbox: baseURL is required")
	}

	if canonicalBase == "" {
		return nil, fmt.Errorf("matchbox: canonicalBase is required")
	}

	baseURL = strings.TrimSuffix(baseURL, "/")

	if !strings.HasSuffix(canonicalBase, "/") {
		canonicalBase += "/"
	}

	cfg := &clientConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	startupTimeout := cfg.startupTimeout
	if startupTimeout <= 0 {
		startupTimeout = defaultStartupTimeout
	}

	pollInterval := cfg.pollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	logger := cfg.logger
	if logger == nil {
		logger = logging.New("matchbox")
	}

	return &MatchboxClient{
		baseURL:        baseURL,
		canonicalBase:  canonicalBase,
		httpClient:     httpClient,
		startupTimeout: startupTimeout,
		pollInterval:   pollInterval,
		logger:         logger,
	}, nil
}

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *clientConfig) error {
		cfg.httpClient = c
		return nil
	}
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.logger = l
		return nil
	}
}

// WithTimeout sets a per-request timeout on the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.timeout = d
		return nil
	}
}

// WithStartupTimeout bounds how long WaitReady polls for the engine.
func WithStartupTimeout(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.startupTimeout = d
		return nil
	}
}

// WithPollInterval sets the pause between WaitReady probes.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *clientConfig) error {
		cfg.pollInterval = d
		return nil
	}
}

// Ping checks that the server answers its metadata endpoint.
func (c *MatchboxClient) Ping(ctx context.Context) error {
	u := fmt.Sprintf("%s/metadata", c.baseURL)

	return c.do(ctx, http.MethodGet, u, "check engine metadata", "", nil, nil)
}

// WaitReady polls the metadata endpoint until the server answers or the
// startup timeout expires. A freshly started matchbox needs a while to
// load its implementation guides.
func (c *MatchboxClient) WaitReady(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.startupTimeout)
	defer cancel()

	var lastErr error

	for {
		if lastErr = c.Ping(ctx); lastErr == nil {
			return nil
		}

		c.logger.Debug("engine not ready yet", slog.Any("error", lastErr))

		select {
		case <-ctx.Done():
			return fmt.Errorf("engine not ready within %s: %w", c.startupTimeout, lastErr)
		case <-time.After(c.pollInterval):
		}
	}
}

// UploadMap creates or updates the named StructureMap from mapping
// language source. The server answers 201 on create and 200 on update;
// both count as success.
func (c *MatchboxClient) UploadMap(ctx context.Context, name, content string) error {
	u := fmt.Sprintf("%s/StructureMap", c.baseURL)
	op := fmt.Sprintf("upload map %s", name)

	return c.do(ctx, http.MethodPost, u, op, "text/fhir-mapping", strings.NewReader(content), nil)
}

// DeleteMap removes the named StructureMap from the server. The map is
// located by its canonical url first because the server assigns the
// resource ids. A map the server does not hold yields an error
// satisfying IsNotFound.
func (c *MatchboxClient) DeleteMap(ctx context.Context, name string) error {
	canonical := c.canonicalBase + name
	op := fmt.Sprintf("delete map %s", name)

	searchURL := fmt.Sprintf("%s/StructureMap?url=%s", c.baseURL, url.QueryEscape(canonical))

	var bundle searchBundle
	if err := c.do(ctx, http.MethodGet, searchURL, op, "", nil, &bundle); err != nil {
		return err
	}

	if len(bundle.Entry) == 0 {
		return NewAPIError(op, http.StatusNotFound, fmt.Sprintf("no StructureMap with url %s", canonical))
	}

	for _, entry := range bundle.Entry {
		deleteURL := fmt.Sprintf("%s/StructureMap/%s", c.baseURL, entry.Resource.ID)
		if err := c.do(ctx, http.MethodDelete, deleteURL, op, "", nil, nil); err != nil {
			return err
		}
	}

	return nil
}

// searchBundle is the slice of a FHIR search response this client needs.
type searchBundle struct {
	Entry []struct {
		Resource struct {
			ID string `json:"id"`
		} `json:"resource"`
	} `json:"entry"`
}

// operationOutcome carries the diagnostics of a FHIR error response.
type operationOutcome struct {
	Issue []struct {
		Diagnostics string `json:"diagnostics"`
	} `json:"issue"`
}

// do executes an HTTP request and decodes the JSON response into dst
// when dst is non-nil. An error status yields an *APIError.
func (c *MatchboxClient) do(ctx context.Context, method, u, operation, contentType string, body io.Reader, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", operation, err)
	}

	req.Header.Set("Accept", "application/fhir+json")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug("engine request", "operation", operation, "method", method, "url", u)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: do request: %w", operation, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("engine response", "operation", operation, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)

		return NewAPIError(operation, resp.StatusCode, outcomeMessage(respBody, resp.Status))
	}

	if dst != nil {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%s: decode response: %w", operation, err)
		}
	}

	return nil
}

// outcomeMessage extracts the first diagnostics line from an
// OperationOutcome body, falling back to the raw body or HTTP status.
func outcomeMessage(body []byte, status string) string {
	var outcome operationOutcome
	if json.Unmarshal(body, &outcome) == nil {
		for _, issue := range outcome.Issue {
			if issue.Diagnostics != "" {
				return issue.Diagnostics
			}
		}
	}

	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}

	return status
}
