package flywheel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gojektech/heimdall/v6"
	"github.com/gojektech/heimdall/v6/httpclient"

	"synthgear/internal/logging"
	"synthgear/internal/services"
)

const (
	maxErrorBody        = 512
	defaultRetryBackoff = 500 * time.Millisecond
)

// Config holds client settings.
type Config struct {
	// BaseURL is the API root. Derived from APIKey when empty.
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
	// RetryBackoff is the first wait before retrying a failed request. Later
	// retries double it, up to eight times the initial wait.
	RetryBackoff time.Duration
}

// Client talks to the platform REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *httpclient.Client
	logger  *slog.Logger
}

// New builds a client. The api key is required.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, services.Wrap(services.ErrConfiguration, "platform", "client", "api key not provided", nil)
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		derived, err := BaseURLFromAPIKey(key)
		if err != nil {
			return nil, err
		}
		base = derived
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.RetryCount
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = defaultRetryBackoff
	}
	return &Client{
		baseURL: base,
		apiKey:  key,
		http: httpclient.NewClient(
			httpclient.WithHTTPTimeout(timeout),
			httpclient.WithRetryCount(retries),
			httpclient.WithRetrier(heimdall.NewRetrier(
				heimdall.NewExponentialBackoff(backoff, 8*backoff, 2, backoff/4),
			)),
		),
		logger: logging.NewComponentLogger(logger, "platform"),
	}, nil
}

// BaseURL returns the API root in use.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetAnalysis fetches an analysis and its parents.
func (c *Client) GetAnalysis(ctx context.Context, id string) (Analysis, error) {
	var out Analysis
	err := c.getJSON(ctx, "analysis", "analyses/"+url.PathEscape(id), &out)
	return out, err
}

// GetSubject fetches a subject container.
func (c *Client) GetSubject(ctx context.Context, id string) (Subject, error) {
	var out Subject
	err := c.getJSON(ctx, "subject", "subjects/"+url.PathEscape(id), &out)
	return out, err
}

// GetSession fetches a session container including its info map.
func (c *Client) GetSession(ctx context.Context, id string) (Session, error) {
	var out Session
	if err := c.getJSON(ctx, "session", "sessions/"+url.PathEscape(id), &out); err != nil {
		return Session{}, err
	}
	if out.Info == nil {
		out.Info = map[string]any{}
	}
	return out, nil
}

// ListAcquisitions lists the acquisitions of a session.
func (c *Client) ListAcquisitions(ctx context.Context, sessionID string) ([]Acquisition, error) {
	var out []Acquisition
	err := c.getJSON(ctx, "acquisitions", "sessions/"+url.PathEscape(sessionID)+"/acquisitions", &out)
	return out, err
}

// GetFileInfo returns the info map of a file attached to an acquisition.
// For DICOM files this is the classified header.
func (c *Client) GetFileInfo(ctx context.Context, acquisitionID, fileName string) (map[string]any, error) {
	var out fileInfoResponse
	path := "acquisitions/" + url.PathEscape(acquisitionID) + "/files/" + url.PathEscape(fileName) + "/info"
	if err := c.getJSON(ctx, "file info", path, &out); err != nil {
		return nil, err
	}
	if out.Info == nil {
		out.Info = map[string]any{}
	}
	return out.Info, nil
}

// Ping checks that the API answers and the key is accepted.
func (c *Client) Ping(ctx context.Context) (Version, error) {
	var out Version
	err := c.getJSON(ctx, "version", "version", &out)
	return out, err
}

func (c *Client) getJSON(ctx context.Context, operation, path string, target any) error {
	endpoint := c.baseURL + "/" + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", operation, err)
	}
	req.Header.Set("Authorization", "scitran-user "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if resp == nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return services.Wrap(services.ErrTransient, "platform", operation, "request failed", err)
	}
	// heimdall may report exhausted retries alongside the last response.
	defer resp.Body.Close()

	c.logger.Debug("platform request",
		logging.String("operation", operation),
		logging.String("path", path),
		logging.Int("status", resp.StatusCode),
		logging.Duration("elapsed", time.Since(started)),
	)

	if err := statusError(operation, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return services.Wrap(services.ErrExternalTool, "platform", operation, "decode response", err)
	}
	return nil
}

// StatusError carries a non-2xx platform response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status %d", e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}

func statusError(operation string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	cause := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, "platform", operation, "container not found", cause)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, "platform", operation, "api key rejected", cause)
	default:
		return services.Wrap(services.ErrExternalTool, "platform", operation, "unexpected response", cause)
	}
}

// IsNotFound reports whether err came from a 404 response.
func IsNotFound(err error) bool {
	return errors.Is(err, services.ErrNotFound)
}
