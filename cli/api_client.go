package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/castnote/castnote/engine/core"
	"github.com/castnote/castnote/engine/spike"
	"github.com/castnote/castnote/engine/stream"
	"github.com/castnote/castnote/pkg/config"
	"github.com/castnote/castnote/pkg/logger"
)

// APIClient talks to the castnote API. It implements spike.API.
type APIClient struct {
	client  *resty.Client
	baseURL string
	token   string
}

// NewAPIClient creates an API client from the resolved configuration.
func NewAPIClient(cfg *config.Config) (*APIClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	baseURL := cfg.API.BaseURL
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if !parsedURL.IsAbs() || parsedURL.Host == "" {
		return nil, fmt.Errorf("base URL must be absolute with a host, got: %s", baseURL)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("base URL scheme must be http or https, got: %s", parsedURL.Scheme)
	}

	token := cfg.API.Token.Value()
	if token == "" {
		return nil, fmt.Errorf("API token is required (set CASTNOTE_API_TOKEN)")
	}

	return &APIClient{
		client:  buildHTTPClient(cfg, baseURL, token),
		baseURL: baseURL,
		token:   token,
	}, nil
}

// buildHTTPClient creates and configures the HTTP client
func buildHTTPClient(cfg *config.Config, baseURL, token string) *resty.Client {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(cfg.API.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("Authorization", "Bearer "+token).
		SetRetryCount(3).
		SetRetryWaitTime(100 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second)

	client.AddRetryCondition(retryCondition)

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		req.SetHeader("X-Request-ID", uuid.NewString())
		return nil
	})

	if cfg.Runtime.LogLevel == "debug" {
		client.SetDebug(true)
	}

	return client
}

// retryCondition determines if a request should be retried
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code >= 500 || code == 429 || code == 408
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Job is the remote view of one submission.
type Job struct {
	JobID    core.ID        `json:"job_id"`
	Status   core.JobStatus `json:"status"`
	Title    string         `json:"title,omitempty"`
	Duration float64        `json:"duration_seconds,omitempty"`
}

// SubmitJob registers a media source for transcription.
func (c *APIClient) SubmitJob(ctx context.Context, sourceURL, language string) (*Job, error) {
	var result struct {
		Data Job `json:"data"`
	}
	body := map[string]string{
		"source_url": sourceURL,
		"language":   language,
	}

	if err := c.doRequest(ctx, http.MethodPost, "/jobs", body, &result); err != nil {
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}
	return &result.Data, nil
}

// GetJob fetches the current remote state of a job.
func (c *APIClient) GetJob(ctx context.Context, jobID core.ID) (*Job, error) {
	var result struct {
		Data Job `json:"data"`
	}

	if err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/jobs/%s", jobID), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &result.Data, nil
}

// CreateSpike calls the idempotent create-or-fetch endpoint. The remote
// either returns cached final content or a spike handle to stream.
func (c *APIClient) CreateSpike(ctx context.Context, jobID core.ID, kind, language string) (*spike.CreateResult, error) {
	var result struct {
		Data struct {
			SpikeID  core.ID `json:"spike_id"`
			Content  string  `json:"content"`
			Markdown string  `json:"markdown"`
		} `json:"data"`
	}
	body := map[string]string{
		"kind":     kind,
		"language": language,
	}

	path := fmt.Sprintf("/jobs/%s/spikes", jobID)
	if err := c.doRequest(ctx, http.MethodPost, path, body, &result); err != nil {
		return nil, fmt.Errorf("failed to create spike: %w", err)
	}

	content := result.Data.Content
	if content == "" {
		content = result.Data.Markdown
	}
	return &spike.CreateResult{Content: content, SpikeID: result.Data.SpikeID}, nil
}

// OpenSpikeStream issues the streaming GET for a spike. The response body
// is handed to the stream session unread; resty's own client would buffer
// it, so this goes through the underlying http.Client.
func (c *APIClient) OpenSpikeStream(ctx context.Context, spikeID core.ID, lastEventID string) (*stream.Handle, error) {
	streamURL := fmt.Sprintf("%s/spikes/%s/stream", c.baseURL, spikeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-ID", uuid.NewString())
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.client.GetClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to open spike stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("stream request failed with status %d: %s", resp.StatusCode, string(body))
	}

	return &stream.Handle{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// doRequest performs a request with context cancellation support
func (c *APIClient) doRequest(ctx context.Context, method, path string, body any, result any) error {
	log := logger.FromContext(ctx)

	req := c.client.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	req.SetError(&APIError{})

	resp, err := req.Execute(method, path)
	if err != nil {
		return core.NewTransportError(method+" "+path, err)
	}

	if resp.StatusCode() >= 400 {
		if apiErr, ok := resp.Error().(*APIError); ok && apiErr != nil && apiErr.Message != "" {
			return apiErr
		}
		return fmt.Errorf("API error: %s (status %d)", resp.String(), resp.StatusCode())
	}

	log.Debug("API request completed", "method", method, "path", path, "status", resp.StatusCode())
	return nil
}
