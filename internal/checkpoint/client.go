// Package checkpoint reports completed steps to the orchestrator out of
// band, asynchronously, instead of riding them back on the synchronous step
// response. The same Client also fetches a run's step memo and triggering
// events from the API (GetSteps/GetEvents); the handler uses only those two,
// when a request sets "use_api" in its call context, and does not itself
// report steps through Checkpoint.
package checkpoint

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/inngest/inngestgo/internal/opcode"
)

// AsyncRequest reports a batch of completed steps for a single run.
type AsyncRequest struct {
	RunID        string        `json:"runId"`
	FnID         uuid.UUID     `json:"fnId"`
	QueueItemRef string        `json:"queueItemRef"`
	Steps        []opcode.Step `json:"steps"`
}

// Client reports step completions to the orchestrator's async checkpoint
// endpoint, signing with a primary key and falling back to a secondary key
// the first (and every subsequent) time the primary is rejected.
type Client struct {
	primaryKey  string
	fallbackKey string
	baseURL     string // explicit override; empty resolves from the environment per call

	httpClient  *http.Client
	useFallback atomic.Bool
}

// NewClient returns a Client authenticating with primaryKey. If primaryKey
// is ever rejected with a 401/403 and fallbackKey is non-empty, the Client
// switches to fallbackKey for this call and every call after it.
func NewClient(primaryKey, fallbackKey string) *Client {
	return &Client{
		primaryKey:  primaryKey,
		fallbackKey: fallbackKey,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// SetBaseURL overrides where requests are sent, bypassing the environment
// resolution resolveBaseURL otherwise performs per call.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

func (c *Client) resolveBaseURL() string {
	if c.baseURL != "" {
		return c.baseURL
	}
	if dev := os.Getenv("INNGEST_DEV"); dev != "" {
		if u, err := url.Parse(dev); err == nil && u.Host != "" {
			return dev
		}
		return "http://127.0.0.1:8288"
	}
	if u := os.Getenv("INNGEST_API_BASE_URL"); u != "" {
		return u
	}
	if u := os.Getenv("INNGEST_BASE_URL"); u != "" {
		return u
	}
	return "https://api.inngest.com"
}

// Checkpoint reports req's completed steps.
func (c *Client) Checkpoint(ctx context.Context, req AsyncRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("error marshalling checkpoint request: %w", err)
	}
	_, err = c.doWithFallback(ctx, http.MethodPost, "/v1/runs/checkpoint", body)
	return err
}

// GetSteps fetches the completed step memo for runID, used to populate a
// request's step memo when the executor omitted it from the request body
// because it was too large to inline (use_api).
func (c *Client) GetSteps(ctx context.Context, runID string) (map[string]json.RawMessage, error) {
	byt, err := c.doWithFallback(ctx, http.MethodGet, fmt.Sprintf("/v0/runs/%s/actions", runID), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching steps: %w", err)
	}
	steps := map[string]json.RawMessage{}
	if err := json.Unmarshal(byt, &steps); err != nil {
		return nil, fmt.Errorf("error unmarshalling steps: %w", err)
	}
	return steps, nil
}

// GetEvents fetches the triggering event batch for runID, for the same
// reason GetSteps does.
func (c *Client) GetEvents(ctx context.Context, runID string) ([]json.RawMessage, error) {
	byt, err := c.doWithFallback(ctx, http.MethodGet, fmt.Sprintf("/v0/runs/%s/triggers", runID), nil)
	if err != nil {
		return nil, fmt.Errorf("error fetching events: %w", err)
	}
	var events []json.RawMessage
	if err := json.Unmarshal(byt, &events); err != nil {
		return nil, fmt.Errorf("error unmarshalling events: %w", err)
	}
	return events, nil
}

// doWithFallback issues method/path with the primary key, switching
// permanently to the fallback key (and retrying once) the first time the
// primary key is rejected with a 401/403.
func (c *Client) doWithFallback(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if c.useFallback.Load() && c.fallbackKey != "" {
		return c.do(ctx, method, path, body, c.fallbackKey)
	}

	byt, err := c.do(ctx, method, path, body, c.primaryKey)
	if err == nil {
		return byt, nil
	}
	if c.fallbackKey == "" || c.useFallback.Load() || !isAuthError(err) {
		return byt, err
	}

	c.useFallback.Store(true)
	return c.do(ctx, method, path, body, c.fallbackKey)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, key string) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveBaseURL()+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return respBody, &statusError{status: resp.StatusCode, body: respBody}
	}
	return respBody, nil
}

type statusError struct {
	status int
	body   []byte
}

func (e *statusError) Error() string {
	return fmt.Sprintf("checkpoint request failed with status %d: %s", e.status, e.body)
}

func isAuthError(err error) bool {
	var se *statusError
	return errors.As(err, &se) && (se.status == http.StatusUnauthorized || se.status == http.StatusForbidden)
}
