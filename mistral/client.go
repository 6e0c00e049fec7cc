// Package mistral is a client for the Mistral API: chat completions
// (streaming and not), embeddings, OCR and model listing.
//
// Chat requests are sanitized into a message sequence the API accepts, tool
// calls in responses are matched back to the functions declared on the
// request, and streams are decoded into per-choice updates.
package mistral

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
)

// Client calls the Mistral API. It is safe for concurrent use; each call
// owns its own request and response.
type Client struct {
	apiKey     string
	baseURL    string
	apiVersion string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger
	sanitize   bool
}

// New creates a client. A missing API key is not an error here; every call
// then fails with ErrAuthentication before any request is sent.
func New(opts ...Option) *Client {
	cfg := newClientConfig()
	cfg.apply(opts...)

	// Fall back to environment variable
	if cfg.apiKey == "" {
		cfg.apiKey = os.Getenv(APIKeyEnv)
	}

	httpClient := cfg.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.timeout}
	}

	return &Client{
		apiKey:     cfg.apiKey,
		baseURL:    strings.TrimRight(cfg.baseURL, "/"),
		apiVersion: strings.Trim(cfg.apiVersion, "/"),
		userAgent:  cfg.userAgent,
		httpClient: httpClient,
		logger:     cfg.logger,
		sanitize:   !cfg.skipSanitizing,
	}
}

// url builds {base}/{version}/{endpoint}.
func (c *Client) url(endpoint string) string {
	if c.apiVersion == "" {
		return c.baseURL + "/" + endpoint
	}
	return c.baseURL + "/" + c.apiVersion + "/" + endpoint
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any, stream bool) (*http.Request, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: API key required: set %s or use WithAPIKey", ErrAuthentication, APIKeyEnv)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.url(endpoint), reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	return httpReq, nil
}

// do sends a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, endpoint string, body any) ([]byte, error) {
	httpReq, err := c.newRequest(ctx, method, endpoint, body, false)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "mistral request", "method", method, "url", httpReq.URL.String())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		c.logger.DebugContext(ctx, "mistral request failed", "url", httpReq.URL.String(), "status", httpResp.StatusCode)
		return nil, parseError(httpResp.StatusCode, respBody)
	}
	return respBody, nil
}

// getJSON and postJSON decode a 2xx body into out.
func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	return c.roundTrip(ctx, http.MethodGet, endpoint, nil, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint string, in, out any) error {
	return c.roundTrip(ctx, http.MethodPost, endpoint, in, out)
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint string, in, out any) error {
	body, err := c.do(ctx, method, endpoint, in)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// openStream sends a request and returns the body of a 2xx event stream.
// The caller closes the body.
func (c *Client) openStream(ctx context.Context, endpoint string, body any) (io.ReadCloser, error) {
	httpReq, err := c.newRequest(ctx, http.MethodPost, endpoint, body, true)
	if err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "mistral stream request", "url", httpReq.URL.String())

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		defer func() { _ = httpResp.Body.Close() }()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, parseError(httpResp.StatusCode, respBody)
	}
	return httpResp.Body, nil
}

// prepare copies req for the wire, applying sanitization.
func (c *Client) prepare(ctx context.Context, req *ChatCompletionRequest, stream bool) (*ChatCompletionRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: nil request", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	wire := *req
	wire.Stream = stream
	if c.sanitize {
		wire.Messages = SanitizeMessages(req.Messages)
		if len(wire.Messages) != len(req.Messages) {
			c.logger.DebugContext(ctx, "sanitized messages", "before", len(req.Messages), "after", len(wire.Messages))
		}
	}

	c.logger.DebugContext(ctx, "chat completion",
		"model", wire.Model,
		"messages", len(wire.Messages),
		"tools", len(wire.Tools),
		"stream", stream,
	)
	return &wire, nil
}
