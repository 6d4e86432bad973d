package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the OpenRouter API root.
	DefaultBaseURL = "https://openrouter.ai/api/v1"

	maxErrorBodySize = 64 * 1024
)

// Client talks to the OpenRouter chat-completions and models endpoints.
// The credential is supplied per call so one Client can outlive key changes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	appURL     string
	appTitle   string
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (tests, proxies).
func WithBaseURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.baseURL = strings.TrimSuffix(url, "/")
		}
	}
}

// WithHTTPClient sets the transport. Streaming requests rely on the context
// for cancellation, so the client should not carry a global timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithAppInfo sets the HTTP-Referer and X-Title attribution headers.
func WithAppInfo(appURL, appTitle string) Option {
	return func(c *Client) {
		c.appURL = appURL
		c.appTitle = appTitle
	}
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewOpenRouterClient creates a client for the OpenRouter API.
func NewOpenRouterClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

type completionRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

// Send starts a streamed chat completion. The returned Stream yields
// EventDelta for each text fragment; a failed request yields exactly one
// EventFailure. Cancelling ctx (or closing the stream) aborts the transport
// and ends the stream without a failure.
//
// Only missing preconditions are returned as errors: ErrCredentialMissing and
// ErrNoModel. No request is made in that case.
func (c *Client) Send(ctx context.Context, req Request) (Stream, error) {
	credential := strings.TrimSpace(req.Credential)
	if credential == "" {
		return nil, ErrCredentialMissing
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, ErrNoModel
	}

	messages := make([]Message, 0, len(req.History)+1)
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: RoleUser, Content: req.Text})

	body, err := json.Marshal(completionRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		c.setHeaders(httpReq, credential)
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")

		c.logger.Debug("chat completion request", "model", req.Model, "messages", len(messages))
		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		c.logger.Debug("chat completion response", "status", resp.StatusCode, "elapsed", time.Since(start))

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
			return newAPIError(resp.StatusCode, data)
		}
		return decodeStream(ctx, resp.Body, events)
	}), nil
}

func (c *Client) setHeaders(req *http.Request, credential string) {
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	if c.appURL != "" {
		req.Header.Set("HTTP-Referer", c.appURL)
	}
	if c.appTitle != "" {
		req.Header.Set("X-Title", c.appTitle)
	}
}
