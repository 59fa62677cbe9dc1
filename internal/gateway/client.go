package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// ErrNotConfigured marks the configuration error raised by every
// cloud-dependent operation when no endpoint or key is set.
var ErrNotConfigured = errors.New("gateway: cloud backend not configured")

// RequestError reports a non-success response from the backend. The message
// prefers a server-supplied explanation over the generic form.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

// Config bundles the client configuration. Leaving BaseURL or AnonKey blank
// disables the cloud path entirely.
type Config struct {
	BaseURL    string
	AnonKey    string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the authenticated request helper for the hosted backend. It
// normalizes success and error shapes; callers branch on the returned error
// rather than on response plumbing.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient constructs a Client. A client built from blank configuration is
// valid but permanently disabled.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		anonKey:    strings.TrimSpace(cfg.AnonKey),
		httpClient: httpClient,
		logger:     logger,
	}
}

// Enabled reports whether the cloud backend is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.anonKey != ""
}

// RequestOptions describes one backend call.
type RequestOptions struct {
	Method      string
	Path        string
	Body        any
	BearerToken string
	Headers     map[string]string
}

// Do issues the request and returns the raw response payload on success; an
// empty body yields nil. The API key header is attached always, the bearer
// header only when a token is supplied.
func (c *Client) Do(ctx context.Context, opts RequestOptions) (json.RawMessage, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}

	var bodyReader io.Reader
	if opts.Body != nil {
		encoded, err := json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("gateway: encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, opts.Method, c.baseURL+opts.Path, bodyReader)
	if err != nil {
		return nil, err
	}
	request.Header.Set("apikey", c.anonKey)
	request.Header.Set("Content-Type", "application/json")
	if opts.BearerToken != "" {
		request.Header.Set("Authorization", "Bearer "+opts.BearerToken)
	}
	for name, value := range opts.Headers {
		request.Header.Set(name, value)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	text, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		message := errorMessageFrom(text)
		if message == "" {
			message = fmt.Sprintf("request failed (%d)", response.StatusCode)
		}
		c.logger.Debug("backend request failed",
			zap.String("method", opts.Method),
			zap.String("path", opts.Path),
			zap.Int("status", response.StatusCode))
		return nil, &RequestError{Status: response.StatusCode, Message: message}
	}

	if len(text) == 0 {
		return nil, nil
	}
	return json.RawMessage(text), nil
}

// errorMessageFrom extracts the server-supplied explanation from an error
// payload. A decode failure is not fatal; the caller falls back to the
// generic status message.
func errorMessageFrom(text []byte) string {
	var payload map[string]any
	if err := json.Unmarshal(text, &payload); err != nil {
		return ""
	}
	for _, field := range []string{"msg", "message", "error_description", "error"} {
		if value, ok := payload[field].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
