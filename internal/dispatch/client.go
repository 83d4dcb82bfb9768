// Package dispatch sends assembled requests to the completion API.
//
// Client supports a blocking call (Complete), a streaming call (Stream) and
// token counting (CountTokens). Only CountTokens retries; the completion call
// is never retried.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/tidwall/gjson"

	"github.com/opencode-ai/workflow/internal/logging"
	"github.com/opencode-ai/workflow/pkg/types"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.anthropic.com"

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Type       string
	Message    string

	err error
}

func (e *APIError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (status %d, %s): %s", e.StatusCode, e.Type, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// asAPIError converts SDK errors into *APIError and passes other errors through.
func asAPIError(err error) error {
	var sdkErr *anthropic.Error
	if !errors.As(err, &sdkErr) {
		return err
	}

	apiErr := &APIError{StatusCode: sdkErr.StatusCode, err: sdkErr}
	raw := sdkErr.RawJSON()
	if gjson.Valid(raw) {
		apiErr.Type = gjson.Get(raw, "error.type").String()
		apiErr.Message = gjson.Get(raw, "error.message").String()
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(raw)
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(sdkErr.StatusCode)
	}
	return apiErr
}

// Client talks to the completion API.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client

	// CountRetries bounds retries of CountTokens.
	CountRetries uint64
	// RetryInterval is the initial backoff interval for CountTokens.
	RetryInterval time.Duration
}

// NewClient creates a client for the public endpoint.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL:       DefaultBaseURL,
		APIKey:        apiKey,
		HTTP:          &http.Client{},
		CountRetries:  3,
		RetryInterval: 500 * time.Millisecond,
	}
}

// messages returns the SDK message service. SDK retries are disabled:
// completions are sent once and CountTokens runs its own backoff.
func (c *Client) messages() *anthropic.MessageService {
	opts := []option.RequestOption{
		option.WithAPIKey(c.APIKey),
		option.WithMaxRetries(0),
	}
	if c.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(c.BaseURL))
	}
	if c.HTTP != nil {
		opts = append(opts, option.WithHTTPClient(c.HTTP))
	}
	client := anthropic.NewClient(opts...)
	return &client.Messages
}

// Complete performs a blocking call and returns the concatenated text.
func (c *Client) Complete(ctx context.Context, req *types.Request) (string, error) {
	params, err := newMessageParams(req)
	if err != nil {
		return "", err
	}

	logging.Debug().Str("model", req.Model).Int("blocks", blockCount(req)).Msg("Sending completion request")

	msg, err := c.messages().New(ctx, params)
	if err != nil {
		return "", asAPIError(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	logging.Info().
		Str("stop_reason", string(msg.StopReason)).
		Int64("input_tokens", msg.Usage.InputTokens).
		Int64("output_tokens", msg.Usage.OutputTokens).
		Int64("cache_read", msg.Usage.CacheReadInputTokens).
		Int64("cache_write", msg.Usage.CacheCreationInputTokens).
		Msg("Completion finished")

	return sb.String(), nil
}

func blockCount(req *types.Request) int {
	n := len(req.System)
	for _, m := range req.Messages {
		n += len(m.Content)
	}
	return n
}
