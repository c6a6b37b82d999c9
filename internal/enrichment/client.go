package enrichment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// APIError carries what the transport saw for a failed call.
type APIError struct {
	Status     int
	RetryAfter time.Duration
	Err        error
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("model API status %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("model API: %v", e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the call may succeed when repeated: rate
// limits, server errors and transport failures.
func (e *APIError) Retryable() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// isRetryable classifies an error from a Completer.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"429", "rate limit", "too many requests", "500", "502", "503", "504", "timeout", "connection reset"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// retryAfterFrom extracts the wait hint from err, if any.
func retryAfterFrom(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// responseInfo records the last HTTP response status and Retry-After
// header seen for one call.
type responseInfo struct {
	mu         sync.Mutex
	status     int
	retryAfter time.Duration
	sent       bool
}

type responseInfoKey struct{}

// capturingTransport stores response metadata into the responseInfo found
// in the request context. The model client only surfaces error text.
type capturingTransport struct {
	base http.RoundTripper
}

func (t *capturingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	info, _ := req.Context().Value(responseInfoKey{}).(*responseInfo)
	if info == nil {
		return resp, err
	}
	info.mu.Lock()
	defer info.mu.Unlock()
	info.sent = true
	if err != nil {
		info.status = 0
		return resp, err
	}
	info.status = resp.StatusCode
	info.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	return resp, err
}

// parseRetryAfter reads delta-seconds or an HTTP date. One second is added
// as a buffer.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return time.Duration(secs+1) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d + time.Second
		}
	}
	return 0
}

// langchainCompleter talks to an OpenAI-compatible chat API through
// langchaingo.
type langchainCompleter struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
}

// NewOpenAICompleter builds a Completer for the OpenAI chat API.
func NewOpenAICompleter(cfg Config) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai API key required")
	}
	cfg = cfg.withDefaults()

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Tier1Model),
		openai.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: &capturingTransport{base: http.DefaultTransport},
		}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}
	return &langchainCompleter{llm: llm, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}, nil
}

// Complete sends one request. Failures come back as *APIError when the
// transport saw the response.
func (c *langchainCompleter) Complete(ctx context.Context, model, system, user string) (string, error) {
	info := &responseInfo{}
	ctx = context.WithValue(ctx, responseInfoKey{}, info)

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, system),
			llms.TextParts(llms.ChatMessageTypeHuman, user),
		},
		llms.WithModel(model),
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(c.maxTokens),
	)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		info.mu.Lock()
		defer info.mu.Unlock()
		if !info.sent {
			return "", err
		}
		return "", &APIError{Status: info.status, RetryAfter: info.retryAfter, Err: err}
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty response from model API")
	}
	return resp.Choices[0].Content, nil
}

var _ Completer = (*langchainCompleter)(nil)
