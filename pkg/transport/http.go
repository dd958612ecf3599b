// Package transport delivers event batches and feedback to the feelback collector over HTTP.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/feelback/pkg/metrics"
	"github.com/cuemby/feelback/pkg/types"
	"github.com/klauspost/compress/gzip"
)

// Collector endpoints, relative to the base URL
const (
	EventsPath   = "/v1/events"
	FeedbackPath = "/v1/feedback"
)

// DefaultUserAgent identifies the SDK to the collector
const DefaultUserAgent = "feelback-go"

// maxErrorBody bounds how much of a failed response is kept in StatusError
const maxErrorBody = 512

// Transport delivers event batches and feedback to the collector
type Transport interface {
	SendEvents(ctx context.Context, events []types.QueuedEvent) error
	SendFeedback(ctx context.Context, feedback types.Feedback) error
}

// StatusError is returned when the collector answers outside the accepted range
type StatusError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("collector %s returned HTTP %d %s", e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// HTTPTransport POSTs JSON bodies to the collector with a bearer credential
type HTTPTransport struct {
	// BaseURL is the collector root (e.g., "https://collector.feelback.dev")
	BaseURL string

	// APIKey is sent as "Authorization: Bearer <APIKey>"
	APIKey string

	// UserAgent is sent on every request
	UserAgent string

	// Headers are custom HTTP headers to include in every request
	Headers map[string]string

	// ExpectedStatusMin is the minimum acceptable HTTP status code (default: 200)
	ExpectedStatusMin int

	// ExpectedStatusMax is the maximum acceptable HTTP status code (default: 299)
	ExpectedStatusMax int

	// Compress gzips request bodies and sets Content-Encoding
	Compress bool

	// Client is the HTTP client to use (allows custom configuration)
	Client *http.Client
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(baseURL, apiKey string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL:           strings.TrimRight(baseURL, "/"),
		APIKey:            apiKey,
		UserAgent:         DefaultUserAgent,
		Headers:           make(map[string]string),
		ExpectedStatusMin: 200,
		ExpectedStatusMax: 299,
		Client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendEvents posts one batch as {"events": [...]}
func (h *HTTPTransport) SendEvents(ctx context.Context, events []types.QueuedEvent) error {
	return h.post(ctx, EventsPath, types.EventBatch{Events: events})
}

// SendFeedback posts a single feedback object
func (h *HTTPTransport) SendFeedback(ctx context.Context, feedback types.Feedback) error {
	return h.post(ctx, FeedbackPath, feedback)
}

func (h *HTTPTransport) post(ctx context.Context, path string, payload any) error {
	timer := metrics.NewTimer()
	status := "error"
	defer func() {
		timer.ObserveDurationVec(metrics.SendDuration, path, status)
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}

	if h.Compress {
		if body, err = gzipBody(body); err != nil {
			return fmt.Errorf("failed to compress body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+h.APIKey)
	req.Header.Set("User-Agent", h.UserAgent)
	if h.Compress {
		req.Header.Set("Content-Encoding", "gzip")
	}
	for key, value := range h.Headers {
		req.Header.Set(key, value)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	status = strconv.Itoa(resp.StatusCode)
	if resp.StatusCode < h.ExpectedStatusMin || resp.StatusCode > h.ExpectedStatusMax {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Path: path, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func gzipBody(body []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WithHeader adds a custom HTTP header
func (h *HTTPTransport) WithHeader(key, value string) *HTTPTransport {
	h.Headers[key] = value
	return h
}

// WithStatusRange sets the accepted status code range
func (h *HTTPTransport) WithStatusRange(min, max int) *HTTPTransport {
	h.ExpectedStatusMin = min
	h.ExpectedStatusMax = max
	return h
}

// WithTimeout sets the HTTP client timeout
func (h *HTTPTransport) WithTimeout(timeout time.Duration) *HTTPTransport {
	h.Client.Timeout = timeout
	return h
}

// WithCompression toggles gzip request bodies
func (h *HTTPTransport) WithCompression(enabled bool) *HTTPTransport {
	h.Compress = enabled
	return h
}
