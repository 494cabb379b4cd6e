// Package aiclient talks to the external pose analysis service.
package aiclient

import (
	"alcyxob/motion-coach/internal/config"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const (
	// maxUpstreamBody caps how much of an error body is kept for the caller.
	maxUpstreamBody = 64 << 10
	// maxResponseBody caps a 2xx answer. Analyses carry per-frame keypoints and run to
	// several megabytes.
	maxResponseBody = 64 << 20
)

// ErrInvalidResponse is returned when a 2xx response lacks the expected id field.
var ErrInvalidResponse = errors.New("invalid response")

// UpstreamError carries a non-2xx answer of the AI service.
type UpstreamError struct {
	Operation   string
	StatusCode  int
	Body        []byte
	ContentType string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ai %s: upstream status %d", e.Operation, e.StatusCode)
}

// Observer receives one observation per call. *metrics.Metrics satisfies it.
type Observer interface {
	ObserveAICall(operation, outcome string, d time.Duration)
}

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	observer   Observer
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func New(cfg config.AIConfig, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.Key,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HTTPClient exposes the underlying client, mainly so tests can mock its transport.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// ProcessRequest is the media forwarded to POST /process.
type ProcessRequest struct {
	UserID       string
	ExerciseID   string
	OriginalPath string // Storage key of the saved file
	URL          string // Public URL of the saved file
	FileType     string // "image" or "video"
	FileName     string
	ContentType  string
	File         io.Reader
}

// ProcessResponse is the record created by the AI service.
type ProcessResponse struct {
	ID  string
	Raw map[string]interface{}
}

// Process forwards an uploaded file to the AI service.
func (c *Client) Process(ctx context.Context, req ProcessRequest) (*ProcessResponse, error) {
	// Buffered so the request carries a Content-Length; uploads are capped upstream.
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := writeProcessForm(mw, req); err != nil {
		return nil, fmt.Errorf("ai process: build form: %w", err)
	}

	raw, err := c.do(ctx, "process", "/process", mw.FormDataContentType(), &buf)
	if err != nil {
		return nil, err
	}
	id := recordID(raw)
	if id == "" {
		return nil, fmt.Errorf("ai process: %w: missing id", ErrInvalidResponse)
	}
	return &ProcessResponse{ID: id, Raw: raw}, nil
}

func writeProcessForm(mw *multipart.Writer, req ProcessRequest) error {
	fields := []struct{ name, value string }{
		{"userId", req.UserID},
		{"original_path", req.OriginalPath},
		{"url", req.URL},
		{"exercise_id", req.ExerciseID},
		{"fileType", req.FileType},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(req.FileName)))
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, req.File); err != nil {
		return err
	}
	return mw.Close()
}

// AnalyzeRequest is the JSON body of POST /analyze.
type AnalyzeRequest struct {
	Email       string `json:"email"`
	VideoID     string `json:"video_id"`
	ReferenceID string `json:"reference_id"`
}

type AnalyzeResponse struct {
	AnalysisID string
	Raw        map[string]interface{}
}

// Analyze asks the AI service to compare a video against a reference.
func (c *Client) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, "analyze", "/analyze", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	id := stringField(raw["analysis_id"])
	if id == "" {
		return nil, fmt.Errorf("ai analyze: %w: missing analysis_id", ErrInvalidResponse)
	}
	return &AnalyzeResponse{AnalysisID: id, Raw: raw}, nil
}

// do sends one request and decodes a JSON object answer. It never retries.
func (c *Client) do(ctx context.Context, op, path, contentType string, body io.Reader) (raw map[string]interface{}, err error) {
	start := time.Now()
	outcome := "success"
	defer func() {
		if c.observer != nil {
			c.observer.ObserveAICall(op, outcome, time.Since(start))
		}
	}()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		outcome = "error"
		return nil, err
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		outcome = "network_error"
		return nil, fmt.Errorf("ai %s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "upstream_error"
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
		return nil, &UpstreamError{
			Operation:   op,
			StatusCode:  resp.StatusCode,
			Body:        payload,
			ContentType: resp.Header.Get("Content-Type"),
		}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		outcome = "network_error"
		return nil, fmt.Errorf("ai %s: read response: %w", op, err)
	}
	if len(payload) > maxResponseBody {
		outcome = "invalid_response"
		return nil, fmt.Errorf("ai %s: %w: body exceeds %d bytes", op, ErrInvalidResponse, maxResponseBody)
	}

	if err := json.Unmarshal(payload, &raw); err != nil || raw == nil {
		outcome = "invalid_response"
		return nil, fmt.Errorf("ai %s: %w: body is not a JSON object", op, ErrInvalidResponse)
	}
	return raw, nil
}

// recordID accepts "id" or "_id", either as a string or as an extended JSON {"$oid": "..."}.
func recordID(raw map[string]interface{}) string {
	for _, key := range []string{"id", "_id"} {
		if id := stringField(raw[key]); id != "" {
			return id
		}
		if m, ok := raw[key].(map[string]interface{}); ok {
			if id := stringField(m["$oid"]); id != "" {
				return id
			}
		}
	}
	return ""
}

func stringField(v interface{}) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return fmt.Sprintf("%.0f", s)
	}
	return ""
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
