// Package client talks to the sample backend: the greeting endpoint and the
// multipart upload-search endpoint with byte-level upload progress.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/file-panel/backend/internal/logging"
)

const (
	GreetingPath = "/api/sample/"
	UploadPath   = "/api/sample/upload-search"

	// FieldName is the multipart part carrying the file.
	FieldName = "file"

	// FallbackMessage is reported when a failed upload carries no usable message.
	FallbackMessage = "Upload failed"
)

var logger = logging.New("client")

// ProgressFunc receives the number of request-body bytes sent so far and the total.
type ProgressFunc func(loaded, total int64)

// UploadError describes a failed upload. Message is suitable for display.
type UploadError struct {
	Status  int
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upload failed with status %d: %s", e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("upload failed: %v", e.Err)
	}
	return e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the backend at baseURL.
// No request timeout is applied; callers bound requests with their context.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Greeting fetches the greeting and returns the body verbatim.
func (c *Client) Greeting(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+GreetingPath, nil)
	if err != nil {
		return "", fmt.Errorf("building greeting request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching greeting: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading greeting: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("greeting returned status %d", resp.StatusCode)
	}
	return string(body), nil
}

// Upload posts r as a single multipart part named "file" with the given filename.
// size must be the exact number of bytes r yields. onProgress may be nil.
// On success the response body is returned as JSON; a non-JSON body is returned
// as a JSON string.
func (c *Client) Upload(ctx context.Context, name string, r io.Reader, size int64, onProgress ProgressFunc) (json.RawMessage, error) {
	body, contentType, total, err := multipartBody(name, r, size)
	if err != nil {
		return nil, &UploadError{Message: FallbackMessage, Err: err}
	}

	var reader io.Reader = body
	if onProgress != nil {
		reader = &progressReader{r: body, total: total, fn: onProgress}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+UploadPath, reader)
	if err != nil {
		return nil, &UploadError{Message: FallbackMessage, Err: err}
	}
	req.ContentLength = total
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	logger.Debugf("uploading %s (%d bytes)", name, size)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &UploadError{Message: FallbackMessage, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UploadError{Status: resp.StatusCode, Message: FallbackMessage, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UploadError{Status: resp.StatusCode, Message: errorMessage(data)}
	}

	return payload(data), nil
}

// multipartBody lays out the request body as header, file bytes, trailer so the
// total length is known before sending.
func multipartBody(name string, r io.Reader, size int64) (io.Reader, string, int64, error) {
	var head bytes.Buffer
	mw := multipart.NewWriter(&head)
	if _, err := mw.CreateFormFile(FieldName, name); err != nil {
		return nil, "", 0, fmt.Errorf("creating form part: %w", err)
	}
	headLen := head.Len()

	if err := mw.Close(); err != nil {
		return nil, "", 0, fmt.Errorf("closing multipart writer: %w", err)
	}
	tail := append([]byte(nil), head.Bytes()[headLen:]...)
	head.Truncate(headLen)

	total := int64(headLen) + size + int64(len(tail))
	body := io.MultiReader(&head, io.LimitReader(r, size), bytes.NewReader(tail))
	return body, mw.FormDataContentType(), total, nil
}

// errorMessage prefers the server's "error" field, then "message".
func errorMessage(body []byte) string {
	var fields map[string]any
	if err := json.Unmarshal(body, &fields); err != nil {
		return FallbackMessage
	}
	for _, key := range []string{"error", "message"} {
		if s, ok := fields[key].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	return FallbackMessage
}

func payload(data []byte) json.RawMessage {
	if json.Valid(data) {
		return json.RawMessage(data)
	}
	quoted, _ := json.Marshal(string(data))
	return json.RawMessage(quoted)
}

// progressReader reports cumulative bytes read. The transport reads the body
// from a single goroutine, so reports for one request arrive in order.
type progressReader struct {
	r      io.Reader
	loaded int64
	total  int64
	fn     ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.fn(p.loaded, p.total)
	}
	return n, err
}
