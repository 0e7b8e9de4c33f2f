// Package nutrient is a thin client for the hosted Nutrient document API.
// The gallery proxies a handful of endpoints through it: certificate
// listing, document-to-markdown conversion, and signing. Requests carry the
// account API key as a bearer token; responses pass through untouched so
// the proxy layer can surface upstream status and body verbatim.
//
// The client adds no retries, caching, or queuing. One call in, one call
// out.
package nutrient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/hazyhaar/vitrine/safe"
)

// DefaultAPIBase is the hosted API used when no override is configured.
const DefaultAPIBase = "https://api.nutrient.io"

// ErrNoAPIKey is returned by every call when the client has no API key.
// The proxy layer maps it to its fixed configuration-error response.
var ErrNoAPIKey = errors.New("nutrient: NUTRIENT_API_KEY is not configured")

// UpstreamError carries a non-2xx upstream response through to the caller.
type UpstreamError struct {
	Status int
	Body   []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("nutrient: upstream status %d", e.Status)
}

// Config holds the settings needed to create a Client.
type Config struct {
	// APIBase overrides DefaultAPIBase.
	APIBase string

	// Key is the account API key. Empty is allowed at construction so a
	// keyless gallery still serves local demos; calls then fail with
	// ErrNoAPIKey.
	Key string

	// HTTPClient overrides the default client (60s timeout; conversion of
	// large documents is slow).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client calls the Nutrient API.
type Client struct {
	base   string
	key    string
	client *http.Client
	logger *slog.Logger
}

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.APIBase == "" {
		cfg.APIBase = DefaultAPIBase
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		base:   cfg.APIBase,
		key:    cfg.Key,
		client: cfg.HTTPClient,
		logger: cfg.Logger,
	}
}

// Configured reports whether the client holds an API key.
func (c *Client) Configured() bool { return c.key != "" }

// Certificates fetches the account's signing certificates. The 2xx response
// body is returned verbatim.
func (c *Client) Certificates(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/i/certificates", "", nil)
}

// buildInstructions is the processing request the build endpoint expects.
// The "file" in parts names the multipart field carrying the document.
type buildInstructions struct {
	Parts  []buildPart `json:"parts"`
	Output buildOutput `json:"output"`
}

type buildPart struct {
	File string `json:"file"`
}

type buildOutput struct {
	Type string `json:"type"`
}

// BuildMarkdown converts a document to markdown via the build endpoint and
// returns the markdown text.
func (c *Client) BuildMarkdown(ctx context.Context, file io.Reader, filename string) (string, error) {
	if c.key == "" {
		return "", ErrNoAPIKey
	}

	instr, err := json.Marshal(buildInstructions{
		Parts:  []buildPart{{File: "file"}},
		Output: buildOutput{Type: "markdown"},
	})
	if err != nil {
		return "", fmt.Errorf("nutrient: instructions: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("instructions", string(instr)); err != nil {
		return "", fmt.Errorf("nutrient: write instructions: %w", err)
	}
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("nutrient: create file part: %w", err)
	}
	if _, err := io.Copy(fw, file); err != nil {
		return "", fmt.Errorf("nutrient: copy file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("nutrient: finish multipart: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/build", mw.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Sign submits a signing request and returns the upstream response
// verbatim.
func (c *Client) Sign(ctx context.Context, payload []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/sign", "application/json", bytes.NewReader(payload))
}

// do issues one authenticated request. Non-2xx responses come back as
// *UpstreamError with the body preserved for passthrough.
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	if c.key == "" {
		return nil, ErrNoAPIKey
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("nutrient: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nutrient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := safe.ReadAllCapped(resp.Body, safe.MaxResponseBody)
	if err != nil {
		return nil, fmt.Errorf("nutrient: read response: %w", err)
	}

	c.logger.Debug("nutrient: upstream call",
		"method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: data}
	}
	return data, nil
}
