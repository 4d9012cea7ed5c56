// Package ocr talks to the screenshot text recognition service.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/domain/shared"
	infraconfig "github.com/reviewfolio/backend/internal/infrastructure/config"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxResponseSize limits the recognition response body
const maxResponseSize = 1 << 20

// imageField is the multipart field carrying the screenshot
const imageField = "image"

var (
	// ErrServiceUnavailable covers transport failures, throttling and 5xx answers
	ErrServiceUnavailable = errors.New("ocr: service unavailable")
	// ErrRequestRejected is a 4xx answer; retrying the same image will not help
	ErrRequestRejected = fmt.Errorf("ocr: request rejected: %w", shared.ErrInvalidInput)
	// ErrInvalidResponse is a 2xx answer that is not a recognition result
	ErrInvalidResponse = errors.New("ocr: invalid response")
)

// Ensure Client implements OCRService
var _ reviewapp.OCRService = (*Client)(nil)

// Client posts screenshots to the OCR endpoint as multipart form data
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a client from configuration. RequestsPerSec of zero
// disables pacing.
func NewClient(cfg infraconfig.OCRConfig, opts ...Option) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("ocr endpoint is required")
	}
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid ocr endpoint %q", cfg.Endpoint)
	}

	limit := rate.Inf
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = max(1, int(cfg.RequestsPerSec))
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Recognize sends one image and decodes the recognized text
func (c *Client) Recognize(ctx context.Context, img reviewapp.ImageUpload) (csvimport.OCRResult, error) {
	var result csvimport.OCRResult
	if len(img.Data) == 0 {
		return result, fmt.Errorf("%w: empty image", ErrRequestRejected)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return result, err
	}

	body, contentType, err := encodeImage(img)
	if err != nil {
		return result, fmt.Errorf("ocr: failed to encode image: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, body)
	if err != nil {
		return result, fmt.Errorf("ocr: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		return result, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return result, fmt.Errorf("%w: failed to read response: %v", ErrServiceUnavailable, err)
	}

	c.logger.Debug("OCR request finished",
		zap.String("image", img.Name),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return result, fmt.Errorf("%w: HTTP %d", ErrServiceUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return result, fmt.Errorf("%w: HTTP %d", ErrRequestRejected, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, &result); err != nil {
		return csvimport.OCRResult{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return result, nil
}

func encodeImage(img reviewapp.ImageUpload) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)

	name := img.Name
	if name == "" {
		name = "image"
	}
	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, imageField, escapeQuotes(name)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
