package ocr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/domain/shared"
	"github.com/reviewfolio/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg config.OCRConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.Endpoint = srv.URL + "/v1/recognize"
	c, err := NewClient(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return c
}

var screenshot = reviewapp.ImageUpload{
	Name:        "리뷰 캡처.png",
	ContentType: "image/png",
	Data:        []byte("\x89PNG fake"),
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(config.OCRConfig{})
	assert.ErrorContains(t, err, "endpoint is required")

	_, err = NewClient(config.OCRConfig{Endpoint: "ftp://ocr"})
	assert.ErrorContains(t, err, "invalid ocr endpoint")

	c, err := NewClient(config.OCRConfig{Endpoint: "http://ocr:8080", RequestsPerSec: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 1, c.limiter.Burst())
	assert.Equal(t, 30*time.Second, c.httpClient.Timeout)
}

func TestClient_Recognize(t *testing.T) {
	t.Run("posts the image and decodes the result", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/recognize", r.URL.Path)
			assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

			file, header, err := r.FormFile(imageField)
			require.NoError(t, err)
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, screenshot.Data, data)
			assert.Equal(t, "리뷰 캡처.png", header.Filename)
			assert.Equal(t, "image/png", header.Header.Get("Content-Type"))

			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"text":"★★★★★ 카페 A 맛있어요","parsed":{"platform":"naver","rating":5},"confidence":0.92}`)
		}, config.OCRConfig{APIKey: "secret"})

		result, err := c.Recognize(context.Background(), screenshot)
		require.NoError(t, err)
		assert.Equal(t, "★★★★★ 카페 A 맛있어요", result.Text)
		require.NotNil(t, result.Parsed)
		assert.Equal(t, "naver", result.Parsed.Platform)
		require.NotNil(t, result.Parsed.Rating)
		assert.Equal(t, 5, *result.Parsed.Rating)
		require.NotNil(t, result.Confidence)
		assert.InDelta(t, 0.92, *result.Confidence, 1e-9)
	})

	t.Run("text only response", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			_, _ = io.WriteString(w, `{"text":"좋아요"}`)
		}, config.OCRConfig{})

		result, err := c.Recognize(context.Background(), screenshot)
		require.NoError(t, err)
		assert.Nil(t, result.Parsed)
		assert.Nil(t, result.Confidence)
	})

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		permanent bool
	}{
		{"server error", http.StatusBadGateway, "", ErrServiceUnavailable, false},
		{"throttled", http.StatusTooManyRequests, "", ErrServiceUnavailable, false},
		{"rejected", http.StatusUnprocessableEntity, `{"error":"not an image"}`, ErrRequestRejected, true},
		{"garbage body", http.StatusOK, "<html>", ErrInvalidResponse, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}, config.OCRConfig{})

			_, err := c.Recognize(context.Background(), screenshot)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.permanent, errors.Is(err, shared.ErrInvalidInput))
		})
	}

	t.Run("empty image is rejected without a request", func(t *testing.T) {
		var calls atomic.Int32
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}, config.OCRConfig{})

		_, err := c.Recognize(context.Background(), reviewapp.ImageUpload{Name: "a.png"})
		assert.ErrorIs(t, err, ErrRequestRejected)
		assert.Zero(t, calls.Load())
	})

	t.Run("unreachable service", func(t *testing.T) {
		c, err := NewClient(config.OCRConfig{Endpoint: "http://127.0.0.1:1/ocr", Timeout: time.Second})
		require.NoError(t, err)

		_, err = c.Recognize(context.Background(), screenshot)
		assert.ErrorIs(t, err, ErrServiceUnavailable)
	})

	t.Run("cancelled context", func(t *testing.T) {
		release := make(chan struct{})
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.Copy(io.Discard, r.Body)
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, config.OCRConfig{})
		// Cleanups run last-in first-out, so the handler returns before the
		// server is closed.
		t.Cleanup(func() { close(release) })

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		_, err := c.Recognize(ctx, screenshot)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestClient_RatePacing(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, `{"text":"ok"}`)
	}, config.OCRConfig{RequestsPerSec: 1, Burst: 1})

	_, err := c.Recognize(context.Background(), screenshot)
	require.NoError(t, err)

	// The second call would wait about a second for a token.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = c.Recognize(ctx, screenshot)
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
