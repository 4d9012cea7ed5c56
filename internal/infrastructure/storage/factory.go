package storage

import (
	"context"
	"fmt"
	"strings"

	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	infraconfig "github.com/reviewfolio/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewImageStore builds the screenshot store for the configuration.
// It returns nil when storage is disabled so OCR reviews carry no image URL.
func NewImageStore(ctx context.Context, cfg *infraconfig.StorageConfig, logger *zap.Logger) (reviewapp.ImageStore, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("Image storage disabled")
		return nil, nil
	}
	if cfg.Provider == infraconfig.StorageProviderMemory {
		store := NewStubImageStore()
		if cfg.PublicBaseURL != "" {
			store.BaseURL = strings.TrimRight(cfg.PublicBaseURL, "/")
		}
		logger.Warn("Using in-memory image storage, screenshots are lost on restart",
			zap.String("base_url", store.BaseURL))
		return store, nil
	}

	store, err := NewS3ImageStore(cfg, WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("storage bucket %q unavailable: %w", cfg.Bucket, err)
	}

	logger.Info("Image storage ready",
		zap.String("bucket", store.GetBucket()),
		zap.String("base_url", store.baseURL),
	)
	return store, nil
}
