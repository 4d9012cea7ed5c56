package reviewapp

import (
	"fmt"
	"time"

	"github.com/reviewfolio/backend/internal/infrastructure/config"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
)

// ConfigOptions translates ingestion settings into service options. Zero
// values keep the built-in defaults.
func ConfigOptions(cfg config.IngestionConfig) ([]Option, error) {
	opts := []Option{
		WithLimits(Limits{
			MaxFileSize:  cfg.MaxFileSize,
			MaxRows:      cfg.MaxRows,
			MaxImages:    cfg.MaxImages,
			MaxImageSize: cfg.MaxImageSize,
		}),
		WithCallTimeout(cfg.CallTimeout),
		WithOCRTimeout(cfg.OCRTimeout),
		WithWorkers(cfg.Workers),
	}

	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("ingestion timezone %q: %w", cfg.Timezone, err)
		}
		opts = append(opts, WithNormalizer(csvimport.NewNormalizer(csvimport.WithLocation(loc))))
	}

	var extractorOpts []csvimport.ExtractorOption
	if cfg.BusinessMaxLength > 0 {
		extractorOpts = append(extractorOpts, csvimport.WithBusinessMaxRunes(cfg.BusinessMaxLength))
	}
	if cfg.ConfidenceThreshold > 0 {
		extractorOpts = append(extractorOpts, csvimport.WithConfidenceThreshold(cfg.ConfidenceThreshold))
	}
	if len(extractorOpts) > 0 {
		opts = append(opts, WithExtractor(csvimport.NewTextExtractor(extractorOpts...)))
	}
	return opts, nil
}
