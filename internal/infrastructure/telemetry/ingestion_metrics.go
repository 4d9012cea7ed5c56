package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// IngestionMeterName is the instrumentation scope of the ingestion metrics.
const IngestionMeterName = "review-backend/ingestion"

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// Row outcomes reported on review_ingestion_rows_total.
const (
	OutcomeCreated         = "created"
	OutcomeDuplicate       = "duplicate"
	OutcomeValidationError = "validation_error"
	OutcomeProcessingError = "processing_error"
)

// BatchCounts are the per-outcome row totals of one finished batch.
type BatchCounts struct {
	Created          int
	Duplicates       int
	ValidationErrors int
	ProcessingErrors int
}

// IngestionMetrics records batch and OCR activity. A nil *IngestionMetrics
// is valid and records nothing.
type IngestionMetrics struct {
	batches       *Counter
	rows          *Counter
	batchDuration *Histogram
	ocrDuration   *Histogram
}

// NewIngestionMetrics registers the ingestion instruments on meter.
func NewIngestionMetrics(meter metric.Meter) (*IngestionMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	batches, err := NewCounter(meter, "review_ingestion_batches_total",
		"Finished ingestion batches by source and final status", "{batch}")
	if err != nil {
		return nil, err
	}
	rows, err := NewCounter(meter, "review_ingestion_rows_total",
		"Processed review rows by source and outcome", "{row}")
	if err != nil {
		return nil, err
	}
	batchDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "review_ingestion_batch_duration_seconds",
		Description: "Wall time of one ingestion batch",
		Unit:        "s",
		Boundaries:  BatchDurationBuckets,
	})
	if err != nil {
		return nil, err
	}
	ocrDuration, err := NewHistogram(meter, HistogramOpts{
		Name:        "review_ocr_call_duration_seconds",
		Description: "Latency of one OCR recognition call",
		Unit:        "s",
		Boundaries:  OCRDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	return &IngestionMetrics{
		batches:       batches,
		rows:          rows,
		batchDuration: batchDuration,
		ocrDuration:   ocrDuration,
	}, nil
}

// RecordBatch records a finished batch. status is the run status
// (completed, failed, cancelled).
func (m *IngestionMetrics) RecordBatch(ctx context.Context, source, status string, counts BatchCounts, d time.Duration) {
	if m == nil {
		return
	}
	src := AttrSource.String(source)

	m.batches.Inc(ctx, src, AttrStatus.String(status))
	m.batchDuration.RecordDuration(ctx, d, src)

	for outcome, n := range map[string]int{
		OutcomeCreated:         counts.Created,
		OutcomeDuplicate:       counts.Duplicates,
		OutcomeValidationError: counts.ValidationErrors,
		OutcomeProcessingError: counts.ProcessingErrors,
	} {
		if n > 0 {
			m.rows.Add(ctx, int64(n), src, AttrOutcome.String(outcome))
		}
	}
}

// RecordOCRCall records the latency of one recognition call.
func (m *IngestionMetrics) RecordOCRCall(ctx context.Context, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ocrDuration.RecordDuration(ctx, d, AttrStatus.String(status))
}
