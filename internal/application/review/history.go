package reviewapp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/shared"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const historySaveTimeout = 5 * time.Second

// batch follows one ingestion call from entry to its final report
type batch struct {
	source  bulk.IngestionSource
	run     *bulk.IngestionRun
	span    trace.Span
	started time.Time
}

// startBatch opens the batch span and history run. The returned context
// carries the span so row-level store calls nest under it.
func (s *IngestionService) startBatch(ctx context.Context, ownerID uuid.UUID, source bulk.IngestionSource, fileName string, size int64) (context.Context, *batch) {
	ctx, span := telemetry.StartServiceSpan(ctx, "review_ingestion", string(source),
		telemetry.WithAttribute(telemetry.SpanAttrOwnerID, ownerID),
		telemetry.WithAttribute(telemetry.SpanAttrSource, string(source)),
		telemetry.WithAttribute(telemetry.SpanAttrFileSize, size),
	)
	if fileName != "" {
		telemetry.SetAttributes(span, telemetry.SpanAttrFileName, fileName)
	}

	b := &batch{source: source, span: span, started: time.Now()}
	if b.run = s.startRun(ctx, ownerID, source, fileName, size); b.run != nil {
		telemetry.SetAttributes(span, telemetry.SpanAttrRunID, b.run.ID)
	}
	return ctx, b
}

// finishBatch closes the run, records metrics and ends the span
func (s *IngestionService) finishBatch(ctx context.Context, b *batch, report csvimport.Report, err error) {
	s.finishRun(ctx, b.run, report, err)

	counters := countersOf(report)
	status := counters.CompletionStatus()
	switch {
	case errors.Is(err, ErrIngestionCancelled):
		status = bulk.RunStatusCancelled
	case err != nil:
		status = bulk.RunStatusFailed
	}

	s.metrics.RecordBatch(ctx, string(b.source), string(status), telemetry.BatchCounts{
		Created:          counters.Created,
		Duplicates:       counters.Duplicates,
		ValidationErrors: counters.ValidationErrors,
		ProcessingErrors: counters.ProcessingErrors,
	}, time.Since(b.started))

	telemetry.SetAttributes(b.span,
		telemetry.SpanAttrStatus, string(status),
		telemetry.SpanAttrItems, counters.TotalProcessed,
		telemetry.SpanAttrCreated, counters.Created,
		telemetry.SpanAttrDuplicates, counters.Duplicates,
		telemetry.SpanAttrRowErrors, counters.Errors(),
	)
	if err != nil && status != bulk.RunStatusCancelled {
		telemetry.RecordError(b.span, err)
	}
	b.span.End()
}

// startRun records the start of a batch. It returns nil when history is
// disabled or could not be created; ingestion goes on either way.
func (s *IngestionService) startRun(ctx context.Context, ownerID uuid.UUID, source bulk.IngestionSource, fileName string, fileSize int64) *bulk.IngestionRun {
	if s.history == nil {
		return nil
	}
	run, err := bulk.NewIngestionRun(ownerID, source, fileName, fileSize)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to create ingestion run", zap.Error(err))
		return nil
	}
	if err := run.StartProcessing(); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to start ingestion run", zap.Error(err))
		return nil
	}
	s.saveRun(ctx, run)
	return run
}

// finishRun moves run to its terminal state based on the batch result
func (s *IngestionService) finishRun(ctx context.Context, run *bulk.IngestionRun, report csvimport.Report, err error) {
	if run == nil {
		return
	}
	counters := countersOf(report)
	details := errorDetailsOf(report.RowErrors)

	var stateErr error
	switch {
	case err == nil:
		stateErr = run.Complete(counters, details)
	case errors.Is(err, ErrIngestionCancelled):
		stateErr = run.Cancel(counters, details)
	default:
		stateErr = run.Fail(failureReason(err), counters, details)
	}
	if stateErr != nil {
		logger.WithLogger(ctx, s.logger).Warn("Ingestion run in unexpected state", zap.Error(stateErr))
		return
	}
	s.saveRun(ctx, run)
}

// saveRun persists run; a failure is logged and never reaches the caller
func (s *IngestionService) saveRun(ctx context.Context, run *bulk.IngestionRun) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historySaveTimeout)
	defer cancel()
	if err := s.history.Save(sctx, run); err != nil {
		logger.WithLogger(ctx, s.logger).Warn("Failed to save ingestion run",
			zap.String("run_id", run.ID.String()),
			zap.String("status", string(run.Status)),
			zap.Error(err),
		)
	}
}

func countersOf(r csvimport.Report) bulk.Counters {
	return bulk.Counters{
		TotalProcessed:   r.Summary.TotalProcessed,
		Created:          r.Summary.SuccessfullyCreated,
		Duplicates:       r.Summary.DuplicatesSkipped,
		ValidationErrors: r.Summary.ValidationErrors,
		ProcessingErrors: r.Summary.ProcessingErrors,
	}
}

func errorDetailsOf(rowErrors []csvimport.RowError) []bulk.ErrorDetail {
	details := make([]bulk.ErrorDetail, len(rowErrors))
	for i, e := range rowErrors {
		details[i] = bulk.ErrorDetail{
			Row:     e.Row,
			Column:  e.Column,
			Code:    e.Code,
			Message: e.Message,
			Value:   e.Value,
		}
	}
	return details
}

// failureReason keeps user-facing messages and hides internal ones
func failureReason(err error) string {
	var fe *csvimport.FormatError
	if errors.As(err, &fe) {
		return fe.Message
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return csvimport.MsgUnexpected
}

// HistoryService reads the ingestion runs of an owner
type HistoryService struct {
	runs bulk.IngestionRunRepository
}

// NewHistoryService creates a HistoryService
func NewHistoryService(runs bulk.IngestionRunRepository) *HistoryService {
	return &HistoryService{runs: runs}
}

// ListFilter holds the raw filters of a history query. Unknown source or
// status values are ignored.
type ListFilter struct {
	Source      string
	Status      string
	StartedFrom *time.Time
	StartedTo   *time.Time
	SortBy      string
	SortOrder   string
}

// List returns one page of the owner's runs, newest first unless the
// filter names another order
func (s *HistoryService) List(ctx context.Context, ownerID uuid.UUID, filter ListFilter, page, pageSize int) (shared.Paginated[*bulk.IngestionRun], error) {
	page, pageSize = shared.NormalizePage(page, pageSize)

	repoFilter := bulk.IngestionRunFilter{
		StartedFrom: filter.StartedFrom,
		StartedTo:   filter.StartedTo,
		SortBy:      filter.SortBy,
		SortOrder:   filter.SortOrder,
	}
	if source := bulk.IngestionSource(filter.Source); source.IsValid() {
		repoFilter.Source = &source
	}
	if status := bulk.RunStatus(filter.Status); status.IsValid() {
		repoFilter.Status = &status
	}

	result, err := s.runs.FindAll(ctx, ownerID, repoFilter, page, pageSize)
	if err != nil {
		return shared.Paginated[*bulk.IngestionRun]{}, err
	}
	return shared.NewPaginated(result.Items, result.TotalCount, page, pageSize), nil
}

// Get returns one run of the owner, or shared.ErrNotFound
func (s *HistoryService) Get(ctx context.Context, ownerID, id uuid.UUID) (*bulk.IngestionRun, error) {
	return s.runs.FindByID(ctx, ownerID, id)
}
