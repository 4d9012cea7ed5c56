package reviewapp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/review"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// rowInput is one record waiting to be evaluated. failure is set when the
// record could not be produced at all, e.g. OCR gave up on the image.
type rowInput struct {
	ref     csvimport.RowRef
	record  *csvimport.RawRecord
	failure error
}

// rowIterator yields rows in submission order until it returns false
type rowIterator func() (rowInput, bool)

func sliceRows(records []*csvimport.RawRecord) rowIterator {
	i := 0
	return func() (rowInput, bool) {
		if i >= len(records) {
			return rowInput{}, false
		}
		rec := records[i]
		i++
		return rowInput{ref: rec.Ref, record: rec}, true
	}
}

// IngestFile ingests a CSV or Excel upload. Limit breaches and unreadable
// files fail the whole batch with a *csvimport.FormatError and no report.
func (s *IngestionService) IngestFile(ctx context.Context, ownerID uuid.UUID, file FileUpload) (csvimport.Report, error) {
	ctx, b := s.startBatch(ctx, ownerID, bulk.SourceTabular, file.Name, int64(len(file.Data)))

	records, err := s.parseFile(file)
	if err != nil {
		s.finishBatch(ctx, b, csvimport.Report{}, err)
		return csvimport.Report{}, err
	}

	report, err := s.process(ctx, ownerID, s.normalizer, len(records), sliceRows(records))
	s.finishBatch(ctx, b, report, err)
	return report, err
}

func (s *IngestionService) parseFile(file FileUpload) ([]*csvimport.RawRecord, error) {
	if int64(len(file.Data)) > s.limits.MaxFileSize {
		return nil, csvimport.ErrFileTooLarge.WithMessage("파일 크기는 %dMB를 넘을 수 없습니다", s.limits.MaxFileSize>>20)
	}

	opts := s.parserOpts
	if file.Encoding != "" {
		opts = append(append([]csvimport.ParserOption{}, opts...), csvimport.WithEncoding(file.Encoding))
	}
	table, err := csvimport.ParseTable(file.Name, file.Data, opts...)
	if err != nil {
		return nil, err
	}
	if len(table.Records) > s.limits.MaxRows {
		return nil, csvimport.ErrTooManyRows.WithMessage("한 번에 최대 %d개의 리뷰만 등록할 수 있습니다 (현재 %d개)", s.limits.MaxRows, len(table.Records))
	}
	return table.Records, nil
}

// IngestTexts ingests pasted review texts. Blank entries are skipped but keep
// their position, so row numbers match the order the texts were submitted.
func (s *IngestionService) IngestTexts(ctx context.Context, ownerID uuid.UUID, texts []string, defaults BatchDefaults) (csvimport.Report, error) {
	ctx, b := s.startBatch(ctx, ownerID, bulk.SourcePaste, "", 0)

	records := make([]*csvimport.RawRecord, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		records = append(records, s.extractor.Extract(i+1, csvimport.SourcePaste, text))
	}

	var err error
	switch {
	case len(records) == 0:
		err = csvimport.ErrNoDataRows
	case len(records) > s.limits.MaxRows:
		err = csvimport.ErrTooManyRows.WithMessage("한 번에 최대 %d개의 리뷰만 등록할 수 있습니다 (현재 %d개)", s.limits.MaxRows, len(records))
	}
	if err != nil {
		s.finishBatch(ctx, b, csvimport.Report{}, err)
		return csvimport.Report{}, err
	}

	norm := s.normalizer.WithDefaults(defaults.fields())
	report, err := s.process(ctx, ownerID, norm, len(records), sliceRows(records))
	s.finishBatch(ctx, b, report, err)
	return report, err
}

// fetchKeys loads the owner's stored dedup keys once per batch
func (s *IngestionService) fetchKeys(ctx context.Context, ownerID uuid.UUID) (*csvimport.Deduplicator, error) {
	keys, err := callWithRetry(ctx, s.callTimeout, func(ctx context.Context) ([]review.DedupKey, error) {
		return s.reviews.ListDedupKeys(ctx, ownerID)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLookupFailed, err)
	}
	return csvimport.NewDeduplicator(keys), nil
}

func (s *IngestionService) process(ctx context.Context, ownerID uuid.UUID, norm *csvimport.Normalizer, total int, next rowIterator) (csvimport.Report, error) {
	dedup, err := s.fetchKeys(ctx, ownerID)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Error("Failed to load existing review keys", zap.Error(err))
		return csvimport.Report{}, err
	}
	return s.processWith(ctx, dedup, ownerID, norm, total, next)
}

// processWith evaluates rows strictly in order. Cancellation is honored
// between rows; the partial report is returned with ErrIngestionCancelled.
func (s *IngestionService) processWith(ctx context.Context, dedup *csvimport.Deduplicator, ownerID uuid.UUID, norm *csvimport.Normalizer, total int, next rowIterator) (csvimport.Report, error) {
	log := logger.WithLogger(ctx, s.logger)
	start := time.Now()
	log.Info("Ingestion started", zap.Int("rows", total))

	b := csvimport.NewReportBuilder()
	cancelled := func(err error) (csvimport.Report, error) {
		report := b.Build()
		log.Warn("Ingestion cancelled",
			zap.Int("processed", report.Summary.TotalProcessed),
			zap.Int("rows", total),
		)
		return report, fmt.Errorf("%w: %w", ErrIngestionCancelled, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return cancelled(err)
		}
		in, ok := next()
		if !ok {
			break
		}
		// A row whose input was cut short by the cancellation is not counted
		if in.failure != nil && ctx.Err() != nil && errors.Is(in.failure, ctx.Err()) {
			return cancelled(ctx.Err())
		}
		s.evaluateRow(ctx, ownerID, norm, dedup, in, b)
	}

	report := b.Build()
	log.Info("Ingestion finished",
		zap.Int("total", report.Summary.TotalProcessed),
		zap.Int("created", report.Summary.SuccessfullyCreated),
		zap.Int("duplicates", report.Summary.DuplicatesSkipped),
		zap.Int("validation_errors", report.Summary.ValidationErrors),
		zap.Int("processing_errors", report.Summary.ProcessingErrors),
		zap.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

// evaluateRow records exactly one outcome for in. A panic is contained to
// the row it happened in.
func (s *IngestionService) evaluateRow(ctx context.Context, ownerID uuid.UUID, norm *csvimport.Normalizer, dedup *csvimport.Deduplicator, in rowInput, b *csvimport.ReportBuilder) {
	log := logger.WithLogger(ctx, s.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic while processing row",
				zap.Int("row", in.ref.Index),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			b.Failed(in.ref, csvimport.ErrCodeImportProcessing, csvimport.MsgProcessingFailed)
		}
	}()

	if in.failure != nil {
		log.Warn("Row could not be recognized", zap.Int("row", in.ref.Index), zap.Error(in.failure))
		b.Failed(in.ref, csvimport.ErrCodeImportRecognition, csvimport.MsgRecognitionFail)
		return
	}

	outcome := s.validator.Validate(norm.Normalize(in.record))
	if !outcome.Valid {
		b.Invalid(*outcome.Error, in.ref)
		return
	}
	if d := dedup.Decide(outcome.Review); d.Duplicate {
		b.Duplicate(in.ref)
		return
	}

	r, err := review.NewReview(ownerID, outcome.Review.ReviewInput())
	if err != nil {
		log.Error("Validated review rejected by domain", zap.Int("row", in.ref.Index), zap.Error(err))
		b.Failed(in.ref, csvimport.ErrCodeImportProcessing, csvimport.MsgProcessingFailed)
		return
	}

	switch err := s.persist(ctx, r); {
	case err == nil:
		b.Created(in.ref)
	case errors.Is(err, review.ErrConflict):
		b.Duplicate(in.ref)
	default:
		log.Error("Failed to store review", zap.Int("row", in.ref.Index), zap.Error(err))
		b.Failed(in.ref, csvimport.ErrCodeImportProcessing, csvimport.MsgProcessingFailed)
	}
}

// persist stores r on a context detached from caller cancellation so a row
// that started persisting is never cut off halfway.
func (s *IngestionService) persist(ctx context.Context, r *review.Review) error {
	_, err := callWithRetry(context.WithoutCancel(ctx), s.callTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.reviews.Create(ctx, r)
	})
	return err
}
