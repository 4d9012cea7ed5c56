package reviewapp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ocrSlot holds the result for one image; done is closed once it is set
type ocrSlot struct {
	done   chan struct{}
	record *csvimport.RawRecord
	err    error
}

// IngestImages recognizes screenshots with the OCR service and ingests the
// results. Images are recognized concurrently but evaluated in submission
// order, so row numbers are the 1-based image positions.
func (s *IngestionService) IngestImages(ctx context.Context, ownerID uuid.UUID, images []ImageUpload, defaults BatchDefaults, progress ProgressFunc) (csvimport.Report, error) {
	if s.ocr == nil {
		return csvimport.Report{}, ErrOCRUnavailable
	}

	var size int64
	for _, img := range images {
		size += int64(len(img.Data))
	}
	ctx, b := s.startBatch(ctx, ownerID, bulk.SourceOCR, "", size)

	if err := s.checkImages(images); err != nil {
		s.finishBatch(ctx, b, csvimport.Report{}, err)
		return csvimport.Report{}, err
	}

	// Keys are loaded before any image is stored
	dedup, err := s.fetchKeys(ctx, ownerID)
	if err != nil {
		logger.WithLogger(ctx, s.logger).Error("Failed to load existing review keys", zap.Error(err))
		s.finishBatch(ctx, b, csvimport.Report{}, err)
		return csvimport.Report{}, err
	}

	slots, wait := s.recognizeAll(ctx, ownerID, images, progress)
	defer wait()

	i := 0
	next := func() (rowInput, bool) {
		if i >= len(slots) {
			return rowInput{}, false
		}
		slot := slots[i]
		i++
		<-slot.done
		ref := csvimport.RowRef{Index: i, Source: csvimport.SourceOCR}
		return rowInput{ref: ref, record: slot.record, failure: slot.err}, true
	}

	norm := s.normalizer.WithDefaults(defaults.fields())
	report, err := s.processWith(ctx, dedup, ownerID, norm, len(images), next)
	s.finishBatch(ctx, b, report, err)
	return report, err
}

func (s *IngestionService) checkImages(images []ImageUpload) error {
	switch {
	case len(images) == 0:
		return csvimport.ErrNoDataRows
	case len(images) > s.limits.MaxImages:
		return csvimport.ErrTooManyImages.WithMessage("이미지는 한 번에 최대 %d장까지 업로드할 수 있습니다 (현재 %d장)", s.limits.MaxImages, len(images))
	}
	for i, img := range images {
		if int64(len(img.Data)) > s.limits.MaxImageSize {
			return csvimport.ErrFileTooLarge.WithMessage("%d번째 이미지가 %dMB를 넘습니다", i+1, s.limits.MaxImageSize>>20)
		}
	}
	return nil
}

// recognizeAll starts a bounded pool over images and returns one slot per
// image. wait blocks until every started call has returned. Once ctx is
// done, images not yet started are failed without calling the service.
func (s *IngestionService) recognizeAll(ctx context.Context, ownerID uuid.UUID, images []ImageUpload, progress ProgressFunc) ([]*ocrSlot, func()) {
	slots := make([]*ocrSlot, len(images))
	for i := range slots {
		slots[i] = &ocrSlot{done: make(chan struct{})}
	}

	var (
		mu       sync.Mutex
		finished int
	)
	report := func() {
		mu.Lock()
		defer mu.Unlock()
		finished++
		if progress != nil {
			progress(finished, len(images))
		}
	}

	var g errgroup.Group
	g.SetLimit(s.workers)
	feederDone := make(chan struct{})

	go func() {
		defer close(feederDone)
		for i, img := range images {
			slot := slots[i]
			if err := ctx.Err(); err != nil {
				slot.err = err
				close(slot.done)
				continue
			}
			g.Go(func() error {
				defer close(slot.done)
				defer report()
				slot.record, slot.err = s.recognize(ctx, ownerID, i+1, img)
				return nil
			})
		}
		_ = g.Wait()
	}()

	return slots, func() { <-feederDone }
}

// recognize turns one image into a record. A failing image store only costs
// the image URL.
func (s *IngestionService) recognize(ctx context.Context, ownerID uuid.UUID, index int, img ImageUpload) (rec *csvimport.RawRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ocr panic: %v", r)
		}
	}()

	ctx, span := telemetry.StartServiceSpan(ctx, "ocr", "recognize",
		telemetry.WithAttribute(telemetry.SpanAttrImageIndex, index),
		telemetry.WithAttribute(telemetry.SpanAttrContentType, img.ContentType),
	)
	defer span.End()

	started := time.Now()
	result, err := callWithRetry(ctx, s.ocrTimeout, func(ctx context.Context) (csvimport.OCRResult, error) {
		return s.ocr.Recognize(ctx, img)
	})
	s.metrics.RecordOCRCall(ctx, time.Since(started), err)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	rec = s.extractor.MergeOCR(index, result)

	if s.images != nil {
		url, err := callWithRetry(ctx, s.callTimeout, func(ctx context.Context) (string, error) {
			return s.images.Put(ctx, ownerID, img)
		})
		if err != nil {
			logger.WithLogger(ctx, s.logger).Warn("Failed to store screenshot",
				zap.Int("row", index),
				zap.String("image", img.Name),
				zap.Error(err),
			)
		} else {
			rec.ImageURL = url
		}
	}
	return rec, nil
}
