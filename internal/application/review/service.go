// Package reviewapp drives bulk review ingestion: it turns an uploaded
// spreadsheet, a list of pasted texts or a set of screenshots into stored
// reviews and an ingestion report.
package reviewapp

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/review"
	"github.com/reviewfolio/backend/internal/domain/shared"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrIngestionCancelled is returned with the partial report when the caller
// cancels a batch between rows.
var ErrIngestionCancelled = errors.New("ingestion cancelled")

// Batch-level errors that are not about the input itself
var (
	ErrLookupFailed   = shared.NewDomainError("DEDUP_LOOKUP_FAILED", "기존 리뷰를 확인하지 못했습니다. 잠시 후 다시 시도해 주세요")
	ErrOCRUnavailable = shared.NewDomainError("OCR_UNAVAILABLE", "이미지 인식 서비스를 사용할 수 없습니다")
)

// OCRService recognizes the text of one screenshot
type OCRService interface {
	Recognize(ctx context.Context, img ImageUpload) (csvimport.OCRResult, error)
}

// ImageStore keeps screenshot bytes and returns the URL they are served from
type ImageStore interface {
	Put(ctx context.Context, ownerID uuid.UUID, img ImageUpload) (string, error)
}

// FileUpload is a spreadsheet submitted for ingestion
type FileUpload struct {
	Name     string
	Data     []byte
	Encoding string // optional, e.g. "euc-kr"; sniffed when empty
}

// ImageUpload is one screenshot submitted for OCR ingestion
type ImageUpload struct {
	Name        string
	ContentType string
	Data        []byte
}

// BatchDefaults are the platform and business a user picked for a paste or
// OCR batch. When set they win over values guessed from the text.
type BatchDefaults struct {
	Platform string
	Business string
}

func (d BatchDefaults) fields() csvimport.FieldDefaults {
	return csvimport.FieldDefaults{Platform: d.Platform, Business: d.Business, Override: true}
}

// ProgressFunc receives the number of recognized images so far. Calls are
// serialized and done never decreases.
type ProgressFunc func(done, total int)

// Limits bound the size of one batch
type Limits struct {
	MaxFileSize  int64
	MaxRows      int
	MaxImages    int
	MaxImageSize int64
}

// DefaultLimits returns the limits used when none are configured
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:  5 << 20,
		MaxRows:      1000,
		MaxImages:    20,
		MaxImageSize: 5 << 20,
	}
}

const (
	defaultCallTimeout = 10 * time.Second
	defaultOCRTimeout  = 30 * time.Second
	defaultWorkers     = 4
)

// IngestionService runs ingestion batches for one owner at a time
type IngestionService struct {
	reviews     review.Repository
	history     bulk.IngestionRunRepository
	ocr         OCRService
	images      ImageStore
	normalizer  *csvimport.Normalizer
	validator   *csvimport.Validator
	extractor   *csvimport.TextExtractor
	parserOpts  []csvimport.ParserOption
	limits      Limits
	callTimeout time.Duration
	ocrTimeout  time.Duration
	workers     int
	metrics     *telemetry.IngestionMetrics
	logger      *zap.Logger
}

// Option configures an IngestionService
type Option func(*IngestionService)

// WithLogger sets the fallback logger used when the context carries none
func WithLogger(l *zap.Logger) Option {
	return func(s *IngestionService) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records batch and OCR metrics
func WithMetrics(m *telemetry.IngestionMetrics) Option {
	return func(s *IngestionService) { s.metrics = m }
}

// WithOCR enables image ingestion
func WithOCR(ocr OCRService) Option {
	return func(s *IngestionService) { s.ocr = ocr }
}

// WithImageStore stores screenshots so OCR reviews carry an image URL
func WithImageStore(store ImageStore) Option {
	return func(s *IngestionService) { s.images = store }
}

// WithHistory records every batch as an ingestion run
func WithHistory(repo bulk.IngestionRunRepository) Option {
	return func(s *IngestionService) { s.history = repo }
}

// WithLimits overrides the batch limits; zero fields keep their defaults
func WithLimits(l Limits) Option {
	return func(s *IngestionService) {
		if l.MaxFileSize > 0 {
			s.limits.MaxFileSize = l.MaxFileSize
		}
		if l.MaxRows > 0 {
			s.limits.MaxRows = l.MaxRows
		}
		if l.MaxImages > 0 {
			s.limits.MaxImages = l.MaxImages
		}
		if l.MaxImageSize > 0 {
			s.limits.MaxImageSize = l.MaxImageSize
		}
	}
}

// WithCallTimeout sets the per-attempt timeout of persistence calls
func WithCallTimeout(d time.Duration) Option {
	return func(s *IngestionService) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithOCRTimeout sets the per-attempt timeout of OCR calls
func WithOCRTimeout(d time.Duration) Option {
	return func(s *IngestionService) {
		if d > 0 {
			s.ocrTimeout = d
		}
	}
}

// WithWorkers sets how many images are recognized concurrently
func WithWorkers(n int) Option {
	return func(s *IngestionService) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithNormalizer replaces the default normalizer
func WithNormalizer(n *csvimport.Normalizer) Option {
	return func(s *IngestionService) {
		if n != nil {
			s.normalizer = n
		}
	}
}

// WithExtractor replaces the default text extractor
func WithExtractor(e *csvimport.TextExtractor) Option {
	return func(s *IngestionService) {
		if e != nil {
			s.extractor = e
		}
	}
}

// WithParserOptions passes options to the tabular parser
func WithParserOptions(opts ...csvimport.ParserOption) Option {
	return func(s *IngestionService) {
		s.parserOpts = append(s.parserOpts, opts...)
	}
}

// NewIngestionService creates a service persisting through reviews
func NewIngestionService(reviews review.Repository, opts ...Option) *IngestionService {
	s := &IngestionService{
		reviews:     reviews,
		normalizer:  csvimport.NewNormalizer(),
		validator:   csvimport.NewValidator(),
		extractor:   csvimport.NewTextExtractor(),
		limits:      DefaultLimits(),
		callTimeout: defaultCallTimeout,
		ocrTimeout:  defaultOCRTimeout,
		workers:     defaultWorkers,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Limits returns the effective batch limits
func (s *IngestionService) Limits() Limits {
	return s.limits
}
