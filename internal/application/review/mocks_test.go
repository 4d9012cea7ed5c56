package reviewapp

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/review"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/stretchr/testify/mock"
)

// MockReviewRepository is a mock implementation of review.Repository
type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Create(ctx context.Context, r *review.Review) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockReviewRepository) ListDedupKeys(ctx context.Context, ownerID uuid.UUID) ([]review.DedupKey, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]review.DedupKey), args.Error(1)
}

func (m *MockReviewRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).(int64), args.Error(1)
}

// MockRunRepository is a mock implementation of bulk.IngestionRunRepository
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*bulk.IngestionRun, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bulk.IngestionRun), args.Error(1)
}

func (m *MockRunRepository) FindAll(ctx context.Context, ownerID uuid.UUID, filter bulk.IngestionRunFilter, page, pageSize int) (*bulk.IngestionRunListResult, error) {
	args := m.Called(ctx, ownerID, filter, page, pageSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bulk.IngestionRunListResult), args.Error(1)
}

func (m *MockRunRepository) Save(ctx context.Context, run *bulk.IngestionRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

// MockOCRService is a mock implementation of OCRService
type MockOCRService struct {
	mock.Mock
}

func (m *MockOCRService) Recognize(ctx context.Context, img ImageUpload) (csvimport.OCRResult, error) {
	args := m.Called(ctx, img)
	return args.Get(0).(csvimport.OCRResult), args.Error(1)
}

// MockImageStore is a mock implementation of ImageStore
type MockImageStore struct {
	mock.Mock
}

func (m *MockImageStore) Put(ctx context.Context, ownerID uuid.UUID, img ImageUpload) (string, error) {
	args := m.Called(ctx, ownerID, img)
	return args.String(0), args.Error(1)
}

// recordedStatuses captures the status of every saved run at save time
type recordedStatuses struct {
	mu       sync.Mutex
	statuses []bulk.RunStatus
	last     *bulk.IngestionRun
}

func (r *recordedStatuses) capture(args mock.Arguments) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := args.Get(1).(*bulk.IngestionRun)
	r.statuses = append(r.statuses, run.Status)
	r.last = run
}

func businessIs(name string) any {
	return mock.MatchedBy(func(r *review.Review) bool { return r.Business == name })
}
