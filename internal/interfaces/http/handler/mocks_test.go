package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/shared"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockIngester is a mock implementation of Ingester
type MockIngester struct {
	mock.Mock
}

func (m *MockIngester) IngestFile(ctx context.Context, ownerID uuid.UUID, file reviewapp.FileUpload) (csvimport.Report, error) {
	args := m.Called(ctx, ownerID, file)
	return args.Get(0).(csvimport.Report), args.Error(1)
}

func (m *MockIngester) IngestTexts(ctx context.Context, ownerID uuid.UUID, texts []string, defaults reviewapp.BatchDefaults) (csvimport.Report, error) {
	args := m.Called(ctx, ownerID, texts, defaults)
	return args.Get(0).(csvimport.Report), args.Error(1)
}

func (m *MockIngester) IngestImages(ctx context.Context, ownerID uuid.UUID, images []reviewapp.ImageUpload, defaults reviewapp.BatchDefaults, progress reviewapp.ProgressFunc) (csvimport.Report, error) {
	args := m.Called(ctx, ownerID, images, defaults)
	if progress != nil {
		progress(len(images), len(images))
	}
	return args.Get(0).(csvimport.Report), args.Error(1)
}

// MockHistory is a mock implementation of IngestionHistory
type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) List(ctx context.Context, ownerID uuid.UUID, filter reviewapp.ListFilter, page, pageSize int) (shared.Paginated[*bulk.IngestionRun], error) {
	args := m.Called(ctx, ownerID, filter, page, pageSize)
	return args.Get(0).(shared.Paginated[*bulk.IngestionRun]), args.Error(1)
}

func (m *MockHistory) Get(ctx context.Context, ownerID, id uuid.UUID) (*bulk.IngestionRun, error) {
	args := m.Called(ctx, ownerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*bulk.IngestionRun), args.Error(1)
}

// testOwner is the owner every test router authenticates as
var testOwner = uuid.MustParse("7b0c5a52-7e3d-4a8e-9f0e-2d6f1c9b4a11")

// testRouter wires the middleware the handlers rely on
func testRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.OwnerAuth(middleware.OwnerAuthConfig{}))
	return r
}
