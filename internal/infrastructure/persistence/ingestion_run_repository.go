package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/shared"
	"github.com/reviewfolio/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormIngestionRunRepository implements IngestionRunRepository using GORM
type GormIngestionRunRepository struct {
	db *gorm.DB
}

// NewGormIngestionRunRepository creates a new GormIngestionRunRepository
func NewGormIngestionRunRepository(db *gorm.DB) *GormIngestionRunRepository {
	return &GormIngestionRunRepository{db: db}
}

// FindByID finds a run by ID within an owner's runs
func (r *GormIngestionRunRepository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*bulk.IngestionRun, error) {
	var model models.IngestionRunModel
	if err := r.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns an owner's runs with pagination and filtering
func (r *GormIngestionRunRepository) FindAll(
	ctx context.Context,
	ownerID uuid.UUID,
	filter bulk.IngestionRunFilter,
	page, pageSize int,
) (*bulk.IngestionRunListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.IngestionRunModel{}).
		Where("owner_id = ?", ownerID)

	query = r.applyFilters(query, filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		offset := (page - 1) * pageSize
		query = query.Offset(offset).Limit(pageSize)
	}

	sortBy := ValidateSortField(filter.SortBy, IngestionRunSortFields, "")
	sortOrder := "DESC"
	if sortBy == "" {
		sortBy = "started_at"
	} else {
		sortOrder = ValidateSortOrder(filter.SortOrder)
	}
	query = query.Order(sortBy + " " + sortOrder)
	if sortBy != "created_at" {
		query = query.Order("created_at DESC")
	}

	var runModels []models.IngestionRunModel
	if err := query.Find(&runModels).Error; err != nil {
		return nil, err
	}

	runs := make([]*bulk.IngestionRun, len(runModels))
	for i := range runModels {
		runs[i] = runModels[i].ToDomain()
	}

	return &bulk.IngestionRunListResult{
		Items:      runs,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// Save saves a run (create or update)
func (r *GormIngestionRunRepository) Save(ctx context.Context, run *bulk.IngestionRun) error {
	model := models.IngestionRunModelFromDomain(run)
	return r.db.WithContext(ctx).Save(model).Error
}

// applyFilters applies filter options to the query
func (r *GormIngestionRunRepository) applyFilters(query *gorm.DB, filter bulk.IngestionRunFilter) *gorm.DB {
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StartedFrom != nil {
		query = query.Where("started_at >= ?", *filter.StartedFrom)
	}
	if filter.StartedTo != nil {
		query = query.Where("started_at <= ?", *filter.StartedTo)
	}
	return query
}

// Compile-time interface compliance check
var _ bulk.IngestionRunRepository = (*GormIngestionRunRepository)(nil)
