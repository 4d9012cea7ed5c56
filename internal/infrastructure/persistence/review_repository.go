package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/review"
	"github.com/reviewfolio/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormReviewRepository implements review.Repository using GORM
type GormReviewRepository struct {
	db *gorm.DB
}

// NewGormReviewRepository creates a new GormReviewRepository
func NewGormReviewRepository(db *gorm.DB) *GormReviewRepository {
	return &GormReviewRepository{db: db}
}

// Create inserts a review. The (owner_id, dedup_key) unique index turns a
// concurrent duplicate into review.ErrConflict.
func (r *GormReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	model := models.ReviewModelFromDomain(rv)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", review.ErrConflict, model.DedupKey)
		}
		return err
	}
	return nil
}

// ListDedupKeys returns the key fields of every review the owner has
func (r *GormReviewRepository) ListDedupKeys(ctx context.Context, ownerID uuid.UUID) ([]review.DedupKey, error) {
	var rows []models.DedupKeyRow
	if err := r.db.WithContext(ctx).
		Model(&models.ReviewModel{}).
		Select("platform", "business", "author", "content", "review_day").
		Where("owner_id = ?", ownerID).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	keys := make([]review.DedupKey, len(rows))
	for i, row := range rows {
		keys[i] = row.ToDomain()
	}
	return keys, nil
}

// CountByOwner returns the number of reviews stored for an owner
func (r *GormReviewRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ReviewModel{}).
		Where("owner_id = ?", ownerID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// isUniqueViolation recognizes duplicate key errors from postgres and sqlite,
// translated or not.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed")
}

// Compile-time interface compliance check
var _ review.Repository = (*GormReviewRepository)(nil)
