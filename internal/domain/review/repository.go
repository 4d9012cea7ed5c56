package review

import (
	"context"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/shared"
)

// ErrConflict is returned by Create when the owner already has a review with
// the same dedup key.
var ErrConflict = shared.NewDomainError("REVIEW_CONFLICT", "이미 등록된 리뷰입니다")

// Repository is the persistence gateway for reviews
type Repository interface {
	// Create stores a new review. Returns ErrConflict on a duplicate key.
	Create(ctx context.Context, r *Review) error

	// ListDedupKeys returns the keys of every review the owner already has
	ListDedupKeys(ctx context.Context, ownerID uuid.UUID) ([]DedupKey, error)

	// CountByOwner returns the number of reviews stored for an owner
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
}
