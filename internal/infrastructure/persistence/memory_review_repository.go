package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/review"
)

// MemoryReviewRepository keeps reviews in process memory with the same
// uniqueness rule as the reviews table. Used by the CLI simulation mode.
type MemoryReviewRepository struct {
	mu      sync.RWMutex
	reviews map[uuid.UUID][]*review.Review
	keys    map[uuid.UUID]map[string]struct{}
}

// NewMemoryReviewRepository creates an empty repository
func NewMemoryReviewRepository() *MemoryReviewRepository {
	return &MemoryReviewRepository{
		reviews: make(map[uuid.UUID][]*review.Review),
		keys:    make(map[uuid.UUID]map[string]struct{}),
	}
}

// Create stores a copy of rv
func (r *MemoryReviewRepository) Create(ctx context.Context, rv *review.Review) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hash := rv.DedupKey
	if hash == "" {
		hash = rv.Key().Hash()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	owned, ok := r.keys[rv.OwnerID]
	if !ok {
		owned = make(map[string]struct{})
		r.keys[rv.OwnerID] = owned
	}
	if _, dup := owned[hash]; dup {
		return fmt.Errorf("%w: %s", review.ErrConflict, hash)
	}
	owned[hash] = struct{}{}
	stored := *rv
	r.reviews[rv.OwnerID] = append(r.reviews[rv.OwnerID], &stored)
	return nil
}

// ListDedupKeys returns the keys of every review the owner has
func (r *MemoryReviewRepository) ListDedupKeys(ctx context.Context, ownerID uuid.UUID) ([]review.DedupKey, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	owned := r.reviews[ownerID]
	keys := make([]review.DedupKey, len(owned))
	for i, rv := range owned {
		keys[i] = rv.Key()
	}
	return keys, nil
}

// CountByOwner returns the number of reviews stored for an owner
func (r *MemoryReviewRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.reviews[ownerID])), nil
}

// List returns copies of the owner's reviews in insertion order
func (r *MemoryReviewRepository) List(ownerID uuid.UUID) []review.Review {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]review.Review, len(r.reviews[ownerID]))
	for i, rv := range r.reviews[ownerID] {
		out[i] = *rv
	}
	return out
}

// Compile-time interface compliance check
var _ review.Repository = (*MemoryReviewRepository)(nil)
