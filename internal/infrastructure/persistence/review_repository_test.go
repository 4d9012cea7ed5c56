package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/review"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupReviewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "reviews.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db.DB
}

var seoul = time.FixedZone("KST", 9*60*60)

func newTestReview(t *testing.T, ownerID uuid.UUID, content string, date time.Time) *review.Review {
	t.Helper()
	r, err := review.NewReview(ownerID, review.NewReviewInput{
		Platform:   "naver",
		Business:   "카페 A",
		Author:     "홍길동",
		Rating:     5,
		Content:    content,
		ReviewDate: date,
		Source:     "tabular",
	})
	require.NoError(t, err)
	return r
}

func TestGormReviewRepository_Create(t *testing.T) {
	db := setupReviewTestDB(t)
	repo := NewGormReviewRepository(db)
	ctx := context.Background()
	owner := uuid.New()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, seoul)

	t.Run("stores a review", func(t *testing.T) {
		r := newTestReview(t, owner, "맛있어요", date)
		require.NoError(t, repo.Create(ctx, r))

		count, err := repo.CountByOwner(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
	})

	t.Run("same key for the same owner conflicts", func(t *testing.T) {
		// Different time of day, same calendar day
		r := newTestReview(t, owner, "맛있어요", date.Add(15*time.Hour))
		err := repo.Create(ctx, r)
		assert.ErrorIs(t, err, review.ErrConflict)
	})

	t.Run("same key for another owner is fine", func(t *testing.T) {
		r := newTestReview(t, uuid.New(), "맛있어요", date)
		assert.NoError(t, repo.Create(ctx, r))
	})

	t.Run("optional image url round trips", func(t *testing.T) {
		url := "https://storage.example.com/a.png"
		r := newTestReview(t, owner, "사진 리뷰", date)
		r.ImageURL = &url
		require.NoError(t, repo.Create(ctx, r))

		var stored struct{ ImageURL *string }
		require.NoError(t, db.Table("reviews").Select("image_url").Where("id = ?", r.ID).Scan(&stored).Error)
		require.NotNil(t, stored.ImageURL)
		assert.Equal(t, url, *stored.ImageURL)
	})
}

func TestGormReviewRepository_ListDedupKeys(t *testing.T) {
	db := setupReviewTestDB(t)
	repo := NewGormReviewRepository(db)
	ctx := context.Background()
	owner := uuid.New()

	// 23:30 in Seoul is still the 15th locally even though UTC has rolled over
	late := time.Date(2024, 1, 15, 23, 30, 0, 0, seoul)
	first := newTestReview(t, owner, "맛있어요", late)
	second := newTestReview(t, owner, "친절해요", late.AddDate(0, 0, 1))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	require.NoError(t, repo.Create(ctx, newTestReview(t, uuid.New(), "다른 사람", late)))

	keys, err := repo.ListDedupKeys(ctx, owner)
	require.NoError(t, err)
	assert.ElementsMatch(t, []review.DedupKey{first.Key(), second.Key()}, keys)
	assert.Equal(t, "2024-01-15", first.Key().Day)

	empty, err := repo.ListDedupKeys(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGormReviewRepository_PostgresConflict(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormReviewRepository(db.DB)

	mock.ExpectExec(`INSERT INTO "reviews"`).
		WillReturnError(errors.New(`ERROR: duplicate key value violates unique constraint "idx_reviews_owner_dedup" (SQLSTATE 23505)`))

	r := newTestReview(t, uuid.New(), "맛있어요", time.Date(2024, 1, 15, 0, 0, 0, 0, seoul))
	err := repo.Create(context.Background(), r)
	assert.ErrorIs(t, err, review.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormReviewRepository_DatabaseError(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormReviewRepository(db.DB)
	owner := uuid.New()

	mock.ExpectQuery(`SELECT count\(\*\) FROM "reviews" WHERE owner_id = \$1`).
		WithArgs(owner).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.CountByOwner(context.Background(), owner)
	assert.ErrorContains(t, err, "connection reset")
	assert.NotErrorIs(t, err, review.ErrConflict)
}

func TestMemoryReviewRepository(t *testing.T) {
	repo := NewMemoryReviewRepository()
	ctx := context.Background()
	owner := uuid.New()
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, seoul)

	r := newTestReview(t, owner, "맛있어요", date)
	require.NoError(t, repo.Create(ctx, r))
	assert.ErrorIs(t, repo.Create(ctx, newTestReview(t, owner, "맛있어요", date)), review.ErrConflict)

	keys, err := repo.ListDedupKeys(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []review.DedupKey{r.Key()}, keys)

	count, err := repo.CountByOwner(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, "맛있어요", repo.List(owner)[0].Content)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, repo.Create(cancelled, r), context.Canceled)
}
