package review

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() NewReviewInput {
	return NewReviewInput{
		Platform:   "naver",
		Business:   "카페 A",
		Author:     "김철수",
		Rating:     5,
		Content:    "맛있어요",
		ReviewDate: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Source:     "tabular",
	}
}

func TestNewReview(t *testing.T) {
	ownerID := uuid.New()

	t.Run("creates review with dedup key", func(t *testing.T) {
		r, err := NewReview(ownerID, validInput())
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, r.ID)
		assert.Equal(t, ownerID, r.OwnerID)
		assert.Equal(t, r.Key().Hash(), r.DedupKey)
		assert.Equal(t, "2024-01-15", r.Day())
	})

	t.Run("defaults blank author", func(t *testing.T) {
		in := validInput()
		in.Author = "  "
		r, err := NewReview(ownerID, in)
		require.NoError(t, err)
		assert.Equal(t, DefaultAuthor, r.Author)
	})

	tests := []struct {
		name   string
		owner  uuid.UUID
		modify func(*NewReviewInput)
	}{
		{"nil owner", uuid.Nil, func(*NewReviewInput) {}},
		{"blank platform", ownerID, func(in *NewReviewInput) { in.Platform = " " }},
		{"blank business", ownerID, func(in *NewReviewInput) { in.Business = "" }},
		{"blank content", ownerID, func(in *NewReviewInput) { in.Content = "" }},
		{"rating too low", ownerID, func(in *NewReviewInput) { in.Rating = 0 }},
		{"rating too high", ownerID, func(in *NewReviewInput) { in.Rating = 6 }},
		{"platform too long", ownerID, func(in *NewReviewInput) { in.Platform = strings.Repeat("n", MaxPlatformLength+1) }},
		{"business too long", ownerID, func(in *NewReviewInput) { in.Business = strings.Repeat("가", MaxBusinessLength+1) }},
		{"author too long", ownerID, func(in *NewReviewInput) { in.Author = strings.Repeat("김", MaxAuthorLength+1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.modify(&in)
			_, err := NewReview(tt.owner, in)
			assert.Error(t, err)
		})
	}
}

func TestDedupKey(t *testing.T) {
	day := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)

	t.Run("time of day is ignored", func(t *testing.T) {
		a := NewDedupKey("naver", "카페 A", "김철수", "맛있어요", day)
		b := NewDedupKey("naver", "카페 A", "김철수", "맛있어요", day.Add(10*time.Hour))
		assert.Equal(t, a, b)
		assert.Equal(t, a.Hash(), b.Hash())
	})

	t.Run("content match is case sensitive", func(t *testing.T) {
		a := NewDedupKey("google", "Cafe", "John", "Great", day)
		b := NewDedupKey("google", "Cafe", "John", "great", day)
		assert.NotEqual(t, a.Hash(), b.Hash())
	})

	t.Run("field boundaries are part of the hash", func(t *testing.T) {
		a := DedupKey{Platform: "ab", Business: "c", Day: "2024-01-15"}
		b := DedupKey{Platform: "a", Business: "bc", Day: "2024-01-15"}
		assert.NotEqual(t, a.Hash(), b.Hash())
	})
}
