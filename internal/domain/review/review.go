package review

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/shared"
)

// Defaults applied before a review reaches the domain
const (
	DefaultAuthor    = "익명"
	DefaultOCRAuthor = "고객"
	MinRating        = 1
	MaxRating        = 5
)

// Column widths of the reviews table, in characters
const (
	MaxPlatformLength = 50
	MaxBusinessLength = 200
	MaxAuthorLength   = 100
)

// Review is a customer review stored in an owner's portfolio
type Review struct {
	shared.BaseEntity
	OwnerID    uuid.UUID
	Platform   string
	Business   string
	Author     string
	Rating     int
	Content    string
	ReviewDate time.Time
	ImageURL   *string
	Source     string
	DedupKey   string
}

// NewReviewInput carries the canonical fields of a review to be created
type NewReviewInput struct {
	Platform   string
	Business   string
	Author     string
	Rating     int
	Content    string
	ReviewDate time.Time
	ImageURL   *string
	Source     string
}

// NewReview creates a review for an owner. Required fields are checked again
// here so the entity cannot be built in an invalid state.
func NewReview(ownerID uuid.UUID, in NewReviewInput) (*Review, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if strings.TrimSpace(in.Platform) == "" || strings.TrimSpace(in.Business) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, shared.NewDomainError("INVALID_REVIEW", "Platform, business and content are required")
	}
	if in.Rating < MinRating || in.Rating > MaxRating {
		return nil, shared.NewDomainError("INVALID_RATING", "Rating must be between 1 and 5")
	}
	author := in.Author
	if strings.TrimSpace(author) == "" {
		author = DefaultAuthor
	}
	if utf8.RuneCountInString(in.Platform) > MaxPlatformLength ||
		utf8.RuneCountInString(in.Business) > MaxBusinessLength ||
		utf8.RuneCountInString(author) > MaxAuthorLength {
		return nil, shared.NewDomainError("INVALID_REVIEW", "Platform, business or author is too long")
	}

	r := &Review{
		BaseEntity: shared.NewBaseEntity(),
		OwnerID:    ownerID,
		Platform:   in.Platform,
		Business:   in.Business,
		Author:     author,
		Rating:     in.Rating,
		Content:    in.Content,
		ReviewDate: in.ReviewDate,
		ImageURL:   in.ImageURL,
		Source:     in.Source,
	}
	r.DedupKey = r.Key().Hash()
	return r, nil
}

// Key returns the deduplication key of the review
func (r *Review) Key() DedupKey {
	return NewDedupKey(r.Platform, r.Business, r.Author, r.Content, r.ReviewDate)
}

// Day returns the calendar day of the review date in its own location
func (r *Review) Day() string {
	return r.ReviewDate.Format(DayLayout)
}
