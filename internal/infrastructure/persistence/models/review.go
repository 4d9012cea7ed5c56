package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/review"
)

// ReviewModel is the persistence model for the Review domain entity.
// (owner_id, dedup_key) is unique so concurrent batches cannot store the
// same review twice.
type ReviewModel struct {
	BaseModel
	OwnerID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_reviews_owner_dedup,priority:1;index:idx_reviews_owner_date,priority:1"`
	Platform   string    `gorm:"type:varchar(50);not null"`
	Business   string    `gorm:"type:varchar(200);not null"`
	Author     string    `gorm:"type:varchar(100);not null"`
	Rating     int       `gorm:"type:smallint;not null"`
	Content    string    `gorm:"type:text;not null"`
	ReviewDate time.Time `gorm:"not null;index:idx_reviews_owner_date,priority:2,sort:desc"`
	ReviewDay  string    `gorm:"type:varchar(10);not null"`
	ImageURL   *string   `gorm:"type:text"`
	Source     string    `gorm:"type:varchar(20);not null"`
	DedupKey   string    `gorm:"type:char(64);not null;uniqueIndex:idx_reviews_owner_dedup,priority:2"`
}

// TableName returns the table name for GORM
func (ReviewModel) TableName() string {
	return "reviews"
}

// ToDomain converts the persistence model to a domain Review entity
func (m *ReviewModel) ToDomain() *review.Review {
	return &review.Review{
		BaseEntity: m.BaseModel.ToDomain(),
		OwnerID:    m.OwnerID,
		Platform:   m.Platform,
		Business:   m.Business,
		Author:     m.Author,
		Rating:     m.Rating,
		Content:    m.Content,
		ReviewDate: m.ReviewDate,
		ImageURL:   m.ImageURL,
		Source:     m.Source,
		DedupKey:   m.DedupKey,
	}
}

// ReviewModelFromDomain creates a new persistence model from a domain Review.
// The calendar day is taken in the review date's own location so it matches
// the dedup key.
func ReviewModelFromDomain(r *review.Review) *ReviewModel {
	m := &ReviewModel{
		OwnerID:    r.OwnerID,
		Platform:   r.Platform,
		Business:   r.Business,
		Author:     r.Author,
		Rating:     r.Rating,
		Content:    r.Content,
		ReviewDate: r.ReviewDate,
		ReviewDay:  r.Day(),
		ImageURL:   r.ImageURL,
		Source:     r.Source,
		DedupKey:   r.DedupKey,
	}
	m.FromDomainBaseEntity(r.BaseEntity)
	if m.DedupKey == "" {
		m.DedupKey = r.Key().Hash()
	}
	return m
}

// DedupKeyRow is the projection read when seeding the deduplicator
type DedupKeyRow struct {
	Platform  string
	Business  string
	Author    string
	Content   string
	ReviewDay string
}

// ToDomain converts the row to a dedup key
func (r DedupKeyRow) ToDomain() review.DedupKey {
	return review.DedupKey{
		Platform: r.Platform,
		Business: r.Business,
		Author:   r.Author,
		Content:  r.Content,
		Day:      r.ReviewDay,
	}
}
