// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer free
// from ORM concerns. Repositories convert between the two.
//
// Structure:
//   - base.go: BaseModel shared by every table
//   - review.go: the reviews table and the dedup key projection
//   - ingestion_run.go: the ingestion_runs history table
package models
