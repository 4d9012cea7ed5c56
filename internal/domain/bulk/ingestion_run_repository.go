package bulk

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IngestionRunFilter defines the filters for querying ingestion runs
type IngestionRunFilter struct {
	Source      *IngestionSource
	Status      *RunStatus
	StartedFrom *time.Time
	StartedTo   *time.Time
	// SortBy is a column name; unknown values fall back to started_at
	SortBy    string
	SortOrder string
}

// IngestionRunListResult represents a paginated list of ingestion runs
type IngestionRunListResult struct {
	Items      []*IngestionRun
	TotalCount int64
	Page       int
	PageSize   int
}

// IngestionRunRepository defines the interface for ingestion run persistence
type IngestionRunRepository interface {
	// FindByID finds a run by ID within an owner's runs
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*IngestionRun, error)

	// FindAll returns an owner's runs, newest first
	FindAll(ctx context.Context, ownerID uuid.UUID, filter IngestionRunFilter, page, pageSize int) (*IngestionRunListResult, error)

	// Save saves a run (create or update)
	Save(ctx context.Context, run *IngestionRun) error
}
