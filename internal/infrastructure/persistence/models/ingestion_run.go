package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/shared"
)

// IngestionRunModel is the persistence model for the IngestionRun domain entity.
type IngestionRunModel struct {
	BaseModel
	OwnerID          uuid.UUID            `gorm:"type:uuid;not null;index:idx_ingestion_runs_owner_started,priority:1"`
	Source           bulk.IngestionSource `gorm:"type:varchar(20);not null"`
	FileName         string               `gorm:"type:varchar(255);not null;default:''"`
	FileSize         int64                `gorm:"not null;default:0"`
	TotalProcessed   int                  `gorm:"not null;default:0"`
	Created          int                  `gorm:"not null;default:0"`
	Duplicates       int                  `gorm:"not null;default:0"`
	ValidationErrors int                  `gorm:"not null;default:0"`
	ProcessingErrors int                  `gorm:"not null;default:0"`
	Status           bulk.RunStatus       `gorm:"type:varchar(20);not null;default:'pending'"`
	FailureReason    string               `gorm:"type:text;not null;default:''"`
	ErrorDetails     string               `gorm:"type:jsonb;default:'[]'"`
	StartedAt        *time.Time           `gorm:"index:idx_ingestion_runs_owner_started,priority:2,sort:desc"`
	CompletedAt      *time.Time
}

// TableName returns the table name for GORM
func (IngestionRunModel) TableName() string {
	return "ingestion_runs"
}

// ToDomain converts the persistence model to a domain IngestionRun entity.
func (m *IngestionRunModel) ToDomain() *bulk.IngestionRun {
	run := &bulk.IngestionRun{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		OwnerID:  m.OwnerID,
		Source:   m.Source,
		FileName: m.FileName,
		FileSize: m.FileSize,
		Counters: bulk.Counters{
			TotalProcessed:   m.TotalProcessed,
			Created:          m.Created,
			Duplicates:       m.Duplicates,
			ValidationErrors: m.ValidationErrors,
			ProcessingErrors: m.ProcessingErrors,
		},
		Status:        m.Status,
		FailureReason: m.FailureReason,
		StartedAt:     m.StartedAt,
		CompletedAt:   m.CompletedAt,
	}

	if err := run.SetErrorDetailsFromJSON(m.ErrorDetails); err != nil {
		run.ErrorDetails = make([]bulk.ErrorDetail, 0)
	}
	return run
}

// FromDomain populates the persistence model from a domain IngestionRun entity.
func (m *IngestionRunModel) FromDomain(r *bulk.IngestionRun) {
	m.FromDomainBaseEntity(r.BaseEntity)
	m.OwnerID = r.OwnerID
	m.Source = r.Source
	m.FileName = r.FileName
	m.FileSize = r.FileSize
	m.TotalProcessed = r.Counters.TotalProcessed
	m.Created = r.Counters.Created
	m.Duplicates = r.Counters.Duplicates
	m.ValidationErrors = r.Counters.ValidationErrors
	m.ProcessingErrors = r.Counters.ProcessingErrors
	m.Status = r.Status
	m.FailureReason = r.FailureReason
	m.StartedAt = r.StartedAt
	m.CompletedAt = r.CompletedAt

	if errorJSON, err := r.ErrorDetailsJSON(); err == nil {
		m.ErrorDetails = errorJSON
	} else {
		m.ErrorDetails = "[]"
	}
}

// IngestionRunModelFromDomain creates a new persistence model from a domain IngestionRun entity.
func IngestionRunModelFromDomain(r *bulk.IngestionRun) *IngestionRunModel {
	m := &IngestionRunModel{}
	m.FromDomain(r)
	return m
}
