package bulk

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/domain/shared"
)

// IngestionSource is the input channel of a batch
type IngestionSource string

const (
	SourceTabular IngestionSource = "tabular"
	SourcePaste   IngestionSource = "paste"
	SourceOCR     IngestionSource = "ocr"
)

// IsValid checks if the source is valid
func (s IngestionSource) IsValid() bool {
	switch s {
	case SourceTabular, SourcePaste, SourceOCR:
		return true
	}
	return false
}

// RunStatus represents the status of an ingestion run
type RunStatus string

const (
	RunStatusPending    RunStatus = "pending"
	RunStatusProcessing RunStatus = "processing"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
)

// IsValid checks if the status is valid
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusPending, RunStatusProcessing, RunStatusCompleted,
		RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// ErrorDetail represents a detailed error for a specific row
type ErrorDetail struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Counters are the report counters of a batch
type Counters struct {
	TotalProcessed   int `json:"total_processed"`
	Created          int `json:"created"`
	Duplicates       int `json:"duplicates"`
	ValidationErrors int `json:"validation_errors"`
	ProcessingErrors int `json:"processing_errors"`
}

// Errors returns validation plus processing errors
func (c Counters) Errors() int {
	return c.ValidationErrors + c.ProcessingErrors
}

// IngestionRun records one bulk ingestion batch and its outcome
type IngestionRun struct {
	shared.BaseEntity
	OwnerID       uuid.UUID       `json:"owner_id"`
	Source        IngestionSource `json:"source"`
	FileName      string          `json:"file_name,omitempty"`
	FileSize      int64           `json:"file_size"`
	Counters      Counters        `json:"counters"`
	Status        RunStatus       `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	ErrorDetails  []ErrorDetail   `json:"error_details,omitempty"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// NewIngestionRun creates a pending run. fileName may be empty for text
// and image batches.
func NewIngestionRun(ownerID uuid.UUID, source IngestionSource, fileName string, fileSize int64) (*IngestionRun, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if !source.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE", fmt.Sprintf("Invalid ingestion source: %s", source))
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE", "File size cannot be negative")
	}

	return &IngestionRun{
		BaseEntity:   shared.NewBaseEntity(),
		OwnerID:      ownerID,
		Source:       source,
		FileName:     fileName,
		FileSize:     fileSize,
		Status:       RunStatusPending,
		ErrorDetails: make([]ErrorDetail, 0),
	}, nil
}

// StartProcessing marks the run as started
func (r *IngestionRun) StartProcessing() error {
	if r.Status != RunStatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", r.Status))
	}

	r.Status = RunStatusProcessing
	now := time.Now()
	r.StartedAt = &now
	r.UpdatedAt = now
	return nil
}

// Complete records the final counters. A batch where every row was rejected
// is marked failed.
func (r *IngestionRun) Complete(c Counters, errors []ErrorDetail) error {
	if r.Status != RunStatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete from state: %s", r.Status))
	}

	r.finish(c.CompletionStatus(), c, errors)
	return nil
}

// CompletionStatus is the status of a batch that ran to the end: failed
// when every row errored, completed otherwise.
func (c Counters) CompletionStatus() RunStatus {
	if c.Errors() > 0 && c.Created == 0 && c.Duplicates == 0 {
		return RunStatusFailed
	}
	return RunStatusCompleted
}

// Fail marks the run as failed before or during processing
func (r *IngestionRun) Fail(reason string, c Counters, errors []ErrorDetail) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", r.Status))
	}

	r.FailureReason = reason
	r.finish(RunStatusFailed, c, errors)
	return nil
}

// Cancel marks the run as cancelled, keeping the partial counters
func (r *IngestionRun) Cancel(c Counters, errors []ErrorDetail) error {
	if r.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel from terminal state: %s", r.Status))
	}

	r.finish(RunStatusCancelled, c, errors)
	return nil
}

func (r *IngestionRun) finish(status RunStatus, c Counters, errors []ErrorDetail) {
	r.Status = status
	r.Counters = c
	if errors == nil {
		errors = make([]ErrorDetail, 0)
	}
	r.ErrorDetails = errors
	now := time.Now()
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// HasErrors returns true if there are any errors
func (r *IngestionRun) HasErrors() bool {
	return len(r.ErrorDetails) > 0
}

// ErrorDetailsJSON returns the error details as a JSON string
func (r *IngestionRun) ErrorDetailsJSON() (string, error) {
	if len(r.ErrorDetails) == 0 {
		return "[]", nil
	}
	data, err := json.Marshal(r.ErrorDetails)
	if err != nil {
		return "", fmt.Errorf("failed to marshal error details: %w", err)
	}
	return string(data), nil
}

// SetErrorDetailsFromJSON parses error details from a JSON string
func (r *IngestionRun) SetErrorDetailsFromJSON(jsonStr string) error {
	if jsonStr == "" || jsonStr == "[]" {
		r.ErrorDetails = make([]ErrorDetail, 0)
		return nil
	}
	var details []ErrorDetail
	if err := json.Unmarshal([]byte(jsonStr), &details); err != nil {
		return fmt.Errorf("failed to unmarshal error details: %w", err)
	}
	r.ErrorDetails = details
	return nil
}

// SuccessRate returns the share of processed rows that were stored (0-100)
func (r *IngestionRun) SuccessRate() float64 {
	if r.Counters.TotalProcessed == 0 {
		return 0
	}
	return float64(r.Counters.Created) / float64(r.Counters.TotalProcessed) * 100
}

// Duration returns how long the run took, or has taken so far
func (r *IngestionRun) Duration() time.Duration {
	if r.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if r.CompletedAt != nil {
		end = *r.CompletedAt
	}
	return end.Sub(*r.StartedAt)
}
