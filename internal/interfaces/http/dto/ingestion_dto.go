package dto

import (
	"fmt"
	"time"

	"github.com/reviewfolio/backend/internal/domain/bulk"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
)

// Ingestion response messages
const (
	MsgIngestionCancelled = "처리가 중단되었습니다. 중단 전까지의 결과만 반영되었습니다"
	MsgDuplicateRequest   = "이미 처리 중이거나 처리된 요청입니다"
	MsgNoFile             = "업로드할 파일을 선택해 주세요"
	MsgNoImages           = "업로드할 이미지를 선택해 주세요"
	MsgRequestTooLarge    = "요청 크기가 허용 한도를 초과했습니다"
)

// IngestionResponse is returned by every ingestion endpoint
type IngestionResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Code    string             `json:"code,omitempty"`
	Summary *csvimport.Summary `json:"summary,omitempty"`
	Errors  []string           `json:"errors"`
}

// NewIngestionResponse builds the response for a batch that produced a report
func NewIngestionResponse(report csvimport.Report) IngestionResponse {
	errs := report.Errors
	if errs == nil {
		errs = []string{}
	}
	summary := report.Summary
	return IngestionResponse{
		Success: true,
		Message: SummaryMessage(summary),
		Summary: &summary,
		Errors:  errs,
	}
}

// NewIngestionFailure builds the response for a batch that failed as a whole
func NewIngestionFailure(code, message string) IngestionResponse {
	return IngestionResponse{
		Success: false,
		Message: message,
		Code:    code,
		Errors:  []string{},
	}
}

// NewIngestionCancelled builds the response for a batch stopped part way.
// The summary covers the rows evaluated before the stop.
func NewIngestionCancelled(report csvimport.Report) IngestionResponse {
	resp := NewIngestionResponse(report)
	resp.Success = false
	resp.Message = MsgIngestionCancelled
	resp.Code = ErrCodeRequestCancelled
	return resp
}

// SummaryMessage renders the one-line Korean summary shown after a batch
func SummaryMessage(s csvimport.Summary) string {
	if s.TotalProcessed == 0 {
		return "처리할 리뷰가 없습니다"
	}
	msg := fmt.Sprintf("총 %d건 중 %d건이 등록되었습니다", s.TotalProcessed, s.SuccessfullyCreated)
	if s.DuplicatesSkipped > 0 {
		msg += fmt.Sprintf(" (중복 %d건 제외)", s.DuplicatesSkipped)
	}
	if errs := s.ValidationErrors + s.ProcessingErrors; errs > 0 {
		msg += fmt.Sprintf(", 오류 %d건", errs)
	}
	return msg
}

// TextIngestionRequest is the body of the paste ingestion endpoint
type TextIngestionRequest struct {
	Texts    []string `json:"texts" binding:"required,min=1,dive,max=10000"`
	Platform string   `json:"platform" binding:"omitempty,max=50"`
	Business string   `json:"business" binding:"omitempty,max=200"`
}

// ImageIngestionForm holds the non-file fields of the image ingestion form
type ImageIngestionForm struct {
	Platform string `form:"platform" binding:"omitempty,max=50"`
	Business string `form:"business" binding:"omitempty,max=200"`
}

// FileIngestionForm holds the non-file fields of the file ingestion form
type FileIngestionForm struct {
	Encoding string `form:"encoding" binding:"omitempty,max=32"`
}

// IngestionRunListQuery represents query parameters for listing ingestion runs
type IngestionRunListQuery struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	PageSize    int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Source      string `form:"source" binding:"omitempty,oneof=tabular paste ocr"`
	Status      string `form:"status" binding:"omitempty,oneof=pending processing completed failed cancelled"`
	StartedFrom string `form:"started_from"`
	StartedTo   string `form:"started_to"`
	SortBy      string `form:"sort_by" binding:"omitempty,oneof=started_at completed_at file_name total_processed created duplicates validation_errors processing_errors"`
	SortOrder   string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// IngestionRunResponse represents one ingestion run in history responses
type IngestionRunResponse struct {
	ID            string             `json:"id"`
	Source        string             `json:"source"`
	FileName      string             `json:"file_name,omitempty"`
	FileSize      int64              `json:"file_size"`
	Status        string             `json:"status"`
	Summary       csvimport.Summary  `json:"summary"`
	FailureReason string             `json:"failure_reason,omitempty"`
	ErrorDetails  []bulk.ErrorDetail `json:"error_details,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// NewIngestionRunResponse converts a run for the API. withDetails controls
// whether per-row error details are included; list pages leave them out.
func NewIngestionRunResponse(run *bulk.IngestionRun, withDetails bool) IngestionRunResponse {
	resp := IngestionRunResponse{
		ID:       run.ID.String(),
		Source:   string(run.Source),
		FileName: run.FileName,
		FileSize: run.FileSize,
		Status:   string(run.Status),
		Summary: csvimport.Summary{
			TotalProcessed:      run.Counters.TotalProcessed,
			SuccessfullyCreated: run.Counters.Created,
			DuplicatesSkipped:   run.Counters.Duplicates,
			ValidationErrors:    run.Counters.ValidationErrors,
			ProcessingErrors:    run.Counters.ProcessingErrors,
		},
		FailureReason: run.FailureReason,
		StartedAt:     run.StartedAt,
		CompletedAt:   run.CompletedAt,
		CreatedAt:     run.CreatedAt,
	}
	if withDetails {
		resp.ErrorDetails = run.ErrorDetails
	}
	return resp
}
