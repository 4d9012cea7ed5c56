package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/shared"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"github.com/reviewfolio/backend/internal/interfaces/http/middleware"
)

const (
	msgInvalidDate  = "날짜는 YYYY-MM-DD 또는 RFC3339 형식이어야 합니다"
	msgRunNotFound  = "처리 이력을 찾을 수 없습니다"
	msgInvalidRunID = "처리 이력 ID가 올바르지 않습니다"
)

// IngestionHistory reads past ingestion runs. *reviewapp.HistoryService
// implements it.
type IngestionHistory interface {
	List(ctx context.Context, ownerID uuid.UUID, filter reviewapp.ListFilter, page, pageSize int) (shared.Paginated[*bulk.IngestionRun], error)
	Get(ctx context.Context, ownerID, id uuid.UUID) (*bulk.IngestionRun, error)
}

// HistoryHandler serves the ingestion history of the authenticated owner
type HistoryHandler struct {
	BaseHandler
	history IngestionHistory
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(history IngestionHistory) *HistoryHandler {
	return &HistoryHandler{history: history}
}

// ListRuns handles GET /reviews/ingestions
func (h *HistoryHandler) ListRuns(c *gin.Context) {
	ownerID, ok := h.ownerOrAbort(c)
	if !ok {
		return
	}

	var q dto.IngestionRunListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := reviewapp.ListFilter{Source: q.Source, Status: q.Status, SortBy: q.SortBy, SortOrder: q.SortOrder}
	var details []dto.ValidationDetail
	if q.StartedFrom != "" {
		t, _, err := parseDate(q.StartedFrom)
		if err != nil {
			details = append(details, dto.ValidationDetail{Field: "started_from", Message: msgInvalidDate})
		} else {
			filter.StartedFrom = &t
		}
	}
	if q.StartedTo != "" {
		t, dateOnly, err := parseDate(q.StartedTo)
		if err != nil {
			details = append(details, dto.ValidationDetail{Field: "started_to", Message: msgInvalidDate})
		} else {
			if dateOnly {
				// Inclusive end of the given day
				t = t.Add(24*time.Hour - time.Nanosecond)
			}
			filter.StartedTo = &t
		}
	}
	if len(details) > 0 {
		h.ValidationError(c, details)
		return
	}

	result, err := h.history.List(c.Request.Context(), ownerID, filter, q.Page, q.PageSize)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	items := make([]dto.IngestionRunResponse, 0, len(result.Items))
	for _, run := range result.Items {
		items = append(items, dto.NewIngestionRunResponse(run, false))
	}
	h.SuccessWithMeta(c, items, result.Total, result.Page, result.PageSize)
}

// GetRun handles GET /reviews/ingestions/:id
func (h *HistoryHandler) GetRun(c *gin.Context) {
	ownerID, ok := h.ownerOrAbort(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, msgInvalidRunID)
		return
	}

	run, err := h.history.Get(c.Request.Context(), ownerID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.NotFound(c, msgRunNotFound)
			return
		}
		h.HandleError(c, err)
		return
	}
	h.Success(c, dto.NewIngestionRunResponse(run, true))
}

// parseDate accepts RFC3339 timestamps and plain dates. Plain dates are
// read as UTC midnight and reported with dateOnly set.
func parseDate(s string) (t time.Time, dateOnly bool, err error) {
	if t, err = time.Parse(time.RFC3339, s); err == nil {
		return t, false, nil
	}
	if t, err = time.Parse(time.DateOnly, s); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, err
}
