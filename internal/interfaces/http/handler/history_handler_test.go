package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/domain/bulk"
	"github.com/reviewfolio/backend/internal/domain/shared"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func historyRouter(history IngestionHistory) *gin.Engine {
	h := NewHistoryHandler(history)
	r := testRouter()
	r.GET("/reviews/ingestions", h.ListRuns)
	r.GET("/reviews/ingestions/:id", h.GetRun)
	return r
}

func completedRun(t *testing.T) *bulk.IngestionRun {
	t.Helper()
	run, err := bulk.NewIngestionRun(testOwner, bulk.SourceTabular, "reviews.csv", 120)
	require.NoError(t, err)
	require.NoError(t, run.StartProcessing())
	require.NoError(t, run.Complete(
		bulk.Counters{TotalProcessed: 2, Created: 1, ValidationErrors: 1},
		[]bulk.ErrorDetail{{Row: 2, Code: "ERR_IMPORT_REQUIRED_FIELD", Message: "2행: 리뷰 내용이 없습니다"}},
	))
	return run
}

func TestListRuns(t *testing.T) {
	t.Run("returns one page without row details", func(t *testing.T) {
		run := completedRun(t)
		history := new(MockHistory)
		history.On("List", mock.Anything, testOwner, reviewapp.ListFilter{Source: "tabular"}, 2, 10).
			Return(shared.NewPaginated([]*bulk.IngestionRun{run}, 11, 2, 10), nil)

		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions?source=tabular&page=2&page_size=10", nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Success bool                       `json:"success"`
			Data    []dto.IngestionRunResponse `json:"data"`
			Meta    dto.Meta                   `json:"meta"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		require.Len(t, resp.Data, 1)
		assert.Equal(t, run.ID.String(), resp.Data[0].ID)
		assert.Equal(t, "completed", resp.Data[0].Status)
		assert.Empty(t, resp.Data[0].ErrorDetails)
		assert.Equal(t, int64(11), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.TotalPages)
	})

	t.Run("parses date filters", func(t *testing.T) {
		from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
		to := time.Date(2026, 3, 31, 23, 59, 59, 999999999, time.UTC)
		history := new(MockHistory)
		history.On("List", mock.Anything, testOwner, mock.MatchedBy(func(f reviewapp.ListFilter) bool {
			return f.StartedFrom != nil && f.StartedFrom.Equal(from) &&
				f.StartedTo != nil && f.StartedTo.Equal(to)
		}), 0, 0).Return(shared.NewPaginated([]*bulk.IngestionRun{}, 0, 1, 20), nil)

		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions?started_from=2026-03-01&started_to=2026-03-31", nil, "")

		assert.Equal(t, http.StatusOK, w.Code)
		history.AssertExpectations(t)
	})

	t.Run("accepts RFC3339 bounds as given", func(t *testing.T) {
		to := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)
		history := new(MockHistory)
		history.On("List", mock.Anything, testOwner, mock.MatchedBy(func(f reviewapp.ListFilter) bool {
			return f.StartedFrom == nil && f.StartedTo != nil && f.StartedTo.Equal(to)
		}), 0, 0).Return(shared.NewPaginated([]*bulk.IngestionRun{}, 0, 1, 20), nil)

		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions?started_to=2026-03-31T12:00:00Z", nil, "")

		assert.Equal(t, http.StatusOK, w.Code)
		history.AssertExpectations(t)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		history := new(MockHistory)
		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions?started_from=03/01/2026", nil, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Error.Details, 1)
		assert.Equal(t, "started_from", resp.Error.Details[0].Field)
		history.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		history := new(MockHistory)
		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions?status=exploded", nil, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("repository failure answers 500", func(t *testing.T) {
		history := new(MockHistory)
		history.On("List", mock.Anything, testOwner, reviewapp.ListFilter{}, 0, 0).
			Return(shared.Paginated[*bulk.IngestionRun]{}, assert.AnError)

		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions", nil, "")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestGetRun(t *testing.T) {
	t.Run("returns the run with row details", func(t *testing.T) {
		run := completedRun(t)
		history := new(MockHistory)
		history.On("Get", mock.Anything, testOwner, run.ID).Return(run, nil)

		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions/"+run.ID.String(), nil, "")

		require.Equal(t, http.StatusOK, w.Code)
		var resp struct {
			Data dto.IngestionRunResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, 1, resp.Data.Summary.SuccessfullyCreated)
		require.Len(t, resp.Data.ErrorDetails, 1)
		assert.Equal(t, 2, resp.Data.ErrorDetails[0].Row)
	})

	t.Run("unknown run", func(t *testing.T) {
		id := uuid.New()
		history := new(MockHistory)
		history.On("Get", mock.Anything, testOwner, id).Return(nil, shared.ErrNotFound)

		w := send(historyRouter(history), http.MethodGet, "/reviews/ingestions/"+id.String(), nil, "")

		assert.Equal(t, http.StatusNotFound, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		w := send(historyRouter(new(MockHistory)), http.MethodGet, "/reviews/ingestions/not-a-uuid", nil, "")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestParseDate(t *testing.T) {
	tm, dateOnly, err := parseDate("2026-03-01")
	require.NoError(t, err)
	assert.True(t, dateOnly)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), tm)

	tm, dateOnly, err = parseDate("2026-03-01T09:00:00+09:00")
	require.NoError(t, err)
	assert.False(t, dateOnly)
	assert.True(t, tm.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))

	_, _, err = parseDate("yesterday")
	assert.Error(t, err)
}
