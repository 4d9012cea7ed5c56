package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"github.com/reviewfolio/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type part struct {
	field, name, contentType string
	data                     []byte
}

func multipartBody(t *testing.T, fields map[string]string, parts ...part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.name))
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		pw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = pw.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func ingestionRouter(ingester Ingester) *gin.Engine {
	h := NewIngestionHandler(ingester)
	r := testRouter()
	r.POST("/reviews/ingest/file", h.IngestFile)
	r.POST("/reviews/ingest/text", h.IngestTexts)
	r.POST("/reviews/ingest/images", h.IngestImages)
	return r
}

func send(r *gin.Engine, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(middleware.HeaderOwnerID, testOwner.String())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeIngestion(t *testing.T, w *httptest.ResponseRecorder) dto.IngestionResponse {
	t.Helper()
	var resp dto.IngestionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

var sampleReport = csvimport.Report{
	Summary: csvimport.Summary{TotalProcessed: 3, SuccessfullyCreated: 2, ValidationErrors: 1},
	Errors:  []string{"3행: 리뷰 내용이 없습니다"},
}

func TestIngestFile(t *testing.T) {
	csv := []byte("플랫폼,업체명,내용\n네이버,카페,좋아요\n")

	t.Run("passes the upload to the service", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestFile", mock.Anything, testOwner, reviewapp.FileUpload{
			Name: "reviews.csv", Data: csv, Encoding: "euc-kr",
		}).Return(sampleReport, nil)

		body, ct := multipartBody(t, map[string]string{"encoding": "euc-kr"}, part{field: "file", name: "reviews.csv", data: csv})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeIngestion(t, w)
		assert.True(t, resp.Success)
		require.NotNil(t, resp.Summary)
		assert.Equal(t, 2, resp.Summary.SuccessfullyCreated)
		assert.Equal(t, sampleReport.Errors, resp.Errors)
		assert.Equal(t, "총 3건 중 2건이 등록되었습니다, 오류 1건", resp.Message)
		ingester.AssertExpectations(t)
	})

	t.Run("missing file", func(t *testing.T) {
		ingester := new(MockIngester)
		body, ct := multipartBody(t, map[string]string{"encoding": "utf-8"})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeIngestion(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.MsgNoFile, resp.Message)
		ingester.AssertNotCalled(t, "IngestFile", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("format errors answer 400 with their code", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestFile", mock.Anything, testOwner, mock.Anything).Return(csvimport.Report{}, csvimport.ErrMissingHeader)

		body, ct := multipartBody(t, nil, part{field: "file", name: "reviews.csv", data: csv})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeIngestion(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, csvimport.ErrCodeImportMissingHeader, resp.Code)
		assert.Equal(t, csvimport.ErrMissingHeader.Message, resp.Message)
		assert.Nil(t, resp.Summary)
		assert.NotNil(t, resp.Errors)
	})

	t.Run("limit errors answer 413", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestFile", mock.Anything, testOwner, mock.Anything).
			Return(csvimport.Report{}, csvimport.ErrTooManyRows.WithMessage("한 번에 최대 %d개의 리뷰만 등록할 수 있습니다", 1))

		body, ct := multipartBody(t, nil, part{field: "file", name: "reviews.csv", data: csv})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		resp := decodeIngestion(t, w)
		assert.Equal(t, csvimport.ErrCodeImportTooManyRows, resp.Code)
		assert.Equal(t, "한 번에 최대 1개의 리뷰만 등록할 수 있습니다", resp.Message)
	})

	t.Run("lookup failures answer 503", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestFile", mock.Anything, testOwner, mock.Anything).
			Return(csvimport.Report{}, fmt.Errorf("%w: %w", reviewapp.ErrLookupFailed, assert.AnError))

		body, ct := multipartBody(t, nil, part{field: "file", name: "reviews.csv", data: csv})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeIngestion(t, w)
		assert.Equal(t, dto.ErrCodeServiceUnavailable, resp.Code)
		assert.Equal(t, reviewapp.ErrLookupFailed.Message, resp.Message)
	})

	t.Run("cancellation returns the partial report", func(t *testing.T) {
		partial := csvimport.Report{Summary: csvimport.Summary{TotalProcessed: 1, SuccessfullyCreated: 1}}
		ingester := new(MockIngester)
		ingester.On("IngestFile", mock.Anything, testOwner, mock.Anything).Return(partial, reviewapp.ErrIngestionCancelled)

		body, ct := multipartBody(t, nil, part{field: "file", name: "reviews.csv", data: csv})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		assert.Equal(t, http.StatusRequestTimeout, w.Code)
		resp := decodeIngestion(t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, dto.MsgIngestionCancelled, resp.Message)
		require.NotNil(t, resp.Summary)
		assert.Equal(t, 1, resp.Summary.SuccessfullyCreated)
	})

	t.Run("unexpected errors answer 500 without details", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestFile", mock.Anything, testOwner, mock.Anything).Return(csvimport.Report{}, assert.AnError)

		body, ct := multipartBody(t, nil, part{field: "file", name: "reviews.csv", data: csv})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/file", body, ct)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		resp := decodeIngestion(t, w)
		assert.Equal(t, dto.ErrCodeInternal, resp.Code)
		assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	})

	t.Run("requires an owner", func(t *testing.T) {
		h := NewIngestionHandler(new(MockIngester))
		r := gin.New()
		r.POST("/reviews/ingest/file", h.IngestFile)

		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/reviews/ingest/file", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestIngestFile_BodyLimit(t *testing.T) {
	ingester := new(MockIngester)
	h := NewIngestionHandler(ingester)
	r := testRouter()
	r.POST("/reviews/ingest/file", func(c *gin.Context) {
		// Hide the declared length so only the reader cap applies
		c.Request.ContentLength = -1
		c.Next()
	}, middleware.BodyLimit(64), h.IngestFile)

	body, ct := multipartBody(t, nil, part{field: "file", name: "big.csv", data: bytes.Repeat([]byte("x"), 1024)})
	w := send(r, http.MethodPost, "/reviews/ingest/file", body, ct)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, dto.ErrCodeRequestTooLarge, decodeIngestion(t, w).Code)
	ingester.AssertNotCalled(t, "IngestFile", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngestTexts(t *testing.T) {
	t.Run("passes texts and defaults", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestTexts", mock.Anything, testOwner, []string{"맛있어요", "친절해요"},
			reviewapp.BatchDefaults{Platform: "네이버", Business: "카페"}).Return(sampleReport, nil)

		body := bytes.NewBufferString(`{"texts":["맛있어요","친절해요"],"platform":"네이버","business":"카페"}`)
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/text", body, "application/json")

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeIngestion(t, w).Success)
		ingester.AssertExpectations(t)
	})

	t.Run("empty text list is a validation error", func(t *testing.T) {
		ingester := new(MockIngester)
		body := bytes.NewBufferString(`{"texts":[]}`)
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/text", body, "application/json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var resp dto.Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
		ingester.AssertNotCalled(t, "IngestTexts", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no usable texts", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestTexts", mock.Anything, testOwner, []string{"  "}, reviewapp.BatchDefaults{}).
			Return(csvimport.Report{}, csvimport.ErrNoDataRows)

		body := bytes.NewBufferString(`{"texts":["  "]}`)
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/text", body, "application/json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, csvimport.ErrCodeImportNoDataRows, decodeIngestion(t, w).Code)
	})
}

func TestIngestImages(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n0000")

	t.Run("collects every image in order", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestImages", mock.Anything, testOwner, mock.MatchedBy(func(images []reviewapp.ImageUpload) bool {
			return len(images) == 2 &&
				images[0].Name == "a.png" && images[0].ContentType == "image/png" &&
				images[1].Name == "b.jpg" && images[1].ContentType == "image/jpeg"
		}), reviewapp.BatchDefaults{Platform: "배민"}).Return(sampleReport, nil)

		body, ct := multipartBody(t, map[string]string{"platform": "배민"},
			part{field: "images", name: "a.png", data: png},
			part{field: "images", name: "b.jpg", contentType: "image/jpeg", data: []byte("jpeg")},
		)
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/images", body, ct)

		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decodeIngestion(t, w).Success)
		ingester.AssertExpectations(t)
	})

	t.Run("no images", func(t *testing.T) {
		ingester := new(MockIngester)
		body, ct := multipartBody(t, map[string]string{"platform": "배민"})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/images", body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.MsgNoImages, decodeIngestion(t, w).Message)
	})

	t.Run("not multipart", func(t *testing.T) {
		ingester := new(MockIngester)
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/images", bytes.NewBufferString("{}"), "text/plain")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("OCR unavailable answers 503", func(t *testing.T) {
		ingester := new(MockIngester)
		ingester.On("IngestImages", mock.Anything, testOwner, mock.Anything, reviewapp.BatchDefaults{}).
			Return(csvimport.Report{}, reviewapp.ErrOCRUnavailable)

		body, ct := multipartBody(t, nil, part{field: "images", name: "a.png", data: png})
		w := send(ingestionRouter(ingester), http.MethodPost, "/reviews/ingest/images", body, ct)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		resp := decodeIngestion(t, w)
		assert.Equal(t, dto.ErrCodeServiceUnavailable, resp.Code)
		assert.True(t, strings.Contains(resp.Message, "이미지"))
	})
}
