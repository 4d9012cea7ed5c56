package handler

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	reviewapp "github.com/reviewfolio/backend/internal/application/review"
	"github.com/reviewfolio/backend/internal/domain/shared"
	csvimport "github.com/reviewfolio/backend/internal/infrastructure/import"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"github.com/reviewfolio/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Ingester runs ingestion batches. *reviewapp.IngestionService implements it.
type Ingester interface {
	IngestFile(ctx context.Context, ownerID uuid.UUID, file reviewapp.FileUpload) (csvimport.Report, error)
	IngestTexts(ctx context.Context, ownerID uuid.UUID, texts []string, defaults reviewapp.BatchDefaults) (csvimport.Report, error)
	IngestImages(ctx context.Context, ownerID uuid.UUID, images []reviewapp.ImageUpload, defaults reviewapp.BatchDefaults, progress reviewapp.ProgressFunc) (csvimport.Report, error)
}

// IngestionHandler exposes the three bulk ingestion entry points
type IngestionHandler struct {
	BaseHandler
	ingester Ingester
}

// NewIngestionHandler creates a new IngestionHandler
func NewIngestionHandler(ingester Ingester) *IngestionHandler {
	return &IngestionHandler{ingester: ingester}
}

// IngestFile handles POST /reviews/ingest/file with a multipart "file" field
// holding a CSV or Excel sheet and an optional "encoding" field.
func (h *IngestionHandler) IngestFile(c *gin.Context) {
	ownerID, ok := h.ownerOrAbort(c)
	if !ok {
		return
	}

	var form dto.FileIngestionForm
	if err := c.ShouldBind(&form); err != nil {
		if tooLarge(err) {
			h.requestTooLarge(c)
			return
		}
		middleware.HandleValidationError(c, err)
		return
	}

	header, err := c.FormFile("file")
	if err != nil {
		if tooLarge(err) {
			h.requestTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, dto.NewIngestionFailure(dto.ErrCodeValidationRequired, dto.MsgNoFile))
		return
	}
	data, err := readPart(header)
	if err != nil {
		h.readFailed(c, err)
		return
	}

	report, err := h.ingester.IngestFile(c.Request.Context(), ownerID, reviewapp.FileUpload{
		Name:     header.Filename,
		Data:     data,
		Encoding: form.Encoding,
	})
	h.respond(c, report, err)
}

// IngestTexts handles POST /reviews/ingest/text with pasted review texts
func (h *IngestionHandler) IngestTexts(c *gin.Context) {
	ownerID, ok := h.ownerOrAbort(c)
	if !ok {
		return
	}

	var req dto.TextIngestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			h.requestTooLarge(c)
			return
		}
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.ingester.IngestTexts(c.Request.Context(), ownerID, req.Texts, reviewapp.BatchDefaults{
		Platform: req.Platform,
		Business: req.Business,
	})
	h.respond(c, report, err)
}

// IngestImages handles POST /reviews/ingest/images with one or more
// multipart "images" fields and optional platform and business fields.
func (h *IngestionHandler) IngestImages(c *gin.Context) {
	ownerID, ok := h.ownerOrAbort(c)
	if !ok {
		return
	}

	var form dto.ImageIngestionForm
	if err := c.ShouldBind(&form); err != nil {
		if tooLarge(err) {
			h.requestTooLarge(c)
			return
		}
		middleware.HandleValidationError(c, err)
		return
	}

	mf, err := c.MultipartForm()
	if err != nil {
		if tooLarge(err) {
			h.requestTooLarge(c)
			return
		}
		c.JSON(http.StatusBadRequest, dto.NewIngestionFailure(dto.ErrCodeValidationRequired, dto.MsgNoImages))
		return
	}
	headers := mf.File["images"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, dto.NewIngestionFailure(dto.ErrCodeValidationRequired, dto.MsgNoImages))
		return
	}

	images := make([]reviewapp.ImageUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := readPart(fh)
		if err != nil {
			h.readFailed(c, err)
			return
		}
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(data)
		}
		images = append(images, reviewapp.ImageUpload{
			Name:        fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}

	ctx := c.Request.Context()
	log := logger.L(ctx)
	progress := func(done, total int) {
		log.Debug("OCR progress", zap.Int("done", done), zap.Int("total", total))
	}

	report, err := h.ingester.IngestImages(ctx, ownerID, images, reviewapp.BatchDefaults{
		Platform: form.Platform,
		Business: form.Business,
	}, progress)
	h.respond(c, report, err)
}

// respond writes the outcome of a batch. Every ingestion answer uses the
// IngestionResponse shape so clients read one format.
func (h *IngestionHandler) respond(c *gin.Context, report csvimport.Report, err error) {
	if err == nil {
		c.JSON(http.StatusOK, dto.NewIngestionResponse(report))
		return
	}

	var fe *csvimport.FormatError
	var de *shared.DomainError
	switch {
	case errors.Is(err, reviewapp.ErrIngestionCancelled):
		c.JSON(http.StatusRequestTimeout, dto.NewIngestionCancelled(report))
	case errors.As(err, &fe):
		status := http.StatusBadRequest
		if csvimport.IsLimitExceeded(err) {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, dto.NewIngestionFailure(fe.Code, fe.Message))
	case errors.As(err, &de):
		code := dto.NormalizeErrorCode(de.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewIngestionFailure(code, de.Message))
	default:
		logger.L(c.Request.Context()).Error("Ingestion batch failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, dto.NewIngestionFailure(dto.ErrCodeInternal, MsgInternal))
	}
}

func (h *IngestionHandler) requestTooLarge(c *gin.Context) {
	c.JSON(http.StatusRequestEntityTooLarge, dto.NewIngestionFailure(dto.ErrCodeRequestTooLarge, dto.MsgRequestTooLarge))
}

func (h *IngestionHandler) readFailed(c *gin.Context, err error) {
	if tooLarge(err) {
		h.requestTooLarge(c)
		return
	}
	logger.L(c.Request.Context()).Warn("Failed to read upload", zap.Error(err))
	c.JSON(http.StatusBadRequest, dto.NewIngestionFailure(dto.ErrCodeBadRequest, MsgInvalidRequest))
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || errors.Is(err, multipart.ErrMessageTooLarge)
}
