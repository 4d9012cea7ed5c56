package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reviewfolio/backend/internal/domain/shared"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

const maxIdempotencyKeyLen = 128

// Idempotency rejects a repeated ingestion request carrying an
// Idempotency-Key the same owner already used within ttl. Requests without
// the header pass through untouched.
//
// The key is released again when the request ends with 5xx or 408 so the
// client can retry it. Store failures are logged and the request proceeds.
func Idempotency(store shared.IdempotencyStore, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if raw == "" || store == nil {
			c.Next()
			return
		}
		if len(raw) > maxIdempotencyKeyLen {
			c.AbortWithStatusJSON(http.StatusBadRequest,
				dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, "Idempotency-Key가 너무 깁니다", GetRequestID(c)))
			return
		}

		ctx := c.Request.Context()
		log := logger.L(ctx)
		key := c.GetString(OwnerIDKey) + ":" + raw

		reserved, err := store.Reserve(ctx, key, ttl)
		if err != nil {
			log.Warn("Idempotency store unavailable, processing request anyway",
				zap.String("idempotency_key", raw),
				zap.Error(err),
			)
			c.Next()
			return
		}
		if !reserved {
			log.Info("Duplicate ingestion request rejected", zap.String("idempotency_key", raw))
			c.AbortWithStatusJSON(http.StatusConflict,
				dto.NewIngestionFailure(dto.ErrCodeDuplicateRequest, dto.MsgDuplicateRequest))
			return
		}

		c.Next()

		if status := c.Writer.Status(); status >= http.StatusInternalServerError || status == http.StatusRequestTimeout {
			// The request context may already be cancelled here
			if err := store.Release(context.WithoutCancel(ctx), key); err != nil {
				log.Warn("Failed to release idempotency key",
					zap.String("idempotency_key", raw),
					zap.Error(err),
				)
			}
		}
	}
}
