package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/reviewfolio/backend/internal/infrastructure/auth"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Owner context keys. The string form is what logger.GinMiddleware reads.
const (
	OwnerIDKey   = string(logger.OwnerIDKey)
	OwnerUUIDKey = "owner_uuid"
	BearerPrefix = "Bearer "
)

// Owner authentication messages
const (
	MsgAuthRequired = "인증이 필요합니다"
	MsgTokenExpired = "인증이 만료되었습니다. 다시 로그인해 주세요"
	MsgTokenInvalid = "유효하지 않은 인증 정보입니다"
)

// OwnerAuthConfig configures OwnerAuth
type OwnerAuthConfig struct {
	// JWT validates bearer tokens. When nil or disabled the owner is taken
	// from the X-Owner-ID header, which is meant for trusted gateways and
	// local development.
	JWT    *auth.JWTService
	Logger *zap.Logger
}

// OwnerAuth resolves the owner of the request and stores it on both the gin
// context and the request context.
func OwnerAuth(cfg OwnerAuthConfig) gin.HandlerFunc {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	useJWT := cfg.JWT != nil && cfg.JWT.Enabled()

	return func(c *gin.Context) {
		var (
			ownerID uuid.UUID
			err     error
		)
		if useJWT {
			ownerID, err = ownerFromToken(cfg.JWT, c.GetHeader("Authorization"))
		} else {
			ownerID, err = uuid.Parse(strings.TrimSpace(c.GetHeader(HeaderOwnerID)))
			if err == nil && ownerID == uuid.Nil {
				err = auth.ErrMissingOwnerID
			}
		}
		if err != nil {
			log.Warn("Owner authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.Bool("jwt", useJWT),
				zap.Error(err),
			)
			abortUnauthorized(c, err)
			return
		}

		c.Set(OwnerIDKey, ownerID.String())
		c.Set(OwnerUUIDKey, ownerID)

		ctx := c.Request.Context()
		ctx, _ = logger.WithOwnerID(ctx, logger.FromContext(ctx), ownerID.String())
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func ownerFromToken(jwt *auth.JWTService, header string) (uuid.UUID, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return uuid.Nil, auth.ErrInvalidToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, BearerPrefix))
	if token == "" {
		return uuid.Nil, auth.ErrInvalidToken
	}
	claims, err := jwt.ValidateToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.OwnerUUID()
}

func abortUnauthorized(c *gin.Context, err error) {
	code, msg := dto.ErrCodeUnauthorized, MsgAuthRequired
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, msg = dto.ErrCodeTokenExpired, MsgTokenExpired
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrMissingOwnerID):
		code, msg = dto.ErrCodeTokenInvalid, MsgTokenInvalid
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, msg, GetRequestID(c)))
}

// GetOwnerID returns the owner resolved by OwnerAuth, or false when the
// request did not pass through it.
func GetOwnerID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(OwnerUUIDKey)
	if !ok {
		return uuid.Nil, false
	}
	id, ok := v.(uuid.UUID)
	return id, ok && id != uuid.Nil
}
