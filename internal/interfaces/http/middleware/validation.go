package middleware

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
)

// MsgValidationFailed is the top-level message of a validation error response
const MsgValidationFailed = "요청 값이 올바르지 않습니다"

// SetupValidator makes binding errors report json or form field names
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = strings.SplitN(fld.Tag.Get("form"), ",", 2)[0]
			}
			return name
		})
	}
}

// FormatValidationErrors converts binding errors to a validation response
func FormatValidationErrors(err error, requestID string) dto.Response {
	var details []dto.ValidationDetail

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			details = append(details, dto.ValidationDetail{
				Field:   e.Field(),
				Message: validationMessage(e),
			})
		}
	}
	return dto.NewValidationErrorResponse(MsgValidationFailed, requestID, details)
}

// HandleValidationError writes a 400 validation response
func HandleValidationError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, FormatValidationErrors(err, GetRequestID(c)))
}

func validationMessage(e validator.FieldError) string {
	isString := e.Kind() == reflect.String
	switch e.Tag() {
	case "required":
		return "필수 항목입니다"
	case "min":
		if isString {
			return e.Param() + "자 이상 입력해 주세요"
		}
		return "최소 " + e.Param() + "개 이상 필요합니다"
	case "max":
		if isString {
			return e.Param() + "자 이하로 입력해 주세요"
		}
		return "최대 " + e.Param() + "까지 허용됩니다"
	case "uuid":
		return "UUID 형식이 아닙니다"
	case "oneof":
		return "다음 중 하나여야 합니다: " + e.Param()
	default:
		return "올바르지 않은 값입니다"
	}
}
