package csvimport

import (
	"errors"
	"fmt"
)

// Import error codes
const (
	// Batch-level errors
	ErrCodeImportUnknown           = "ERR_IMPORT_UNKNOWN"
	ErrCodeImportEmptyFile         = "ERR_IMPORT_EMPTY_FILE"
	ErrCodeImportFileTooLarge      = "ERR_IMPORT_FILE_TOO_LARGE"
	ErrCodeImportTooManyRows       = "ERR_IMPORT_TOO_MANY_ROWS"
	ErrCodeImportTooManyImages     = "ERR_IMPORT_TOO_MANY_IMAGES"
	ErrCodeImportUnsupportedFormat = "ERR_IMPORT_UNSUPPORTED_FORMAT"

	// Encoding errors
	ErrCodeImportInvalidEncoding     = "ERR_IMPORT_INVALID_ENCODING"
	ErrCodeImportUnsupportedEncoding = "ERR_IMPORT_UNSUPPORTED_ENCODING"

	// Tabular parsing errors
	ErrCodeImportMissingHeader = "ERR_IMPORT_MISSING_HEADER"
	ErrCodeImportNoDataRows    = "ERR_IMPORT_NO_DATA_ROWS"
	ErrCodeImportMalformedRow  = "ERR_IMPORT_MALFORMED_ROW"

	// Row-level errors
	ErrCodeImportRequiredField = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeImportInvalidRange  = "ERR_IMPORT_INVALID_RANGE"
	ErrCodeImportValueTooLong  = "ERR_IMPORT_VALUE_TOO_LONG"
	ErrCodeImportProcessing    = "ERR_IMPORT_PROCESSING"
	ErrCodeImportRecognition   = "ERR_IMPORT_RECOGNITION"
)

// User-facing row messages. The row label is prepended by RowRef.
const (
	MsgRequiredMissing  = "필수 정보가 누락되었습니다"
	MsgInvalidRating    = "평점은 1~5 사이의 정수여야 합니다"
	MsgValueTooLong     = "%s %s자 이하로 입력해 주세요"
	MsgProcessingFailed = "리뷰를 저장하는 중 오류가 발생했습니다"
	MsgRecognitionFail  = "이미지에서 텍스트를 인식하지 못했습니다"
	MsgUnexpected       = "처리 중 알 수 없는 오류가 발생했습니다"
)

// FormatError is a batch-level failure. No report is produced when one is
// returned; Message is shown to the user as is.
type FormatError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *FormatError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *FormatError) Unwrap() error {
	return e.Err
}

// Is matches any FormatError carrying the same code
func (e *FormatError) Is(target error) bool {
	var t *FormatError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewFormatError creates a FormatError with the given code and message
func NewFormatError(code, message string) *FormatError {
	return &FormatError{Code: code, Message: message}
}

// WithCause returns a copy of the error wrapping cause
func (e *FormatError) WithCause(cause error) *FormatError {
	return &FormatError{Code: e.Code, Message: e.Message, Err: cause}
}

// WithMessage returns a copy of the error with a more specific message
func (e *FormatError) WithMessage(format string, args ...any) *FormatError {
	return &FormatError{Code: e.Code, Message: fmt.Sprintf(format, args...), Err: e.Err}
}

// Common batch errors, compared with errors.Is by code
var (
	ErrEmptyFile         = NewFormatError(ErrCodeImportEmptyFile, "파일이 비어 있습니다")
	ErrInvalidEncoding   = NewFormatError(ErrCodeImportInvalidEncoding, "파일 인코딩을 인식할 수 없습니다. UTF-8 또는 EUC-KR로 저장해 주세요")
	ErrUnknownEncoding   = NewFormatError(ErrCodeImportUnsupportedEncoding, "지원하지 않는 인코딩입니다")
	ErrMissingHeader     = NewFormatError(ErrCodeImportMissingHeader, "헤더 행을 찾을 수 없습니다. 첫 행에 플랫폼, 업체명, 내용 열 이름을 입력해 주세요")
	ErrNoDataRows        = NewFormatError(ErrCodeImportNoDataRows, "등록할 리뷰가 없습니다")
	ErrMalformedRow      = NewFormatError(ErrCodeImportMalformedRow, "파일을 읽을 수 없습니다")
	ErrUnsupportedFormat = NewFormatError(ErrCodeImportUnsupportedFormat, "지원하지 않는 파일 형식입니다. CSV 또는 엑셀(.xlsx, .xls) 파일을 업로드해 주세요")
	ErrFileTooLarge      = NewFormatError(ErrCodeImportFileTooLarge, "파일 크기가 허용 한도를 초과했습니다")
	ErrTooManyRows       = NewFormatError(ErrCodeImportTooManyRows, "한 번에 등록할 수 있는 리뷰 수를 초과했습니다")
	ErrTooManyImages     = NewFormatError(ErrCodeImportTooManyImages, "한 번에 업로드할 수 있는 이미지 수를 초과했습니다")

	errUnreadableWorkbook = ErrUnsupportedFormat.WithMessage("엑셀 파일을 열 수 없습니다")
)

// IsFormatError reports whether err is a batch-level FormatError
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsLimitExceeded reports whether err is a size or count limit breach
func IsLimitExceeded(err error) bool {
	return errors.Is(err, ErrFileTooLarge) || errors.Is(err, ErrTooManyRows) || errors.Is(err, ErrTooManyImages)
}

// RowError represents an error in a specific row
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	return e.Message
}

// NewRowError creates a new RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: message,
	}
}

// WithValue returns a copy of the error with the offending value attached
func (e RowError) WithValue(value string) RowError {
	e.Value = value
	return e
}
