package csvimport

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatError(t *testing.T) {
	t.Run("Matches by code", func(t *testing.T) {
		err := ErrMalformedRow.WithMessage("%d행을 읽을 수 없습니다", 7)

		assert.ErrorIs(t, err, ErrMalformedRow)
		assert.NotErrorIs(t, err, ErrEmptyFile)
		assert.Equal(t, "7행을 읽을 수 없습니다", err.Error())
		assert.Equal(t, ErrCodeImportMalformedRow, err.Code)
	})

	t.Run("Wrapped cause is reachable", func(t *testing.T) {
		cause := errors.New("zip: not a valid zip file")
		err := fmt.Errorf("parse: %w", ErrUnsupportedFormat.WithCause(cause))

		assert.ErrorIs(t, err, cause)
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
		assert.True(t, IsFormatError(err))
	})

	t.Run("Sentinels are not mutated", func(t *testing.T) {
		_ = ErrNoDataRows.WithMessage("다른 메시지")
		assert.Equal(t, "등록할 리뷰가 없습니다", ErrNoDataRows.Error())
	})

	t.Run("Limit errors", func(t *testing.T) {
		assert.True(t, IsLimitExceeded(ErrFileTooLarge))
		assert.True(t, IsLimitExceeded(ErrTooManyRows.WithMessage("최대 %d건", 1000)))
		assert.True(t, IsLimitExceeded(ErrTooManyImages))
		assert.False(t, IsLimitExceeded(ErrEmptyFile))
		assert.False(t, IsFormatError(errors.New("plain")))
	})
}

func TestRowError(t *testing.T) {
	err := NewRowError(3, FieldRating, ErrCodeImportInvalidRange, "3행: 평점은 1~5 사이의 정수여야 합니다").WithValue("9")

	assert.Equal(t, 3, err.Row)
	assert.Equal(t, "9", err.Value)
	assert.Equal(t, "3행: 평점은 1~5 사이의 정수여야 합니다", err.Error())
}

func TestRowRef(t *testing.T) {
	assert.Equal(t, "3행", RowRef{Index: 3, Source: SourceTabular}.Label())
	assert.Equal(t, "2번째 리뷰", RowRef{Index: 2, Source: SourcePaste}.Label())
	assert.Equal(t, "1번째 이미지: 실패", RowRef{Index: 1, Source: SourceOCR}.Message("실패"))
	assert.False(t, Source("email").IsValid())
}

func TestAliasSet(t *testing.T) {
	aliases := DefaultAliases()

	for header, want := range map[string]string{
		"Platform":      FieldPlatform,
		"업체 명":          FieldBusiness,
		"Business_Name": FieldBusiness,
		"REVIEW":        FieldContent,
		"Review-Date":   FieldDate,
	} {
		got, ok := aliases.Canonical(header)
		assert.True(t, ok, header)
		assert.Equal(t, want, got, header)
	}

	_, ok := aliases.Canonical("메모")
	assert.False(t, ok)

	t.Run("First matching header wins", func(t *testing.T) {
		resolved := aliases.ResolveHeaders([]string{"리뷰", "내용", "플랫폼"})
		assert.Equal(t, map[string]int{FieldContent: 0, FieldPlatform: 2}, resolved)
	})
}
