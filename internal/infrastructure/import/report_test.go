package csvimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReportBuilder(t *testing.T) {
	ref := func(i int) RowRef { return RowRef{Index: i, Source: SourceTabular} }

	t.Run("Counters add up", func(t *testing.T) {
		b := NewReportBuilder()
		b.Created(ref(2))
		b.Duplicate(ref(3))
		b.Invalid(NewRowError(4, FieldPlatform, ErrCodeImportRequiredField, "4행: 필수 정보가 누락되었습니다"), ref(4))
		b.Failed(ref(5), ErrCodeImportProcessing, MsgProcessingFailed)
		b.Created(ref(6))

		r := b.Build()
		s := r.Summary
		assert.Equal(t, 5, s.TotalProcessed)
		assert.Equal(t, 2, s.SuccessfullyCreated)
		assert.Equal(t, 1, s.DuplicatesSkipped)
		assert.Equal(t, 1, s.ValidationErrors)
		assert.Equal(t, 1, s.ProcessingErrors)
		assert.Equal(t, s.TotalProcessed, s.SuccessfullyCreated+s.DuplicatesSkipped+s.ValidationErrors+s.ProcessingErrors)
		assert.Equal(t, 2, r.ErrorCount())

		assert.Equal(t, []string{
			"4행: 필수 정보가 누락되었습니다",
			"5행: " + MsgProcessingFailed,
		}, r.Errors)
		assert.Len(t, r.RowErrors, 2)
		assert.Equal(t, 5, r.RowErrors[1].Row)
		assert.Equal(t, ErrCodeImportProcessing, r.RowErrors[1].Code)
	})

	t.Run("Build returns a snapshot", func(t *testing.T) {
		b := NewReportBuilder()
		b.Failed(ref(2), ErrCodeImportProcessing, MsgProcessingFailed)
		snapshot := b.Build()

		b.Failed(ref(3), ErrCodeImportProcessing, MsgProcessingFailed)
		snapshot.Errors[0] = "changed"

		assert.Equal(t, 1, snapshot.Summary.TotalProcessed)
		assert.Equal(t, "2행: "+MsgProcessingFailed, b.Build().Errors[0])
		assert.Len(t, b.Build().Errors, 2)
	})

	t.Run("Empty report", func(t *testing.T) {
		r := NewReportBuilder().Build()
		assert.Equal(t, Summary{}, r.Summary)
		assert.Empty(t, r.Errors)
	})
}

func TestAggregate(t *testing.T) {
	r := Aggregate([]RowOutcome{
		{Ref: RowRef{Index: 1, Source: SourcePaste}, Kind: OutcomeCreated},
		{Ref: RowRef{Index: 2, Source: SourcePaste}, Kind: OutcomeInvalid, Code: ErrCodeImportRequiredField, Message: "2번째 리뷰: 필수 정보가 누락되었습니다"},
		{Ref: RowRef{Index: 3, Source: SourcePaste}, Kind: OutcomeDuplicate},
	})

	assert.Equal(t, Summary{TotalProcessed: 3, SuccessfullyCreated: 1, DuplicatesSkipped: 1, ValidationErrors: 1}, r.Summary)
	assert.Equal(t, []string{"2번째 리뷰: 필수 정보가 누락되었습니다"}, r.Errors)
}
