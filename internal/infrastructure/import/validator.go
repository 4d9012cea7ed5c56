package csvimport

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// reviewRules carries the rules a canonical review must satisfy. The max
// widths follow the reviews table (review.Max*Length).
type reviewRules struct {
	Platform string `validate:"notblank,max=50"`
	Business string `validate:"notblank,max=200"`
	Author   string `validate:"max=100"`
	Content  string `validate:"notblank"`
	Rating   int    `validate:"min=1,max=5"`
}

var customRules = map[string]validator.Func{
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
}

// fieldSubjects are the Korean field names with their topic particle
var fieldSubjects = map[string]string{
	FieldPlatform: "플랫폼은",
	FieldBusiness: "업체명은",
	FieldAuthor:   "작성자는",
}

// ValidationOutcome is the verdict for one record. Error is set only when
// Valid is false.
type ValidationOutcome struct {
	Valid  bool
	Review CanonicalReview
	Error  *RowError
}

// Reason returns the user-facing rejection message, or "" when valid
func (o ValidationOutcome) Reason() string {
	if o.Error == nil {
		return ""
	}
	return o.Error.Message
}

// Validator checks canonical reviews one at a time. It holds no state
// between calls.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the notblank rule registered
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := registerRules(v, customRules); err != nil {
		panic(err)
	}
	return &Validator{validate: v}
}

func registerRules(v *validator.Validate, rules map[string]validator.Func) error {
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %q rule: %w", tag, err)
		}
	}
	return nil
}

// Validate checks required fields first, then field widths; a rating
// problem is reported only when both pass.
func (v *Validator) Validate(r CanonicalReview) ValidationOutcome {
	err := v.validate.Struct(reviewRules{
		Platform: r.Platform,
		Business: r.Business,
		Author:   r.Author,
		Content:  r.Content,
		Rating:   r.Rating,
	})
	if err == nil {
		return ValidationOutcome{Valid: true, Review: r}
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		rowErr := NewRowError(r.Ref.Index, "", ErrCodeImportUnknown, r.Ref.Message(MsgUnexpected))
		return ValidationOutcome{Review: r, Error: &rowErr}
	}

	for _, fe := range fieldErrs {
		if fe.Tag() == "notblank" {
			rowErr := NewRowError(r.Ref.Index, strings.ToLower(fe.Field()), ErrCodeImportRequiredField, r.Ref.Message(MsgRequiredMissing))
			return ValidationOutcome{Review: r, Error: &rowErr}
		}
	}
	for _, fe := range fieldErrs {
		field := strings.ToLower(fe.Field())
		if subject, ok := fieldSubjects[field]; ok && fe.Tag() == "max" {
			msg := fmt.Sprintf(MsgValueTooLong, subject, fe.Param())
			rowErr := NewRowError(r.Ref.Index, field, ErrCodeImportValueTooLong, r.Ref.Message(msg))
			return ValidationOutcome{Review: r, Error: &rowErr}
		}
	}

	rowErr := NewRowError(r.Ref.Index, FieldRating, ErrCodeImportInvalidRange, r.Ref.Message(MsgInvalidRating)).WithValue(r.RatingRaw)
	return ValidationOutcome{Review: r, Error: &rowErr}
}
