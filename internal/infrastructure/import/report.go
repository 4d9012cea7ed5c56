package csvimport

// OutcomeKind classifies the fate of one consumed record
type OutcomeKind string

const (
	OutcomeCreated   OutcomeKind = "created"
	OutcomeDuplicate OutcomeKind = "duplicate"
	OutcomeInvalid   OutcomeKind = "invalid"
	OutcomeFailed    OutcomeKind = "failed"
)

// RowOutcome is the result of processing one record
type RowOutcome struct {
	Ref     RowRef
	Kind    OutcomeKind
	Code    string
	Message string
}

// Summary holds the batch counters
type Summary struct {
	TotalProcessed      int `json:"totalProcessed"`
	SuccessfullyCreated int `json:"successfullyCreated"`
	DuplicatesSkipped   int `json:"duplicatesSkipped"`
	ValidationErrors    int `json:"validationErrors"`
	ProcessingErrors    int `json:"processingErrors"`
}

// Report is the outcome of an ingestion batch. Errors holds one message per
// invalid or failed row in row order; duplicates are counted only.
type Report struct {
	Summary   Summary
	Errors    []string
	RowErrors []RowError
}

// ErrorCount returns validation plus processing errors
func (r Report) ErrorCount() int {
	return r.Summary.ValidationErrors + r.Summary.ProcessingErrors
}

// ReportBuilder accumulates row outcomes. It is the only place report
// counters change.
type ReportBuilder struct {
	summary   Summary
	errors    []string
	rowErrors []RowError
}

// NewReportBuilder creates an empty builder
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{}
}

// Add folds one outcome into the report
func (b *ReportBuilder) Add(o RowOutcome) {
	b.summary.TotalProcessed++
	switch o.Kind {
	case OutcomeCreated:
		b.summary.SuccessfullyCreated++
	case OutcomeDuplicate:
		b.summary.DuplicatesSkipped++
	case OutcomeInvalid:
		b.summary.ValidationErrors++
		b.addError(o)
	default:
		b.summary.ProcessingErrors++
		b.addError(o)
	}
}

func (b *ReportBuilder) addError(o RowOutcome) {
	b.errors = append(b.errors, o.Message)
	b.rowErrors = append(b.rowErrors, NewRowError(o.Ref.Index, "", o.Code, o.Message))
}

// Created records a stored review
func (b *ReportBuilder) Created(ref RowRef) {
	b.Add(RowOutcome{Ref: ref, Kind: OutcomeCreated})
}

// Duplicate records a skipped duplicate
func (b *ReportBuilder) Duplicate(ref RowRef) {
	b.Add(RowOutcome{Ref: ref, Kind: OutcomeDuplicate})
}

// Invalid records a validation failure
func (b *ReportBuilder) Invalid(e RowError, ref RowRef) {
	b.Add(RowOutcome{Ref: ref, Kind: OutcomeInvalid, Code: e.Code, Message: e.Message})
}

// Failed records a processing failure with the given message
func (b *ReportBuilder) Failed(ref RowRef, code, msg string) {
	b.Add(RowOutcome{Ref: ref, Kind: OutcomeFailed, Code: code, Message: ref.Message(msg)})
}

// Build returns a snapshot of the report; later Adds do not affect it
func (b *ReportBuilder) Build() Report {
	r := Report{
		Summary:   b.summary,
		Errors:    make([]string, len(b.errors)),
		RowErrors: make([]RowError, len(b.rowErrors)),
	}
	copy(r.Errors, b.errors)
	copy(r.RowErrors, b.rowErrors)
	return r
}

// Aggregate folds a list of outcomes into a report
func Aggregate(outcomes []RowOutcome) Report {
	b := NewReportBuilder()
	for _, o := range outcomes {
		b.Add(o)
	}
	return b.Build()
}
