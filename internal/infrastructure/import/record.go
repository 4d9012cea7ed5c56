package csvimport

import (
	"fmt"
	"strings"
)

// Source identifies which input adapter produced a record
type Source string

const (
	SourceTabular Source = "tabular"
	SourcePaste   Source = "paste"
	SourceOCR     Source = "ocr"
)

// IsValid checks if the source is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceTabular, SourcePaste, SourceOCR:
		return true
	}
	return false
}

// RowRef locates a record in its original batch. Index is 1-based; for
// tabular input it is the spreadsheet row number, header included.
type RowRef struct {
	Index  int
	Source Source
}

// Label returns the user-facing row label, e.g. "3행"
func (r RowRef) Label() string {
	switch r.Source {
	case SourcePaste:
		return fmt.Sprintf("%d번째 리뷰", r.Index)
	case SourceOCR:
		return fmt.Sprintf("%d번째 이미지", r.Index)
	default:
		return fmt.Sprintf("%d행", r.Index)
	}
}

// Message prefixes msg with the row label
func (r RowRef) Message(msg string) string {
	return r.Label() + ": " + msg
}

// Field is one label/value pair of a RawRecord
type Field struct {
	Label string
	Value string
}

// RawRecord is an ordered label/value list produced by a single input
// adapter. Labels are not fixed; AliasSet resolves them downstream.
type RawRecord struct {
	Ref      RowRef
	ImageURL string
	fields   []Field
}

// NewRawRecord creates an empty record for the given position
func NewRawRecord(index int, source Source) *RawRecord {
	return &RawRecord{Ref: RowRef{Index: index, Source: source}}
}

// Add appends a field, keeping earlier fields with the same label
func (r *RawRecord) Add(label, value string) {
	r.fields = append(r.fields, Field{Label: label, Value: value})
}

// Set replaces the first field with the given label, or appends one
func (r *RawRecord) Set(label, value string) {
	for i := range r.fields {
		if r.fields[i].Label == label {
			r.fields[i].Value = value
			return
		}
	}
	r.Add(label, value)
}

// Get returns the value of the first field with the given label
func (r *RawRecord) Get(label string) (string, bool) {
	for _, f := range r.fields {
		if f.Label == label {
			return f.Value, true
		}
	}
	return "", false
}

// Fields returns a copy of the fields in insertion order
func (r *RawRecord) Fields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of fields
func (r *RawRecord) Len() int {
	return len(r.fields)
}

// IsBlank returns true if every value is empty after trimming
func (r *RawRecord) IsBlank() bool {
	for _, f := range r.fields {
		if strings.TrimSpace(f.Value) != "" {
			return false
		}
	}
	return true
}
