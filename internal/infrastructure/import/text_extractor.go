package csvimport

import (
	"strconv"
	"strings"
)

// DefaultBusinessMaxRunes bounds a business name guessed from free text
const DefaultBusinessMaxRunes = 50

// DefaultConfidenceThreshold is the OCR confidence below which structured
// fields only fill gaps left by the text heuristics.
const DefaultConfidenceThreshold = 0.6

// OCRParsed holds the structured fields an OCR service may return
type OCRParsed struct {
	Platform string `json:"platform,omitempty"`
	Rating   *int   `json:"rating,omitempty"`
	Author   string `json:"author,omitempty"`
	Date     string `json:"date,omitempty"`
}

// OCRResult is the response of the OCR service for one image
type OCRResult struct {
	Text       string     `json:"text"`
	Parsed     *OCRParsed `json:"parsed,omitempty"`
	Confidence *float64   `json:"confidence,omitempty"`
}

// ExtractorOption configures a TextExtractor
type ExtractorOption func(*TextExtractor)

// WithBusinessMaxRunes sets the maximum length of a guessed business name
func WithBusinessMaxRunes(n int) ExtractorOption {
	return func(e *TextExtractor) {
		if n > 0 {
			e.businessMaxRunes = n
		}
	}
}

// WithConfidenceThreshold sets the OCR confidence threshold
func WithConfidenceThreshold(t float64) ExtractorOption {
	return func(e *TextExtractor) {
		e.threshold = t
	}
}

// TextExtractor turns pasted or OCR-recognized text into RawRecords.
// It never fails; fields it cannot find are simply left out.
type TextExtractor struct {
	businessMaxRunes int
	threshold        float64
}

// NewTextExtractor creates an extractor with default settings
func NewTextExtractor(opts ...ExtractorOption) *TextExtractor {
	e := &TextExtractor{
		businessMaxRunes: DefaultBusinessMaxRunes,
		threshold:        DefaultConfidenceThreshold,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Threshold returns the configured OCR confidence threshold
func (e *TextExtractor) Threshold() float64 {
	return e.threshold
}

// Extract builds a record from free text. The star run wins over a written
// score when both are present.
func (e *TextExtractor) Extract(index int, source Source, text string) *RawRecord {
	rec := NewRawRecord(index, source)

	if p := DetectPlatform(text); p != "" {
		rec.Set(FieldPlatform, p)
	}
	if r, ok := CountStarRating(text); ok {
		rec.Set(FieldRating, strconv.Itoa(r))
	} else if r, ok := ScoreRating(text); ok {
		rec.Set(FieldRating, strconv.Itoa(r))
	}
	if d, ok := FindDate(text); ok {
		rec.Set(FieldDate, d)
	}
	if a, ok := FindAuthor(text); ok {
		rec.Set(FieldAuthor, a)
	}
	if b := GuessBusiness(text, e.businessMaxRunes); b != "" {
		rec.Set(FieldBusiness, b)
	}
	if c := StripNoise(text); c != "" {
		rec.Set(FieldContent, c)
	}
	return rec
}

// MergeOCR extracts a record from the recognized text and overlays the
// structured fields of the result. Structured fields override the guesses
// when the confidence is unknown or at least the threshold; below it they
// only fill fields the heuristics left empty.
func (e *TextExtractor) MergeOCR(index int, result OCRResult) *RawRecord {
	rec := e.Extract(index, SourceOCR, result.Text)
	if result.Parsed == nil {
		return rec
	}

	trusted := result.Confidence == nil || *result.Confidence >= e.threshold
	apply := func(field, value string) {
		value = strings.TrimSpace(value)
		if value == "" {
			return
		}
		if _, has := rec.Get(field); has && !trusted {
			return
		}
		rec.Set(field, value)
	}

	parsed := result.Parsed
	if parsed.Platform != "" {
		platform := DetectPlatform(parsed.Platform)
		if platform == "" {
			platform = strings.ToLower(parsed.Platform)
		}
		apply(FieldPlatform, platform)
	}
	if parsed.Rating != nil {
		apply(FieldRating, strconv.Itoa(*parsed.Rating))
	}
	apply(FieldAuthor, parsed.Author)
	apply(FieldDate, parsed.Date)
	return rec
}
