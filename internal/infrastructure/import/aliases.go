package csvimport

import (
	"strings"
	"unicode"
)

// Canonical review fields
const (
	FieldPlatform = "platform"
	FieldBusiness = "business"
	FieldContent  = "content"
	FieldAuthor   = "author"
	FieldRating   = "rating"
	FieldDate     = "date"
)

// CanonicalFields lists the canonical fields in display order
var CanonicalFields = []string{FieldPlatform, FieldBusiness, FieldContent, FieldAuthor, FieldRating, FieldDate}

// RequiredFields are the fields a review cannot be stored without
var RequiredFields = []string{FieldPlatform, FieldBusiness, FieldContent}

// AliasSet maps each canonical field to the header spellings accepted for it.
// The canonical name itself always matches and is tried first.
type AliasSet map[string][]string

// DefaultAliases returns the Korean and English header spellings accepted by
// the bulk upload template.
func DefaultAliases() AliasSet {
	return AliasSet{
		FieldPlatform: {"플랫폼", "사이트", "출처", "source"},
		FieldBusiness: {"업체명", "업체", "상호", "상호명", "매장", "매장명", "가게", "business_name", "store"},
		FieldContent:  {"내용", "리뷰", "리뷰내용", "후기", "review", "text", "comment"},
		FieldAuthor:   {"작성자", "이름", "고객명", "닉네임", "name", "writer"},
		FieldRating:   {"평점", "별점", "점수", "score", "stars"},
		FieldDate:     {"날짜", "작성일", "작성일자", "리뷰날짜", "등록일", "review_date", "created_at"},
	}
}

// Spellings returns the canonical name followed by its aliases
func (a AliasSet) Spellings(field string) []string {
	return append([]string{field}, a[field]...)
}

// Canonical resolves a header to its canonical field
func (a AliasSet) Canonical(header string) (string, bool) {
	key := headerKey(header)
	if key == "" {
		return "", false
	}
	for _, field := range CanonicalFields {
		for _, spelling := range a.Spellings(field) {
			if headerKey(spelling) == key {
				return field, true
			}
		}
	}
	return "", false
}

// Lookup returns the first non-blank value among the field's spellings,
// trying the canonical name first.
func (a AliasSet) Lookup(rec *RawRecord, field string) (string, bool) {
	for _, spelling := range a.Spellings(field) {
		want := headerKey(spelling)
		for _, f := range rec.fields {
			if headerKey(f.Label) != want {
				continue
			}
			if v := strings.TrimSpace(f.Value); v != "" {
				return v, true
			}
		}
	}
	return "", false
}

// ResolveHeaders maps each canonical field to the index of the first header
// that matches it. Unmatched headers are left out of the map.
func (a AliasSet) ResolveHeaders(headers []string) map[string]int {
	resolved := make(map[string]int)
	for i, h := range headers {
		field, ok := a.Canonical(h)
		if !ok {
			continue
		}
		if _, seen := resolved[field]; !seen {
			resolved[field] = i
		}
	}
	return resolved
}

// headerKey folds case and drops whitespace, underscores and hyphens
func headerKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
