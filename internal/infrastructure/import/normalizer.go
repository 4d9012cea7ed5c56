package csvimport

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/reviewfolio/backend/internal/domain/review"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Platform defaults by source. Tabular rows get none, so a missing
// platform column is reported instead of guessed.
const (
	DefaultOCRPlatform   = "기타"
	DefaultPastePlatform = "직접입력"
	DefaultRating        = 5
	DefaultTimezone      = "Asia/Seoul"
)

// dateLayouts are tried in order. Single-digit months and days are accepted.
var dateLayouts = []string{"2006-1-2", "2006.1.2", "2006/1/2", "2-1-2006"}

// Excel serials below this are more likely plain numbers than dates
const minExcelSerial = 10000

// maxExcelSerial is 9999-12-31
const maxExcelSerial = 2958465

// CanonicalReview is a record with every canonical field resolved
type CanonicalReview struct {
	Ref        RowRef
	Platform   string
	Business   string
	Author     string
	Rating     int
	RatingRaw  string
	Content    string
	ReviewDate time.Time
	ImageURL   *string
}

// Key returns the dedup key of the review
func (c CanonicalReview) Key() review.DedupKey {
	return review.NewDedupKey(c.Platform, c.Business, c.Author, c.Content, c.ReviewDate)
}

// ReviewInput converts the review into domain creation input
func (c CanonicalReview) ReviewInput() review.NewReviewInput {
	return review.NewReviewInput{
		Platform:   c.Platform,
		Business:   c.Business,
		Author:     c.Author,
		Rating:     c.Rating,
		Content:    c.Content,
		ReviewDate: c.ReviewDate,
		ImageURL:   c.ImageURL,
		Source:     string(c.Ref.Source),
	}
}

// FieldDefaults fill platform and business when a record has none. With
// Override they replace whatever the record carries, which is how a user's
// explicit batch choice beats a guess from free text.
type FieldDefaults struct {
	Platform string
	Business string
	Override bool
}

// NormalizerOption configures a Normalizer
type NormalizerOption func(*Normalizer)

// WithLocation sets the timezone dates are interpreted in
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// WithClock sets the time source used for missing dates
func WithClock(now func() time.Time) NormalizerOption {
	return func(n *Normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithNormalizerAliases replaces the alias set used for field lookup
func WithNormalizerAliases(aliases AliasSet) NormalizerOption {
	return func(n *Normalizer) {
		if aliases != nil {
			n.aliases = aliases
		}
	}
}

// Normalizer maps RawRecords onto CanonicalReviews
type Normalizer struct {
	aliases  AliasSet
	loc      *time.Location
	now      func() time.Time
	defaults FieldDefaults
}

// NewNormalizer creates a normalizer in the Asia/Seoul timezone
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{
		aliases: DefaultAliases(),
		loc:     LoadLocation(DefaultTimezone),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// LoadLocation loads a timezone, falling back to a fixed KST offset when the
// zone database is unavailable.
func LoadLocation(name string) *time.Location {
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	return time.FixedZone("KST", 9*60*60)
}

// WithDefaults returns a copy of the normalizer applying batch defaults
func (n *Normalizer) WithDefaults(d FieldDefaults) *Normalizer {
	cp := *n
	cp.defaults = FieldDefaults{
		Platform: strings.TrimSpace(d.Platform),
		Business: strings.TrimSpace(d.Business),
		Override: d.Override,
	}
	return &cp
}

// Normalize resolves every canonical field of rec. It never fails; values
// it cannot interpret are left for the Validator to reject.
func (n *Normalizer) Normalize(rec *RawRecord) CanonicalReview {
	out := CanonicalReview{Ref: rec.Ref}

	platform, _ := n.aliases.Lookup(rec, FieldPlatform)
	platform = n.pick(platform, n.defaults.Platform)
	if platform == "" {
		platform = defaultPlatform(rec.Ref.Source)
	}
	out.Platform = strings.ToLower(strings.TrimSpace(platform))

	business, _ := n.aliases.Lookup(rec, FieldBusiness)
	out.Business = n.pick(business, n.defaults.Business)

	out.Content, _ = n.aliases.Lookup(rec, FieldContent)

	out.Author, _ = n.aliases.Lookup(rec, FieldAuthor)
	if out.Author == "" {
		out.Author = defaultAuthor(rec.Ref.Source)
	}

	out.RatingRaw, _ = n.aliases.Lookup(rec, FieldRating)
	out.Rating = ParseRating(out.RatingRaw)

	rawDate, _ := n.aliases.Lookup(rec, FieldDate)
	if d, ok := n.ParseDate(rawDate); ok {
		out.ReviewDate = d
	} else {
		out.ReviewDate = n.now().In(n.loc)
	}

	if url := strings.TrimSpace(rec.ImageURL); url != "" {
		out.ImageURL = &url
	}
	return out
}

// pick chooses between a record value and a batch default
func (n *Normalizer) pick(value, def string) string {
	if def != "" && (value == "" || n.defaults.Override) {
		return def
	}
	return value
}

func defaultPlatform(source Source) string {
	switch source {
	case SourceOCR:
		return DefaultOCRPlatform
	case SourcePaste:
		return DefaultPastePlatform
	}
	return ""
}

func defaultAuthor(source Source) string {
	if source == SourceOCR {
		return review.DefaultOCRAuthor
	}
	return review.DefaultAuthor
}

// ParseRating interprets a submitted rating. Blank means the default of 5.
// Unparsable or fractional values yield 0; out-of-range integers are
// returned unchanged.
func ParseRating(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefaultRating
	}

	if strings.ContainsAny(s, "★⭐") {
		rest := strings.Map(func(r rune) rune {
			switch r {
			case '★', '⭐', '☆', variationSelector, ' ':
				return -1
			}
			return r
		}, s)
		if rest == "" {
			return strings.Count(s, "★") + strings.Count(s, "⭐")
		}
	}

	s = strings.TrimSpace(strings.TrimSuffix(s, "점"))
	s = strings.TrimSpace(strings.TrimSuffix(s, "/5"))
	d, err := decimal.NewFromString(s)
	if err != nil || !d.IsInteger() {
		return 0
	}
	if d.Abs().GreaterThan(decimal.NewFromInt(math.MaxInt32)) {
		return 0
	}
	return int(d.IntPart())
}

// ParseDate interprets a submitted date in the normalizer's timezone.
// Trailing times and a trailing "." are ignored; Excel serial numbers are
// accepted after the text layouts.
func (n *Normalizer) ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	s = strings.ReplaceAll(s, ". ", ".")
	if i := strings.IndexAny(s, " T"); i > 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, ".")

	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, n.loc); err == nil {
			return t, true
		}
	}

	serial, err := strconv.ParseFloat(s, 64)
	if err != nil || serial < minExcelSerial || serial > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(serial, false)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, n.loc), true
}
