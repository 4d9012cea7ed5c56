package csvimport

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// platformVocabulary is checked case-insensitively; the earliest keyword
// occurrence in the text decides the platform.
var platformVocabulary = []struct {
	platform string
	keywords []string
}{
	{"naver", []string{"네이버", "naver"}},
	{"kakao", []string{"카카오", "kakao"}},
	{"instagram", []string{"인스타", "instagram"}},
	{"google", []string{"구글", "google"}},
}

// DetectPlatform returns the canonical platform named in text, or ""
func DetectPlatform(text string) string {
	lower := strings.ToLower(text)
	found, bestPos := "", -1
	for _, entry := range platformVocabulary {
		for _, kw := range entry.keywords {
			pos := strings.Index(lower, kw)
			if pos >= 0 && (bestPos < 0 || pos < bestPos) {
				found, bestPos = entry.platform, pos
			}
		}
	}
	return found
}

const variationSelector = '\uFE0F'

func isStarGlyph(r rune) bool {
	return r == '★' || r == '⭐'
}

// CountStarRating counts the first run of star glyphs, clamped to [1,5].
// Emoji variation selectors inside the run are ignored.
func CountStarRating(text string) (int, bool) {
	count := 0
	for _, r := range text {
		switch {
		case isStarGlyph(r):
			count++
		case r == variationSelector && count > 0:
		case count > 0:
			return clampRating(count), true
		}
	}
	if count == 0 {
		return 0, false
	}
	return clampRating(count), true
}

var scorePattern = regexp.MustCompile(`(?:평점|별점)\s*[:：]?\s*([0-9]+(?:\.[0-9]+)?)\s*(?:점|/\s*5)?`)

// ScoreRating reads a written score such as "평점 4점" or "별점: 4.5",
// rounded half up and clamped to [1,5].
func ScoreRating(text string) (int, bool) {
	m := scorePattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	d, err := decimal.NewFromString(m[1])
	if err != nil {
		return 0, false
	}
	return clampRating(int(d.Round(0).IntPart())), true
}

func clampRating(n int) int {
	if n < 1 {
		return 1
	}
	if n > 5 {
		return 5
	}
	return n
}

// datePatterns are tried in order; each yields year, month and day groups
var datePatterns = []struct {
	re    *regexp.Regexp
	order [3]int // submatch index of year, month, day
	short bool   // two-digit year
}{
	{regexp.MustCompile(`(\d{4})\s*년\s*(\d{1,2})\s*월\s*(\d{1,2})\s*일`), [3]int{1, 2, 3}, false},
	{regexp.MustCompile(`(\d{4})\s?[.\-/]\s?(\d{1,2})\s?[.\-/]\s?(\d{1,2})\.?`), [3]int{1, 2, 3}, false},
	{regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`), [3]int{3, 2, 1}, false},
	{regexp.MustCompile(`\b(\d{2})\.(\d{1,2})\.(\d{1,2})\.`), [3]int{1, 2, 3}, true},
}

// FindDate returns the earliest date-like substring of text as YYYY-MM-DD
func FindDate(text string) (string, bool) {
	best, bestPos := "", -1
	for _, p := range datePatterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			if bestPos >= 0 && loc[0] >= bestPos {
				break
			}
			group := func(i int) string { return text[loc[2*i]:loc[2*i+1]] }
			year, _ := strconv.Atoi(group(p.order[0]))
			month, _ := strconv.Atoi(group(p.order[1]))
			day, _ := strconv.Atoi(group(p.order[2]))
			if p.short {
				year += 2000
			}
			if !validDate(year, month, day) {
				continue
			}
			best, bestPos = fmt.Sprintf("%04d-%02d-%02d", year, month, day), loc[0]
			break
		}
	}
	return best, bestPos >= 0
}

func validDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day
}

var authorPattern = regexp.MustCompile(`(?:작성자|닉네임|글쓴이)\s*[:：]\s*([^\s,]+)`)

// FindAuthor reads an explicit "작성자: 이름" marker
func FindAuthor(text string) (string, bool) {
	m := authorPattern.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

var (
	starRunPattern  = regexp.MustCompile(`[★☆⭐\x{FE0F}]+`)
	spaceRunPattern = regexp.MustCompile(`[\s\x{00A0}\x{3000}]+`)
)

// StripNoise removes star runs, score phrases, dates and author markers,
// collapses whitespace and drops empty lines.
func StripNoise(text string) string {
	cleaned := starRunPattern.ReplaceAllString(text, " ")
	cleaned = scorePattern.ReplaceAllString(cleaned, " ")
	cleaned = authorPattern.ReplaceAllString(cleaned, " ")
	for _, p := range datePatterns {
		cleaned = p.re.ReplaceAllString(cleaned, " ")
	}

	var lines []string
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(spaceRunPattern.ReplaceAllString(line, " "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// GuessBusiness returns the first non-empty line of the cleaned text,
// truncated to maxRunes.
func GuessBusiness(text string, maxRunes int) string {
	for _, line := range strings.Split(StripNoise(text), "\n") {
		if line != "" {
			return truncateRunes(line, maxRunes)
		}
	}
	return ""
}

func truncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 || utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:maxRunes]))
}
