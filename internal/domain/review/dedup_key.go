package review

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DayLayout is the calendar-day format used in dedup keys
const DayLayout = "2006-01-02"

// DedupKey identifies a review for duplicate detection. Content is compared
// exactly; the date only to the day.
type DedupKey struct {
	Platform string
	Business string
	Author   string
	Content  string
	Day      string
}

// NewDedupKey builds a key from canonical review fields
func NewDedupKey(platform, business, author, content string, date time.Time) DedupKey {
	return DedupKey{
		Platform: platform,
		Business: business,
		Author:   author,
		Content:  content,
		Day:      date.Format(DayLayout),
	}
}

// Hash returns a stable hex digest of the key, used as the unique column
func (k DedupKey) Hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{k.Platform, k.Business, k.Author, k.Content, k.Day}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
