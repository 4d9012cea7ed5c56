package csvimport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var seoul = LoadLocation(DefaultTimezone)

func fixedNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestNormalizer() *Normalizer {
	return NewNormalizer(WithLocation(seoul), WithClock(fixedNow))
}

func record(source Source, index int, kv ...string) *RawRecord {
	rec := NewRawRecord(index, source)
	for i := 0; i+1 < len(kv); i += 2 {
		rec.Add(kv[i], kv[i+1])
	}
	return rec
}

func TestParseRating(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", DefaultRating},
		{"   ", DefaultRating},
		{"4", 4},
		{"4.0", 4},
		{"4점", 4},
		{"4 점", 4},
		{"3/5", 3},
		{"★★★", 3},
		{"★★★★☆", 4},
		{"4.5", 0},
		{"좋음", 0},
		{"7", 7},
		{"0", 0},
		{"-1", -1},
		{"99999999999999", 0},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRating(tt.raw))
		})
	}
}

func TestNormalizer_ParseDate(t *testing.T) {
	n := newTestNormalizer()

	tests := []struct {
		raw  string
		want string
	}{
		{"2024-01-15", "2024-01-15"},
		{"2024-1-5", "2024-01-05"},
		{"2024.01.15", "2024-01-15"},
		{"2024.01.15.", "2024-01-15"},
		{"2024. 1. 15.", "2024-01-15"},
		{"2024/01/15", "2024-01-15"},
		{"15-01-2024", "2024-01-15"},
		{"2024-01-15 10:30:00", "2024-01-15"},
		{"2024-01-15T10:30:00Z", "2024-01-15"},
		{"45306", "2024-01-15"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := n.ParseDate(tt.raw)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
			assert.Equal(t, seoul, got.Location())
		})
	}

	for _, raw := range []string{"", "어제", "2024-13-01", "2024", "15/01/2024"} {
		t.Run("rejects "+raw, func(t *testing.T) {
			_, ok := n.ParseDate(raw)
			assert.False(t, ok)
		})
	}
}

func TestNormalizer_Normalize(t *testing.T) {
	n := newTestNormalizer()

	t.Run("Canonical and alias labels", func(t *testing.T) {
		rec := record(SourceTabular, 2,
			"사이트", " Naver ",
			"상호", "카페 A",
			"후기", "맛있어요",
			"닉네임", "김철수",
			"별점", "4",
			"작성일", "2024-01-15",
		)

		got := n.Normalize(rec)
		assert.Equal(t, rec.Ref, got.Ref)
		assert.Equal(t, "naver", got.Platform)
		assert.Equal(t, "카페 A", got.Business)
		assert.Equal(t, "맛있어요", got.Content)
		assert.Equal(t, "김철수", got.Author)
		assert.Equal(t, 4, got.Rating)
		assert.Equal(t, "4", got.RatingRaw)
		assert.Equal(t, "2024-01-15", got.ReviewDate.Format("2006-01-02"))
		assert.Nil(t, got.ImageURL)
	})

	t.Run("Canonical name wins over alias", func(t *testing.T) {
		rec := record(SourceTabular, 2, "플랫폼", "kakao", "platform", "naver")
		assert.Equal(t, "naver", n.Normalize(rec).Platform)
	})

	t.Run("Blank value falls through to the next spelling", func(t *testing.T) {
		rec := record(SourceTabular, 2, "content", "  ", "내용", "좋아요")
		assert.Equal(t, "좋아요", n.Normalize(rec).Content)
	})

	t.Run("Tabular defaults", func(t *testing.T) {
		got := n.Normalize(record(SourceTabular, 2, "내용", "좋아요"))

		assert.Equal(t, "", got.Platform)
		assert.Equal(t, "", got.Business)
		assert.Equal(t, "익명", got.Author)
		assert.Equal(t, DefaultRating, got.Rating)
		assert.True(t, got.ReviewDate.Equal(fixedNow()))
	})

	t.Run("Unparsable date falls back to now", func(t *testing.T) {
		got := n.Normalize(record(SourceTabular, 2, "날짜", "어제"))
		assert.True(t, got.ReviewDate.Equal(fixedNow()))
	})

	t.Run("Source defaults", func(t *testing.T) {
		paste := n.Normalize(record(SourcePaste, 1, "content", "좋아요"))
		assert.Equal(t, DefaultPastePlatform, paste.Platform)
		assert.Equal(t, "익명", paste.Author)

		ocr := n.Normalize(record(SourceOCR, 1, "content", "좋아요"))
		assert.Equal(t, DefaultOCRPlatform, ocr.Platform)
		assert.Equal(t, "고객", ocr.Author)
	})

	t.Run("Batch defaults", func(t *testing.T) {
		withDefaults := n.WithDefaults(FieldDefaults{Platform: "Instagram", Business: "카페 C"})

		got := withDefaults.Normalize(record(SourcePaste, 1, "content", "좋아요"))
		assert.Equal(t, "instagram", got.Platform)
		assert.Equal(t, "카페 C", got.Business)

		own := withDefaults.Normalize(record(SourcePaste, 2, "platform", "naver", "business", "카페 D"))
		assert.Equal(t, "naver", own.Platform)
		assert.Equal(t, "카페 D", own.Business)

		assert.Equal(t, "", n.Normalize(record(SourceTabular, 2)).Business)
	})

	t.Run("Overriding batch defaults", func(t *testing.T) {
		forced := n.WithDefaults(FieldDefaults{Business: "카페 C", Override: true})

		got := forced.Normalize(record(SourceOCR, 1, "platform", "naver", "business", "첫 줄 추측", "content", "좋아요"))
		assert.Equal(t, "naver", got.Platform)
		assert.Equal(t, "카페 C", got.Business)
	})

	t.Run("Image URL", func(t *testing.T) {
		rec := record(SourceOCR, 1, "content", "좋아요")
		rec.ImageURL = "https://cdn.example.com/a.png"

		got := n.Normalize(rec)
		require.NotNil(t, got.ImageURL)
		assert.Equal(t, "https://cdn.example.com/a.png", *got.ImageURL)
		assert.Equal(t, "ocr", got.ReviewInput().Source)
	})

	t.Run("Same day shares a key", func(t *testing.T) {
		a := n.Normalize(record(SourceTabular, 2, "platform", "naver", "business", "A", "content", "좋아요", "date", "2024-01-15"))
		b := n.Normalize(record(SourceTabular, 3, "platform", "naver", "business", "A", "content", "좋아요", "date", "2024.1.15 21:00"))
		assert.Equal(t, a.Key(), b.Key())
	})
}
