package csvimport

import "github.com/reviewfolio/backend/internal/domain/review"

// Where a duplicate was found
const (
	MatchedBatch    = "batch"
	MatchedExisting = "existing"
)

// DuplicateDecision is the verdict for one valid review. MatchedRow is the
// earlier batch row it repeats; zero for existing matches.
type DuplicateDecision struct {
	Duplicate      bool
	MatchedAgainst string
	MatchedRow     int
}

// Deduplicator decides, in input order, whether each review repeats one
// already stored or one seen earlier in the same batch.
type Deduplicator struct {
	existing map[string]struct{}
	seen     map[string]int
}

// NewDeduplicator seeds the deduplicator with the owner's stored keys
func NewDeduplicator(existing []review.DedupKey) *Deduplicator {
	d := &Deduplicator{
		existing: make(map[string]struct{}, len(existing)),
		seen:     make(map[string]int),
	}
	for _, k := range existing {
		d.existing[k.Hash()] = struct{}{}
	}
	return d
}

// Decide checks r and, when it is new, records its key. Keys are never
// removed, so a review whose persistence later fails still counts as seen.
func (d *Deduplicator) Decide(r CanonicalReview) DuplicateDecision {
	hash := r.Key().Hash()
	if _, ok := d.existing[hash]; ok {
		return DuplicateDecision{Duplicate: true, MatchedAgainst: MatchedExisting}
	}
	if row, ok := d.seen[hash]; ok {
		return DuplicateDecision{Duplicate: true, MatchedAgainst: MatchedBatch, MatchedRow: row}
	}
	d.seen[hash] = r.Ref.Index
	return DuplicateDecision{}
}

// Seen returns the number of distinct new keys recorded so far
func (d *Deduplicator) Seen() int {
	return len(d.seen)
}
