package domain

// Deduper tracks natural keys as they stream past. Memory grows with the
// distinct-key count only; rows are never retained
type Deduper struct {
	seen map[string]struct{}
	dups int
}

// NewDeduper returns an empty Deduper
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Seen records key and reports whether it was already present.
// The first occurrence returns false and wins
func (d *Deduper) Seen(key string) bool {
	if _, ok := d.seen[key]; ok {
		d.dups++
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Distinct returns the number of distinct keys seen
func (d *Deduper) Distinct() int { return len(d.seen) }

// Duplicates returns the number of later occurrences
func (d *Deduper) Duplicates() int { return d.dups }
