package vcftiles

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
)

// Unclassified is the implicit trailing bucket of stratified selection. It
// holds variants whose category is missing or not in the configured list.
const Unclassified = "unclassified"

// SelectionPolicy decides which candidates of a tile survive
type SelectionPolicy struct {
	Capacity   int       // per tile (flat) or per category per tile (stratified)
	Direction  Direction // which end of the importance ranking is kept
	Categories []string  // ordered buckets; empty selects flat mode
}

// BucketDrop records how many variants a bucket lost to its capacity
type BucketDrop struct {
	Bucket     string
	Candidates int
	Dropped    int
}

// SelectionReport describes one Select call
type SelectionReport struct {
	Candidates int
	Kept       int
	Drops      []BucketDrop // only buckets that exceeded capacity
}

// Stratified reports whether selection is applied per category
func (p SelectionPolicy) Stratified() bool {
	return len(p.Categories) > 0
}

// Validate checks the policy
func (p SelectionPolicy) Validate() error {
	if p.Capacity < 1 {
		return errors.E(errors.Invalid, fmt.Sprintf("max per tile must be >= 1, got %d", p.Capacity))
	}
	if p.Direction != Ascending && p.Direction != Descending {
		return errors.E(errors.Invalid, "ranking direction must be set explicitly (ascending or descending)")
	}
	seen := make(map[string]bool, len(p.Categories))
	for _, c := range p.Categories {
		if c == "" || c == Unclassified {
			return errors.E(errors.Invalid, fmt.Sprintf("invalid category %q", c))
		}
		if seen[c] {
			return errors.E(errors.Invalid, fmt.Sprintf("duplicate category %q", c))
		}
		seen[c] = true
	}
	return nil
}

// Select returns the surviving ids of a tile in ascending id order. ids may
// be in any order and are not modified.
func (p SelectionPolicy) Select(cat *Catalog, ids []uint64) ([]uint64, SelectionReport, error) {
	report := SelectionReport{Candidates: len(ids)}

	variants := make([]*Variant, len(ids))
	for i, id := range ids {
		v, err := cat.ByID(id)
		if err != nil {
			return nil, report, invariantError("tile candidate %d: %v", id, err)
		}
		variants[i] = v
	}

	var kept []*Variant
	if !p.Stratified() {
		var drop *BucketDrop
		kept, drop = p.truncate("", variants)
		if drop != nil {
			report.Drops = append(report.Drops, *drop)
		}
	} else {
		for i, bucket := range p.buckets(variants) {
			name := Unclassified
			if i < len(p.Categories) {
				name = p.Categories[i]
			}
			survivors, drop := p.truncate(name, bucket)
			if drop != nil {
				report.Drops = append(report.Drops, *drop)
			}
			kept = append(kept, survivors...)
		}
	}

	out := make([]uint64, len(kept))
	for i, v := range kept {
		out[i] = v.ID
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	report.Kept = len(out)
	return out, report, nil
}

// buckets partitions variants by category in configured order, with the
// unclassified bucket last
func (p SelectionPolicy) buckets(variants []*Variant) [][]*Variant {
	index := make(map[string]int, len(p.Categories))
	for i, c := range p.Categories {
		index[c] = i
	}
	buckets := make([][]*Variant, len(p.Categories)+1)
	for _, v := range variants {
		i, ok := index[v.Category]
		if !ok || !v.HasCategory {
			i = len(p.Categories)
		}
		buckets[i] = append(buckets[i], v)
	}
	return buckets
}

// truncate keeps the Capacity best-ranked variants of a bucket
func (p SelectionPolicy) truncate(name string, bucket []*Variant) ([]*Variant, *BucketDrop) {
	if len(bucket) <= p.Capacity {
		return bucket, nil
	}
	ranked := append([]*Variant(nil), bucket...)
	sort.Slice(ranked, func(i, j int) bool { return p.less(ranked[i], ranked[j]) })
	return ranked[:p.Capacity], &BucketDrop{
		Bucket:     name,
		Candidates: len(bucket),
		Dropped:    len(bucket) - p.Capacity,
	}
}

// less orders by importance in the configured direction, then ascending id
func (p SelectionPolicy) less(a, b *Variant) bool {
	if a.Importance != b.Importance {
		if p.Direction == Descending {
			return a.Importance > b.Importance
		}
		return a.Importance < b.Importance
	}
	return a.ID < b.ID
}
