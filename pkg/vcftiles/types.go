package vcftiles

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
)

// Variant is one catalog entry. Variants are created once by LoadCatalog and
// never modified afterwards.
type Variant struct {
	ID               uint64  // 0..N-1 in input order
	Chromosome       string  // original label
	Position         uint64  // 1-based local coordinate
	AbsolutePosition uint64  // position on the concatenated genome axis
	Importance       float64 // ranking score
	Category         string  // stratification label, if HasCategory
	HasCategory      bool
	Record           *vcf.Record // original record, shared, never mutated
}

// Tile is a half-open interval [Start, End) of the absolute axis at a zoom level
type Tile struct {
	Level uint32
	Start uint64
	End   uint64
}

func (t Tile) String() string {
	return fmt.Sprintf("%d:%d-%d", t.Level, t.Start, t.End)
}

// Entry pairs a variant with the zoom level it is emitted at
type Entry struct {
	Level uint32
	ID    uint64
}

// TileSummary describes one non-empty tile of a level
type TileSummary struct {
	Tile
	Candidates int
	Kept       int
}

// LevelResult holds the entries emitted for a single zoom level
type LevelResult struct {
	Level    uint32
	TileSize uint64
	Entries  []Entry
	Tiles    []TileSummary // empty for level 0
}

// Pyramid is the complete multi-resolution output, levels in ascending order
type Pyramid struct {
	Levels []LevelResult
}

// NumEntries returns the total number of entries across levels
func (p *Pyramid) NumEntries() int {
	n := 0
	for _, l := range p.Levels {
		n += len(l.Entries)
	}
	return n
}

// Each calls fn for every entry in canonical (level, tile, id) order,
// stopping at the first error
func (p *Pyramid) Each(fn func(Entry) error) error {
	for _, l := range p.Levels {
		for _, e := range l.Entries {
			if err := fn(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Direction selects which end of the importance ranking survives truncation
type Direction int

const (
	// DirectionUnset is invalid; callers must choose explicitly
	DirectionUnset Direction = iota
	// Ascending keeps the lowest-importance variants
	Ascending
	// Descending keeps the highest-importance variants
	Descending
)

func (d Direction) String() string {
	switch d {
	case Ascending:
		return "ascending"
	case Descending:
		return "descending"
	default:
		return "unset"
	}
}

// ParseDirection parses "ascending" / "descending" (or "asc" / "desc")
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ascending", "asc":
		return Ascending, nil
	case "descending", "desc":
		return Descending, nil
	}
	return DirectionUnset, errors.E(errors.Invalid,
		fmt.Sprintf("invalid ranking direction %q (expected ascending or descending)", s))
}

// CoverageWindow is one line of the coverage track
type CoverageWindow struct {
	Chrom string
	Start uint64
	End   uint64
	Count int
}
