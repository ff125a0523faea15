package vcftiles

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/scttfrdmn/vcftiles/pkg/genome"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
)

const (
	// MitochondrialChromosome is indexed but never eligible for output
	MitochondrialChromosome = "chrM"

	// missingImportance is the sentinel mapped to an importance of 0
	missingImportance = "NA"
)

// CatalogOptions selects the INFO keys the catalog derives fields from
type CatalogOptions struct {
	ImportanceKey string   // empty: importance is 0 for every variant
	CategoryKey   string   // empty: no categories
	Categories    []string // expected category values, for diagnostics
}

// Catalog is the immutable, id-indexed set of variants of one run
type Catalog struct {
	variants    []Variant
	chromosomes []string // eligible, sorted
	eligible    map[string]bool
	byAbsolute  []uint64 // ids sorted by (AbsolutePosition, ID)
	maxAbsolute uint64
	mapper      *genome.Mapper
	summary     Summary
}

// Summary describes the catalog contents
type Summary struct {
	Variants       int
	Excluded       int // variants on ineligible chromosomes
	Chromosomes    []ChromosomeSummary
	Unknown        []string // labels missing from the assembly
	Resized        []string // labels with variants beyond their assembly length
	ImportanceMin  float64
	ImportanceMax  float64
	CategoryCounts map[string]int
	Unrecognized   map[string]int // category values not in CatalogOptions.Categories
}

// ChromosomeSummary describes the variants on one chromosome
type ChromosomeSummary struct {
	Name        string
	Variants    int
	MaxPosition uint64
	Eligible    bool
}

// LoadCatalog assigns ids 0..N-1 in input order and derives absolute
// position, importance and category for every record. Chromosomes the mapper
// does not know are placed after it in lexicographic order, each sized by its
// largest observed position. Known chromosomes with variants past their end
// are extended to fit, with a warning.
func LoadCatalog(records []*vcf.Record, mapper *genome.Mapper, opts CatalogOptions) (*Catalog, error) {
	c := &Catalog{
		variants: make([]Variant, len(records)),
		eligible: make(map[string]bool),
		summary: Summary{
			Variants:       len(records),
			CategoryCounts: make(map[string]int),
			Unrecognized:   make(map[string]int),
		},
	}

	// First pass: chromosome set and per-chromosome extents
	perChrom := make(map[string]*ChromosomeSummary)
	for _, rec := range records {
		cs, ok := perChrom[rec.Chrom]
		if !ok {
			cs = &ChromosomeSummary{Name: rec.Chrom}
			perChrom[rec.Chrom] = cs
		}
		cs.Variants++
		if rec.Pos > cs.MaxPosition {
			cs.MaxPosition = rec.Pos
		}
	}

	var extras []genome.Chromosome
	overlong := make(map[string]uint64)
	for name, cs := range perChrom {
		length, ok := mapper.ChromosomeLength(name)
		if !ok {
			extras = append(extras, genome.Chromosome{Name: name, Length: cs.MaxPosition})
		} else if cs.MaxPosition > length {
			overlong[name] = cs.MaxPosition
		}
	}
	if len(overlong) > 0 {
		for name := range overlong {
			c.summary.Resized = append(c.summary.Resized, name)
		}
		sort.Strings(c.summary.Resized)
		for _, name := range c.summary.Resized {
			length, _ := mapper.ChromosomeLength(name)
			log.Error.Printf("warning: %s has variants up to position %d beyond its length %d in assembly %s, extending it",
				name, overlong[name], length, mapper.Assembly())
		}
		var err error
		if mapper, err = mapper.Resize(overlong); err != nil {
			return nil, err
		}
	}
	if len(extras) > 0 {
		sort.Slice(extras, func(i, j int) bool { return extras[i].Name < extras[j].Name })
		for _, e := range extras {
			log.Error.Printf("warning: chromosome %s not in assembly %s, placing it after the known chromosomes",
				e.Name, mapper.Assembly())
			c.summary.Unknown = append(c.summary.Unknown, e.Name)
		}
		var err error
		if mapper, err = mapper.Extend(extras...); err != nil {
			return nil, err
		}
	}
	c.mapper = mapper

	for name, cs := range perChrom {
		if name != MitochondrialChromosome {
			c.eligible[name] = true
			c.chromosomes = append(c.chromosomes, name)
			cs.Eligible = true
		}
		c.summary.Chromosomes = append(c.summary.Chromosomes, *cs)
	}
	sort.Strings(c.chromosomes)
	sort.Slice(c.summary.Chromosomes, func(i, j int) bool {
		return c.summary.Chromosomes[i].Name < c.summary.Chromosomes[j].Name
	})

	expected := make(map[string]bool, len(opts.Categories))
	for _, cat := range opts.Categories {
		expected[cat] = true
	}

	// Second pass: derived fields
	c.summary.ImportanceMin = math.Inf(1)
	c.summary.ImportanceMax = math.Inf(-1)
	for i, rec := range records {
		id := uint64(i)
		abs, err := mapper.Absolute(rec.Chrom, rec.Pos)
		if err != nil {
			return nil, err
		}

		v := &c.variants[i]
		v.ID = id
		v.Chromosome = rec.Chrom
		v.Position = rec.Pos
		v.AbsolutePosition = abs
		v.Record = rec

		if opts.ImportanceKey != "" {
			if v.Importance, err = parseImportance(rec, id, opts.ImportanceKey); err != nil {
				return nil, err
			}
		}
		c.summary.ImportanceMin = math.Min(c.summary.ImportanceMin, v.Importance)
		c.summary.ImportanceMax = math.Max(c.summary.ImportanceMax, v.Importance)

		if opts.CategoryKey != "" {
			cat, ok := rec.Info(opts.CategoryKey)
			if !ok {
				return nil, parseError(id, opts.CategoryKey, "", "missing category annotation")
			}
			v.Category, v.HasCategory = cat, true
			c.summary.CategoryCounts[cat]++
			if len(expected) > 0 && !expected[cat] {
				c.summary.Unrecognized[cat]++
			}
		}

		if !c.eligible[rec.Chrom] {
			c.summary.Excluded++
		}
	}
	if len(records) == 0 {
		c.summary.ImportanceMin, c.summary.ImportanceMax = 0, 0
	}
	unrecognized := make([]string, 0, len(c.summary.Unrecognized))
	for cat := range c.summary.Unrecognized {
		unrecognized = append(unrecognized, cat)
	}
	sort.Strings(unrecognized)
	for _, cat := range unrecognized {
		log.Error.Printf("warning: category %s not expected (%d variants), using the %s bucket",
			cat, c.summary.Unrecognized[cat], Unclassified)
	}

	c.byAbsolute = make([]uint64, len(c.variants))
	for i := range c.byAbsolute {
		c.byAbsolute[i] = uint64(i)
	}
	sort.Slice(c.byAbsolute, func(i, j int) bool {
		a, b := &c.variants[c.byAbsolute[i]], &c.variants[c.byAbsolute[j]]
		if a.AbsolutePosition != b.AbsolutePosition {
			return a.AbsolutePosition < b.AbsolutePosition
		}
		return a.ID < b.ID
	})
	if n := len(c.byAbsolute); n > 0 {
		c.maxAbsolute = c.variants[c.byAbsolute[n-1]].AbsolutePosition
	}

	if log.At(log.Debug) {
		log.Debug.Printf("catalog: %d variants, chromosomes used: %v", len(c.variants), c.chromosomes)
	}
	return c, nil
}

// parseImportance reads the first element of the importance annotation,
// mapping the "NA" sentinel to 0
func parseImportance(rec *vcf.Record, id uint64, key string) (float64, error) {
	raw, ok := rec.Info(key)
	if !ok {
		return 0, parseError(id, key, "", "missing importance annotation")
	}
	if raw == missingImportance {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) {
		return 0, parseError(id, key, raw, "importance is not numeric")
	}
	return f, nil
}

// Len returns the number of variants
func (c *Catalog) Len() int {
	return len(c.variants)
}

// ByID returns the variant with the given id
func (c *Catalog) ByID(id uint64) (*Variant, error) {
	if id >= uint64(len(c.variants)) {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("variant id %d out of range [0,%d)", id, len(c.variants)))
	}
	return &c.variants[id], nil
}

// Variants returns all variants in id order. Callers must not modify them.
func (c *Catalog) Variants() []Variant {
	return c.variants
}

// Chromosomes returns the output-eligible chromosome labels, sorted, with
// the mitochondrial chromosome removed
func (c *Catalog) Chromosomes() []string {
	return append([]string(nil), c.chromosomes...)
}

// Eligible reports whether variants on chrom may be emitted
func (c *Catalog) Eligible(chrom string) bool {
	return c.eligible[chrom]
}

// SortedByAbsolute returns ids ordered by (AbsolutePosition, ID). Callers
// must not modify the slice.
func (c *Catalog) SortedByAbsolute() []uint64 {
	return c.byAbsolute
}

// MaxAbsolute returns the largest absolute position in the catalog
func (c *Catalog) MaxAbsolute() uint64 {
	return c.maxAbsolute
}

// Mapper returns the coordinate mapper, extended with unknown chromosomes
func (c *Catalog) Mapper() *genome.Mapper {
	return c.mapper
}

// Summary returns catalog statistics
func (c *Catalog) Summary() Summary {
	return c.summary
}
