package genome

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Mapper converts (chromosome, position) pairs to absolute coordinates.
// It is immutable and safe for concurrent use.
type Mapper struct {
	assembly    string
	chromosomes []Chromosome
	offsets     map[string]uint64
	ranks       map[string]int
	total       uint64
}

// NewMapper builds a mapper over the assembly's chromosomes followed by extras.
// Extras let callers place chromosomes the assembly does not know about at the
// end of the axis.
func NewMapper(a Assembly, extras ...Chromosome) (*Mapper, error) {
	m := &Mapper{
		assembly: a.Name,
		offsets:  make(map[string]uint64),
		ranks:    make(map[string]int),
	}
	all := append(append([]Chromosome{}, a.Chromosomes...), extras...)
	for _, c := range all {
		if _, dup := m.offsets[c.Name]; dup {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("chromosome %q listed twice", c.Name))
		}
		m.offsets[c.Name] = m.total
		m.ranks[c.Name] = len(m.chromosomes)
		m.chromosomes = append(m.chromosomes, c)
		m.total += c.Length
	}
	return m, nil
}

// Extend returns a new mapper with extras appended after the existing
// chromosomes. The receiver is unchanged.
func (m *Mapper) Extend(extras ...Chromosome) (*Mapper, error) {
	return NewMapper(Assembly{Name: m.assembly, Chromosomes: m.chromosomes}, extras...)
}

// Resize returns a new mapper in which each chromosome named in lengths is
// at least that long. Offsets of later chromosomes shift accordingly.
func (m *Mapper) Resize(lengths map[string]uint64) (*Mapper, error) {
	chroms := m.Chromosomes()
	for name := range lengths {
		if !m.Has(name) {
			return nil, errors.E(errors.NotExist, fmt.Sprintf("chromosome %q not in assembly %s", name, m.assembly))
		}
	}
	for i, c := range chroms {
		if l, ok := lengths[c.Name]; ok && l > c.Length {
			chroms[i].Length = l
		}
	}
	return NewMapper(Assembly{Name: m.assembly, Chromosomes: chroms})
}

// ChromosomeLength returns the length of chrom
func (m *Mapper) ChromosomeLength(chrom string) (uint64, bool) {
	r, ok := m.ranks[chrom]
	if !ok {
		return 0, false
	}
	return m.chromosomes[r].Length, true
}

// Assembly returns the name of the underlying assembly
func (m *Mapper) Assembly() string {
	return m.assembly
}

// Absolute returns offset(chrom) + pos. Positions are 1-based; the result is
// monotonic within a chromosome and across chromosomes in mapper order.
// Positions past the end of the chromosome are rejected.
func (m *Mapper) Absolute(chrom string, pos uint64) (uint64, error) {
	off, ok := m.offsets[chrom]
	if !ok {
		return 0, errors.E(errors.NotExist, fmt.Sprintf("chromosome %q not in assembly %s", chrom, m.assembly))
	}
	if length := m.chromosomes[m.ranks[chrom]].Length; pos > length {
		return 0, errors.E(errors.Invalid,
			fmt.Sprintf("position %s:%d beyond chromosome length %d", chrom, pos, length))
	}
	return off + pos, nil
}

// Has reports whether the mapper knows chrom
func (m *Mapper) Has(chrom string) bool {
	_, ok := m.offsets[chrom]
	return ok
}

// Offset returns the absolute start of chrom
func (m *Mapper) Offset(chrom string) (uint64, bool) {
	off, ok := m.offsets[chrom]
	return off, ok
}

// Rank returns the position of chrom in mapper order
func (m *Mapper) Rank(chrom string) (int, bool) {
	r, ok := m.ranks[chrom]
	return r, ok
}

// Chromosomes returns the chromosomes in mapper order
func (m *Mapper) Chromosomes() []Chromosome {
	return append([]Chromosome(nil), m.chromosomes...)
}

// Length returns the total length of the axis
func (m *Mapper) Length() uint64 {
	return m.total
}
