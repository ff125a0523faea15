package vcftiles

import (
	"fmt"
	"strings"
	"testing"

	"github.com/scttfrdmn/vcftiles/pkg/genome"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = "##fileformat=VCFv4.2\n#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO\n"

// testVariant is one synthetic input line
type testVariant struct {
	chrom string
	pos   uint64
	info  string
}

func testAssembly() genome.Assembly {
	return genome.Assembly{Name: "test", Chromosomes: []genome.Chromosome{
		{Name: "chr1", Length: 100000},
		{Name: "chr2", Length: 50000},
		{Name: "chrM", Length: 1000},
	}}
}

func testVCF(variants []testVariant) string {
	var b strings.Builder
	b.WriteString(testHeader)
	for i, v := range variants {
		fmt.Fprintf(&b, "%s\t%d\trs%d\tA\tG\t.\tPASS\t%s\n", v.chrom, v.pos, i, v.info)
	}
	return b.String()
}

func readTestRecords(t *testing.T, variants []testVariant) (*vcf.Header, []*vcf.Record) {
	r, err := vcf.NewReader(strings.NewReader(testVCF(variants)))
	require.NoError(t, err)
	records, err := r.ReadAll()
	require.NoError(t, err)
	return r.Header(), records
}

func newTestCatalog(t *testing.T, variants []testVariant, opts CatalogOptions) *Catalog {
	_, records := readTestRecords(t, variants)
	m, err := genome.NewMapper(testAssembly())
	require.NoError(t, err)
	cat, err := LoadCatalog(records, m, opts)
	require.NoError(t, err)
	return cat
}

var scoreOpts = CatalogOptions{ImportanceKey: "SCORE"}

func TestLoadCatalog(t *testing.T) {
	cat := newTestCatalog(t, []testVariant{
		{"chr2", 5, "SCORE=1.5"},
		{"chr1", 10, "SCORE=NA"},
		{"chrM", 7, "SCORE=3"},
		{"chr1", 20, "SCORE=-2,4"},
	}, scoreOpts)

	assert.Equal(t, 4, cat.Len())
	assert.Equal(t, []string{"chr1", "chr2"}, cat.Chromosomes())
	assert.False(t, cat.Eligible("chrM"))

	tests := []struct {
		id         uint64
		abs        uint64
		importance float64
	}{
		{0, 100005, 1.5},
		{1, 10, 0},
		{2, 150007, 3},
		{3, 20, -2},
	}
	for _, tt := range tests {
		v, err := cat.ByID(tt.id)
		require.NoError(t, err)
		assert.Equal(t, tt.id, v.ID)
		assert.Equal(t, tt.abs, v.AbsolutePosition, "id %d", tt.id)
		assert.Equal(t, tt.importance, v.Importance, "id %d", tt.id)
	}

	assert.Equal(t, []uint64{1, 3, 0, 2}, cat.SortedByAbsolute())
	assert.Equal(t, uint64(150007), cat.MaxAbsolute())

	s := cat.Summary()
	assert.Equal(t, 4, s.Variants)
	assert.Equal(t, 1, s.Excluded)
	assert.Equal(t, -2.0, s.ImportanceMin)
	assert.Equal(t, 3.0, s.ImportanceMax)
	require.Len(t, s.Chromosomes, 3)
	assert.Equal(t, ChromosomeSummary{Name: "chr1", Variants: 2, MaxPosition: 20, Eligible: true}, s.Chromosomes[0])

	_, err := cat.ByID(4)
	assert.True(t, IsNotFound(err))
}

func TestLoadCatalogUnknownChromosome(t *testing.T) {
	cat := newTestCatalog(t, []testVariant{
		{"chrZ", 30, "SCORE=1"},
		{"chr1", 1, "SCORE=1"},
		{"chrY", 7, "SCORE=1"},
	}, scoreOpts)

	// Appended after the assembly (total 151000), lexicographically
	y, err := cat.ByID(2)
	require.NoError(t, err)
	assert.Equal(t, uint64(151000+7), y.AbsolutePosition)
	z, err := cat.ByID(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(151000+7+30), z.AbsolutePosition)

	assert.Equal(t, []string{"chrY", "chrZ"}, cat.Summary().Unknown)
	assert.Equal(t, []string{"chr1", "chrY", "chrZ"}, cat.Chromosomes())
}

func TestLoadCatalogPositionBeyondChromosome(t *testing.T) {
	cat := newTestCatalog(t, []testVariant{
		{"chr1", 150000, "SCORE=1"},
		{"chr2", 10, "SCORE=1"},
		{"chr1", 5, "SCORE=1"},
	}, scoreOpts)

	// chr1 (100000 in the assembly) grows to 150000 and chr2 moves after it
	assert.Equal(t, []string{"chr1"}, cat.Summary().Resized)
	chr2, err := cat.ByID(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(150000+10), chr2.AbsolutePosition)
	assert.Equal(t, []uint64{2, 0, 1}, cat.SortedByAbsolute())

	l, ok := cat.Mapper().ChromosomeLength("chr1")
	assert.True(t, ok)
	assert.Equal(t, uint64(150000), l)
}

func TestLoadCatalogErrors(t *testing.T) {
	tests := []struct {
		name string
		info string
		opts CatalogOptions
	}{
		{"missing importance", "OTHER=1", scoreOpts},
		{"non-numeric importance", "SCORE=abc", scoreOpts},
		{"nan importance", "SCORE=NaN", scoreOpts},
		{"dot is not a sentinel", "SCORE=.", scoreOpts},
		{"missing category", "SCORE=1", CatalogOptions{ImportanceKey: "SCORE", CategoryKey: "IMPACT"}},
	}
	m, err := genome.NewMapper(testAssembly())
	require.NoError(t, err)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, records := readTestRecords(t, []testVariant{{"chr1", 1, tt.info}})
			_, err := LoadCatalog(records, m, tt.opts)
			require.Error(t, err)
			assert.True(t, IsParseError(err), err.Error())
		})
	}
}

func TestLoadCatalogCategories(t *testing.T) {
	cat := newTestCatalog(t, []testVariant{
		{"chr1", 1, "SCORE=1;IMPACT=HIGH"},
		{"chr1", 2, "SCORE=1;IMPACT=WEIRD"},
		{"chr1", 3, "SCORE=1;IMPACT=HIGH,LOW"},
	}, CatalogOptions{ImportanceKey: "SCORE", CategoryKey: "IMPACT", Categories: DefaultCategories})

	v, err := cat.ByID(2)
	require.NoError(t, err)
	assert.True(t, v.HasCategory)
	assert.Equal(t, "HIGH", v.Category)

	s := cat.Summary()
	assert.Equal(t, map[string]int{"HIGH": 2, "WEIRD": 1}, s.CategoryCounts)
	assert.Equal(t, map[string]int{"WEIRD": 1}, s.Unrecognized)
}

func TestLoadCatalogNoImportanceKey(t *testing.T) {
	cat := newTestCatalog(t, []testVariant{{"chr1", 1, "."}}, CatalogOptions{})
	v, err := cat.ByID(0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Importance)
	assert.False(t, v.HasCategory)
}

func TestLoadCatalogEmpty(t *testing.T) {
	cat := newTestCatalog(t, nil, scoreOpts)
	assert.Equal(t, 0, cat.Len())
	assert.Empty(t, cat.Chromosomes())
	assert.Equal(t, uint64(0), cat.MaxAbsolute())
	assert.Equal(t, 0.0, cat.Summary().ImportanceMin)
}
