package tileindex

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/scttfrdmn/vcftiles/pkg/genome"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
	"github.com/scttfrdmn/vcftiles/pkg/vcftiles"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVCF = `##fileformat=VCFv4.2
#CHROM	POS	ID	REF	ALT	QUAL	FILTER	INFO
chr1	10	.	A	G	.	PASS	SCORE=1;IMPACT=LOW
chr1	20	.	A	G	.	PASS	SCORE=4;IMPACT=HIGH
chr1	5000	.	A	G	.	PASS	SCORE=2;IMPACT=LOW
chr2	100	.	A	G	.	PASS	SCORE=9;IMPACT=HIGH
chrM	50	.	A	G	.	PASS	SCORE=3;IMPACT=LOW
`

func buildTestPyramid(t *testing.T) (*vcftiles.Catalog, *vcftiles.Pyramid, *genome.Mapper) {
	r, err := vcf.NewReader(strings.NewReader(testVCF))
	require.NoError(t, err)
	records, err := r.ReadAll()
	require.NoError(t, err)

	m, err := genome.NewMapper(genome.Assembly{Name: "test", Chromosomes: []genome.Chromosome{
		{Name: "chr1", Length: 10000},
		{Name: "chr2", Length: 10000},
		{Name: "chrM", Length: 100},
	}})
	require.NoError(t, err)
	cat, err := vcftiles.LoadCatalog(records, m, vcftiles.CatalogOptions{ImportanceKey: "SCORE", CategoryKey: "IMPACT"})
	require.NoError(t, err)

	cfg := vcftiles.NewConfig()
	cfg.Levels = 4
	cfg.MaxPerTile = 1
	cfg.Direction = vcftiles.Descending
	b, err := vcftiles.NewBuilder(cat, cfg)
	require.NoError(t, err)
	p, err := b.Build(context.Background())
	require.NoError(t, err)
	return cat, p, cat.Mapper()
}

func writeTestIndex(t *testing.T, path string) {
	cat, p, m := buildTestPyramid(t)
	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteMetadata(map[string]string{KeyAssembly: "test", KeyLevels: "4"}))
	require.NoError(t, w.WriteChromosomes(m))
	require.NoError(t, w.WritePyramid(cat, p))
	require.NoError(t, w.Close(context.Background()))
}

func TestTileIndexRoundTrip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "tiles.db")
	writeTestIndex(t, path)

	idx, err := Open(path)
	require.NoError(t, err)
	defer idx.Close()

	meta, err := idx.Metadata()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyAssembly: "test", KeyLevels: "4"}, meta)

	chroms, err := idx.Chromosomes()
	require.NoError(t, err)
	assert.Equal(t, []ChromosomeRow{
		{Name: "chr1", Rank: 0, Offset: 0, Length: 10000},
		{Name: "chr2", Rank: 1, Offset: 10000, Length: 10000},
		{Name: "chrM", Rank: 2, Offset: 20000, Length: 100},
	}, chroms)

	levels, err := idx.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 4)
	assert.Equal(t, LevelRow{Level: 0, TileSize: 1024, Tiles: 0, Entries: 4}, levels[0])
	// Level 1 (2048): [0,2048) with 2 candidates, [4096,6144), [8192,10240) and
	// the chrM tile, which keeps nothing
	assert.Equal(t, LevelRow{Level: 1, TileSize: 2048, Tiles: 4, Entries: 3}, levels[1])

	region, err := ParseRegion("chr1:1-3000")
	require.NoError(t, err)
	tiles, err := idx.FindTiles(region, 1)
	require.NoError(t, err)
	assert.Equal(t, []TileRow{{Level: 1, Start: 0, End: 2048, Candidates: 2, Kept: 1}}, tiles)

	entries, err := idx.FindEntries(region, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, EntryRow{Level: 1, ID: 1, Chrom: "chr1", Pos: 20, AbsPos: 20, Importance: 4, Category: "HIGH"}, entries[0])

	whole, err := ParseRegion("chr1")
	require.NoError(t, err)
	entries, err = idx.FindEntries(whole, 0, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].ID)
	assert.Equal(t, int64(1), entries[1].ID)

	// chrM is in the axis but has no entries
	mito, err := ParseRegion("chrM")
	require.NoError(t, err)
	entries, err = idx.FindEntries(mito, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, entries)

	unknown, err := ParseRegion("chr9:1-10")
	require.NoError(t, err)
	_, err = idx.FindTiles(unknown, 1)
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestTileIndexAbort(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "tiles.db")

	w, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteMetadata(map[string]string{KeyVersion: "test"}))
	require.NoError(t, w.Abort())

	entries, err := os.ReadDir(tmpdir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = Open(path)
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestOpenNotIndex(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "empty.db")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := Open(path)
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in   string
		want Region
		ok   bool
	}{
		{"chr1:1000-2000", Region{"chr1", 1000, 2000}, true},
		{"chr1:1,000-2,000", Region{"chr1", 1000, 2000}, true},
		{"chrX", Region{Chrom: "chrX"}, true},
		{"HLA-A*01:01:1-5", Region{"HLA-A*01:01", 1, 5}, true},
		{"chr1:5-5", Region{"chr1", 5, 5}, true},
		{"", Region{}, false},
		{":1-2", Region{}, false},
		{"chr1:0-10", Region{}, false},
		{"chr1:10-5", Region{}, false},
		{"chr1:10", Region{}, false},
		{"chr1:a-b", Region{}, false},
	}
	for _, tt := range tests {
		got, err := ParseRegion(tt.in)
		if !tt.ok {
			assert.True(t, errors.Is(errors.Invalid, err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	assert.Equal(t, "chr1:1-5", Region{"chr1", 1, 5}.String())
	assert.Equal(t, "chr1", Region{Chrom: "chr1"}.String())
}
