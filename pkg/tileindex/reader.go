package tileindex

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/jmoiron/sqlx"
)

// Index is an open tile index
type Index struct {
	DB *sqlx.DB
}

// Open opens a local tile index for reading
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, err, "tile index not found", path)
		}
		return nil, errors.E(err, "failed to stat", path)
	}
	db, err := connect(path + "?mode=ro")
	if err != nil {
		return nil, errors.E(err, "failed to open tile index", path)
	}
	idx := &Index{DB: db}
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'levels'`); err != nil || n == 0 {
		db.Close()
		return nil, errors.E(errors.Invalid, "not a tile index", path)
	}
	return idx, nil
}

// Close closes the index
func (x *Index) Close() error {
	return x.DB.Close()
}

// Metadata returns all metadata pairs
func (x *Index) Metadata() (map[string]string, error) {
	var rows []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := x.DB.Select(&rows, `SELECT key, value FROM metadata ORDER BY key`); err != nil {
		return nil, errors.E(err, "failed to read metadata")
	}
	meta := make(map[string]string, len(rows))
	for _, r := range rows {
		meta[r.Key] = r.Value
	}
	return meta, nil
}

// Chromosomes returns the axis layout in rank order
func (x *Index) Chromosomes() ([]ChromosomeRow, error) {
	var rows []ChromosomeRow
	if err := x.DB.Select(&rows, `SELECT * FROM chromosomes ORDER BY rank`); err != nil {
		return nil, errors.E(err, "failed to read chromosomes")
	}
	return rows, nil
}

// Levels returns per-level counts in level order
func (x *Index) Levels() ([]LevelRow, error) {
	var rows []LevelRow
	if err := x.DB.Select(&rows, `SELECT * FROM levels ORDER BY level`); err != nil {
		return nil, errors.E(err, "failed to read levels")
	}
	return rows, nil
}

// Resolve maps a region to a closed interval of the absolute axis
func (x *Index) Resolve(r Region) (start, end int64, err error) {
	var c ChromosomeRow
	if err := x.DB.Get(&c, `SELECT * FROM chromosomes WHERE name = ?`, r.Chrom); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, errors.E(errors.NotExist, fmt.Sprintf("chromosome %s not in tile index", r.Chrom))
		}
		return 0, 0, errors.E(err, "failed to look up chromosome", r.Chrom)
	}
	if r.Whole() {
		return c.Offset + 1, c.Offset + c.Length, nil
	}
	return c.Offset + int64(r.Start), c.Offset + int64(r.End), nil
}

// FindTiles returns the tiles of level that overlap r, in position order
func (x *Index) FindTiles(r Region, level int) ([]TileRow, error) {
	start, end, err := x.Resolve(r)
	if err != nil {
		return nil, err
	}
	var rows []TileRow
	err = x.DB.Select(&rows, `SELECT * FROM tiles
		WHERE level = ? AND tile_start <= ? AND tile_end > ?
		ORDER BY tile_start`, level, end, start)
	if err != nil {
		return nil, errors.E(err, "failed to query tiles")
	}
	return rows, nil
}

// FindEntries returns up to limit entries of level within r, in position
// then id order. A limit <= 0 returns all of them.
func (x *Index) FindEntries(r Region, level, limit int) ([]EntryRow, error) {
	start, end, err := x.Resolve(r)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1
	}
	var rows []EntryRow
	err = x.DB.Select(&rows, `SELECT * FROM entries
		WHERE level = ? AND abs_pos BETWEEN ? AND ?
		ORDER BY abs_pos, id LIMIT ?`, level, start, end, limit)
	if err != nil {
		return nil, errors.E(err, "failed to query entries")
	}
	return rows, nil
}

// Region is a chromosome interval with 1-based inclusive bounds. Start and
// End are 0 for a whole chromosome.
type Region struct {
	Chrom string
	Start uint64
	End   uint64
}

// Whole reports whether r covers its entire chromosome
func (r Region) Whole() bool {
	return r.Start == 0 && r.End == 0
}

func (r Region) String() string {
	if r.Whole() {
		return r.Chrom
	}
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// ParseRegion parses "chr1", "chr1:1000-2000" or "chr1:1,000-2,000"
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndexByte(s, ':')
	if i < 0 {
		if s == "" {
			return Region{}, errors.E(errors.Invalid, "empty region")
		}
		return Region{Chrom: s}, nil
	}

	region := Region{Chrom: s[:i]}
	if region.Chrom == "" {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("invalid region format: %s (expected chr:start-end)", s))
	}
	posParts := strings.Split(strings.ReplaceAll(s[i+1:], ",", ""), "-")
	if len(posParts) != 2 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("invalid region format: %s (expected chr:start-end)", s))
	}
	var err error
	if region.Start, err = strconv.ParseUint(posParts[0], 10, 63); err != nil || region.Start == 0 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("invalid start position in region %s", s))
	}
	if region.End, err = strconv.ParseUint(posParts[1], 10, 63); err != nil {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("invalid end position in region %s", s))
	}
	if region.End < region.Start {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("region %s ends before it starts", s))
	}
	return region, nil
}
