// Package tileindex stores a summary of a zoom pyramid in SQLite: the
// run metadata, the chromosome layout of the absolute axis, per-level and
// per-tile counts, and every emitted entry. It lets a pyramid be inspected
// by region without re-reading the VCF.
package tileindex

const schema = `
CREATE TABLE metadata (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE chromosomes (
	name       TEXT PRIMARY KEY,
	rank       INTEGER NOT NULL,
	abs_offset INTEGER NOT NULL,
	length     INTEGER NOT NULL
);
CREATE TABLE levels (
	level     INTEGER PRIMARY KEY,
	tile_size INTEGER NOT NULL,
	tiles     INTEGER NOT NULL,
	entries   INTEGER NOT NULL
);
CREATE TABLE tiles (
	level      INTEGER NOT NULL,
	tile_start INTEGER NOT NULL,
	tile_end   INTEGER NOT NULL,
	candidates INTEGER NOT NULL,
	kept       INTEGER NOT NULL,
	PRIMARY KEY (level, tile_start)
);
CREATE TABLE entries (
	level      INTEGER NOT NULL,
	id         INTEGER NOT NULL,
	chrom      TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	abs_pos    INTEGER NOT NULL,
	importance REAL NOT NULL,
	category   TEXT NOT NULL,
	PRIMARY KEY (level, id)
);
CREATE INDEX entries_by_position ON entries (level, abs_pos);
`

// Metadata keys written by the convert command
const (
	KeyVersion       = "version"
	KeyCreated       = "created"
	KeyInput         = "input"
	KeyAssembly      = "assembly"
	KeyTileSize      = "tile_size"
	KeyLevels        = "levels"
	KeyMaxPerTile    = "max_per_tile"
	KeyDirection     = "direction"
	KeyImportanceKey = "importance_key"
	KeyCategoryKey   = "category_key"
	KeyCategories    = "categories"
	KeyVariants      = "variants"
)

// ChromosomeRow is one segment of the absolute axis
type ChromosomeRow struct {
	Name   string `db:"name"`
	Rank   int    `db:"rank"`
	Offset int64  `db:"abs_offset"`
	Length int64  `db:"length"`
}

// LevelRow summarizes one zoom level
type LevelRow struct {
	Level    int   `db:"level"`
	TileSize int64 `db:"tile_size"`
	Tiles    int   `db:"tiles"`
	Entries  int   `db:"entries"`
}

// TileRow is one non-empty tile of a level above 0
type TileRow struct {
	Level      int   `db:"level"`
	Start      int64 `db:"tile_start"`
	End        int64 `db:"tile_end"`
	Candidates int   `db:"candidates"`
	Kept       int   `db:"kept"`
}

// EntryRow is one emitted (level, variant) pair
type EntryRow struct {
	Level      int     `db:"level"`
	ID         int64   `db:"id"`
	Chrom      string  `db:"chrom"`
	Pos        int64   `db:"pos"`
	AbsPos     int64   `db:"abs_pos"`
	Importance float64 `db:"importance"`
	Category   string  `db:"category"`
}
