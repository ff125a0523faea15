package tileindex

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/jmoiron/sqlx"
	"github.com/scttfrdmn/vcftiles/pkg/genome"
	"github.com/scttfrdmn/vcftiles/pkg/storage"
	"github.com/scttfrdmn/vcftiles/pkg/vcftiles"
)

// Writer builds a tile index in a temporary file. The index appears at its
// destination only when Close succeeds.
type Writer struct {
	db      *sqlx.DB
	tmpPath string
	dest    string
}

// Create starts a tile index for dest, which may be local or s3://
func Create(dest string) (*Writer, error) {
	dir := os.TempDir()
	if !storage.IsS3URI(dest) {
		dir = filepath.Dir(dest)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.E(err, "failed to create directory", dir)
		}
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".tmp-*")
	if err != nil {
		return nil, errors.E(err, "failed to create tile index", dest)
	}
	tmpPath := f.Name()
	f.Close()

	db, err := connect(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return nil, errors.E(err, "failed to open tile index", dest)
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)

	w := &Writer{db: db, tmpPath: tmpPath, dest: dest}
	// The file is discarded on any failure, so no journal is needed
	if _, err := db.Exec(`
	PRAGMA journal_mode = OFF;
	PRAGMA synchronous = OFF;
	PRAGMA auto_vacuum = NONE;
	`); err != nil {
		w.Abort()
		return nil, errors.E(err, "unable to set pragmas")
	}
	if _, err := db.Exec(schema); err != nil {
		w.Abort()
		return nil, errors.E(err, "failed to create tile index schema")
	}
	return w, nil
}

// WriteMetadata stores key/value pairs, in key order
func (w *Writer) WriteMetadata(meta map[string]string) error {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tx, err := w.db.Beginx()
	if err != nil {
		return errors.E(err, "failed to begin transaction")
	}
	defer tx.Rollback()
	for _, k := range keys {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES (?, ?)`, k, meta[k]); err != nil {
			return errors.E(err, "failed to write metadata", k)
		}
	}
	return tx.Commit()
}

// WriteChromosomes stores the layout of the absolute axis
func (w *Writer) WriteChromosomes(m *genome.Mapper) error {
	tx, err := w.db.Beginx()
	if err != nil {
		return errors.E(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareNamed(`INSERT INTO chromosomes (name, rank, abs_offset, length)
		VALUES (:name, :rank, :abs_offset, :length)`)
	if err != nil {
		return errors.E(err, "failed to prepare chromosome insert")
	}
	defer stmt.Close()
	for _, c := range m.Chromosomes() {
		off, _ := m.Offset(c.Name)
		rank, _ := m.Rank(c.Name)
		row := ChromosomeRow{Name: c.Name, Rank: rank, Offset: int64(off), Length: int64(c.Length)}
		if _, err := stmt.Exec(row); err != nil {
			return errors.E(err, "failed to write chromosome", c.Name)
		}
	}
	return tx.Commit()
}

// WritePyramid stores the level, tile and entry tables in one transaction
func (w *Writer) WritePyramid(cat *vcftiles.Catalog, p *vcftiles.Pyramid) error {
	tx, err := w.db.Beginx()
	if err != nil {
		return errors.E(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	levelStmt, err := tx.PrepareNamed(`INSERT INTO levels (level, tile_size, tiles, entries)
		VALUES (:level, :tile_size, :tiles, :entries)`)
	if err != nil {
		return errors.E(err, "failed to prepare level insert")
	}
	defer levelStmt.Close()
	tileStmt, err := tx.PrepareNamed(`INSERT INTO tiles (level, tile_start, tile_end, candidates, kept)
		VALUES (:level, :tile_start, :tile_end, :candidates, :kept)`)
	if err != nil {
		return errors.E(err, "failed to prepare tile insert")
	}
	defer tileStmt.Close()
	entryStmt, err := tx.PrepareNamed(`INSERT INTO entries (level, id, chrom, pos, abs_pos, importance, category)
		VALUES (:level, :id, :chrom, :pos, :abs_pos, :importance, :category)`)
	if err != nil {
		return errors.E(err, "failed to prepare entry insert")
	}
	defer entryStmt.Close()

	for _, l := range p.Levels {
		level := LevelRow{
			Level:    int(l.Level),
			TileSize: int64(l.TileSize),
			Tiles:    len(l.Tiles),
			Entries:  len(l.Entries),
		}
		if _, err := levelStmt.Exec(level); err != nil {
			return errors.E(err, "failed to write level", strconv.Itoa(level.Level))
		}
		for _, t := range l.Tiles {
			row := TileRow{
				Level:      int(t.Level),
				Start:      int64(t.Start),
				End:        int64(t.End),
				Candidates: t.Candidates,
				Kept:       t.Kept,
			}
			if _, err := tileStmt.Exec(row); err != nil {
				return errors.E(err, "failed to write tile", t.Tile.String())
			}
		}
		for _, e := range l.Entries {
			v, err := cat.ByID(e.ID)
			if err != nil {
				return err
			}
			row := EntryRow{
				Level:      int(e.Level),
				ID:         int64(v.ID),
				Chrom:      v.Chromosome,
				Pos:        int64(v.Position),
				AbsPos:     int64(v.AbsolutePosition),
				Importance: v.Importance,
				Category:   v.Category,
			}
			if _, err := entryStmt.Exec(row); err != nil {
				return errors.E(err, "failed to write entry")
			}
		}
		log.Debug.Printf("tile index: level %d, %d tiles, %d entries", l.Level, len(l.Tiles), len(l.Entries))
	}
	return tx.Commit()
}

// Close finalizes the index and moves it to its destination
func (w *Writer) Close(ctx context.Context) error {
	if err := w.db.Close(); err != nil {
		os.Remove(w.tmpPath)
		return errors.E(err, "failed to close tile index", w.dest)
	}
	defer os.Remove(w.tmpPath)

	if !storage.IsS3URI(w.dest) {
		if err := os.Chmod(w.tmpPath, 0644); err != nil {
			return errors.E(err, "failed to set permissions", w.dest)
		}
		if err := os.Rename(w.tmpPath, w.dest); err != nil {
			return errors.E(err, "failed to rename tile index", w.dest)
		}
		return nil
	}

	f, err := os.Open(w.tmpPath)
	if err != nil {
		return errors.E(err, "failed to reopen tile index", w.tmpPath)
	}
	defer f.Close()
	st, err := storage.ForPath(ctx, w.dest)
	if err != nil {
		return err
	}
	out, err := st.Create(ctx, w.dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Abort()
		return errors.E(err, "failed to upload tile index", w.dest)
	}
	return out.Close()
}

// Abort discards the index
func (w *Writer) Abort() error {
	w.db.Close()
	if err := os.Remove(w.tmpPath); err != nil && !os.IsNotExist(err) {
		return errors.E(err, "failed to remove", w.tmpPath)
	}
	return nil
}
