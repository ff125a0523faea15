package vcftiles

import (
	"context"
	"time"

	"github.com/grailbio/base/log"
)

// ctxCheckInterval is how many tiles a level scans between cancellation checks
const ctxCheckInterval = 1024

// Builder materializes the zoom pyramid of a catalog
type Builder struct {
	catalog *Catalog
	config  *Config
	policy  SelectionPolicy
}

// NewBuilder validates cfg and its selection policy
func NewBuilder(cat *Catalog, cfg *Config) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	policy := cfg.Policy()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Builder{catalog: cat, config: cfg, policy: policy}, nil
}

// Build computes every level on the worker pool. Levels read only the
// catalog, and results are merged by level, so the output is the same for
// any worker count.
func (b *Builder) Build(ctx context.Context) (*Pyramid, error) {
	startTime := time.Now()

	levels := make([]uint32, b.config.Levels)
	for i := range levels {
		levels[i] = uint32(i)
	}
	pool := newLevelPool(b.config.Workers, b.buildLevel)
	results, err := pool.run(ctx, levels)
	if err != nil {
		return nil, err
	}

	p := &Pyramid{Levels: results}
	log.Printf("built %d zoom levels: %d entries from %d variants in %s",
		len(results), p.NumEntries(), b.catalog.Len(), formatDuration(time.Since(startTime)))
	return p, nil
}

// BuildLevel computes a single level
func (b *Builder) BuildLevel(level uint32) (LevelResult, error) {
	return b.buildLevel(context.Background(), level)
}

func (b *Builder) buildLevel(ctx context.Context, level uint32) (LevelResult, error) {
	if level == 0 {
		return b.identityLevel(), nil
	}

	tileSize := b.config.TileSize(level)
	result := LevelResult{Level: level, TileSize: tileSize}
	cat := b.catalog
	sorted := cat.SortedByAbsolute()
	maxAbs := cat.MaxAbsolute()
	variants := cat.Variants()

	var (
		start   uint64
		dropped int
		tiles   int
	)
	for i := 0; i < len(sorted) && start <= maxAbs; {
		tiles++
		if tiles%ctxCheckInterval == 0 && ctx.Err() != nil {
			return LevelResult{}, ctx.Err()
		}

		// Skip empty tiles: tiles are aligned to multiples of tileSize
		abs := variants[sorted[i]].AbsolutePosition
		if abs-start >= tileSize {
			start = abs - abs%tileSize
		}
		end := start + tileSize

		j := i
		for j < len(sorted) && variants[sorted[j]].AbsolutePosition < end {
			j++
		}
		candidates := sorted[i:j]

		kept, report, err := b.policy.Select(cat, candidates)
		if err != nil {
			return LevelResult{}, err
		}
		summary := TileSummary{
			Tile:       Tile{Level: level, Start: start, End: end},
			Candidates: len(candidates),
		}
		for _, id := range kept {
			if !cat.Eligible(variants[id].Chromosome) {
				continue
			}
			result.Entries = append(result.Entries, Entry{Level: level, ID: id})
			summary.Kept++
		}
		result.Tiles = append(result.Tiles, summary)

		if len(report.Drops) > 0 {
			dropped += report.Candidates - report.Kept
			if log.At(log.Debug) {
				for _, d := range report.Drops {
					log.Debug.Printf("tile %s: bucket %q dropped %d of %d", summary.Tile, d.Bucket, d.Dropped, d.Candidates)
				}
			}
		}

		i = j
		start = end
	}

	if log.At(log.Debug) {
		log.Debug.Printf("level %d: tile size %s, %d non-empty tiles, %d entries, %d dropped",
			level, FormatTileSize(tileSize), len(result.Tiles), len(result.Entries), dropped)
	}
	return result, nil
}

// identityLevel emits every eligible variant in id order
func (b *Builder) identityLevel() LevelResult {
	result := LevelResult{Level: 0, TileSize: b.config.TileSize(0)}
	for _, v := range b.catalog.Variants() {
		if b.catalog.Eligible(v.Chromosome) {
			result.Entries = append(result.Entries, Entry{Level: 0, ID: v.ID})
		}
	}
	return result
}
