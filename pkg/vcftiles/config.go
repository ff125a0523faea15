package vcftiles

import (
	"fmt"
	"io"
	"math"
	"math/bits"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
)

const (
	// DefaultTileSize is the HiGlass tile size for 1D tracks
	DefaultTileSize = 1024
	// DefaultLevels is the number of zoom levels, level 0 included
	DefaultLevels = 23
	// DefaultMaxPerTile is the per-tile (or per-category) capacity
	DefaultMaxPerTile = 50

	// maxLevels keeps the top tile size well inside uint64
	maxLevels = 40
	// maxWorkers limits concurrently materialized levels
	maxWorkers = 32
)

// DefaultCategories are the consequence severity classes, in bucket order
var DefaultCategories = []string{"HIGH", "LOW", "MODERATE", "MODIFIER"}

// Config holds pyramid and coverage settings
type Config struct {
	// Tiling
	BaseTileSize uint64 // tile size at level 1 is 2*BaseTileSize
	Levels       int    // zoom levels 0..Levels-1

	// Selection
	MaxPerTile int       // capacity per tile, or per category per tile
	Direction  Direction // explicit, no default
	Categories []string  // non-empty enables stratified selection

	// Coverage
	CoverageWindow uint64 // 0 means BaseTileSize

	// Resources
	Workers int // concurrent levels (default: runtime.NumCPU())
}

// NewConfig returns a Config with defaults. Direction is left unset.
func NewConfig() *Config {
	return &Config{
		BaseTileSize: DefaultTileSize,
		Levels:       DefaultLevels,
		MaxPerTile:   DefaultMaxPerTile,
		Workers:      runtime.NumCPU(),
	}
}

// TileSize returns the tile size at level
func (c *Config) TileSize(level uint32) uint64 {
	return c.BaseTileSize << level
}

// CoverageWindowSize returns the effective coverage window
func (c *Config) CoverageWindowSize() uint64 {
	if c.CoverageWindow == 0 {
		return c.BaseTileSize
	}
	return c.CoverageWindow
}

// Policy returns the selection policy applied to every level above 0
func (c *Config) Policy() SelectionPolicy {
	return SelectionPolicy{
		Capacity:   c.MaxPerTile,
		Direction:  c.Direction,
		Categories: c.Categories,
	}
}

// Validate checks the tiling and resource settings. The selection policy is
// checked separately by NewBuilder, so coverage-only runs need no direction.
func (c *Config) Validate() error {
	if c.BaseTileSize == 0 {
		return errors.E(errors.Invalid, "base tile size must be > 0")
	}
	if c.Levels < 1 || c.Levels > maxLevels {
		return errors.E(errors.Invalid, fmt.Sprintf("level count must be between 1 and %d, got %d", maxLevels, c.Levels))
	}
	// Top tile plus the largest cursor must stay inside uint64
	if bits.Len64(c.BaseTileSize)+c.Levels > 62 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("tile size %d with %d levels overflows the coordinate axis", c.BaseTileSize, c.Levels))
	}
	if c.Workers < 1 {
		return errors.E(errors.Invalid, "workers must be >= 1")
	}
	if c.CoverageWindow > 0 && c.CoverageWindow > math.MaxUint64/2 {
		return errors.E(errors.Invalid, fmt.Sprintf("coverage window %d too large", c.CoverageWindow))
	}
	return nil
}

// ShowConfig prints the effective configuration
func (c *Config) ShowConfig(w io.Writer) {
	fmt.Fprintf(w, "System Information:\n")
	fmt.Fprintf(w, "  CPU cores: %d\n", runtime.NumCPU())
	fmt.Fprintf(w, "\n")

	fmt.Fprintf(w, "Configuration:\n")
	fmt.Fprintf(w, "  Base tile size: %s\n", FormatTileSize(c.BaseTileSize))
	fmt.Fprintf(w, "  Zoom levels: %d (top tile %s)\n", c.Levels, FormatTileSize(c.TileSize(uint32(c.Levels-1))))
	fmt.Fprintf(w, "  Direction: %s\n", c.Direction)
	if len(c.Categories) > 0 {
		fmt.Fprintf(w, "  Selection: stratified, %d per category per tile (%s)\n",
			c.MaxPerTile, strings.Join(c.Categories, ","))
	} else {
		fmt.Fprintf(w, "  Selection: flat, %d per tile\n", c.MaxPerTile)
	}
	fmt.Fprintf(w, "  Coverage window: %s\n", FormatTileSize(c.CoverageWindowSize()))
	fmt.Fprintf(w, "  Workers: %d\n", c.Workers)
	fmt.Fprintf(w, "\n")
}

// ParseTileSize parses a size such as "1024", "1K" or "2M" (binary units)
func ParseTileSize(s string) (uint64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, "B")

	var multiplier uint64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
		s = s[:len(s)-1]
	}

	value, err := strconv.ParseUint(s, 10, 64)
	if err != nil || value == 0 {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("invalid size: %q", s))
	}
	if value > math.MaxUint64/multiplier {
		return 0, errors.E(errors.Invalid, fmt.Sprintf("size too large: %q", s))
	}
	return value * multiplier, nil
}

// FormatTileSize formats a size with a binary suffix when it divides evenly
func FormatTileSize(n uint64) string {
	switch {
	case n >= 1<<30 && n%(1<<30) == 0:
		return fmt.Sprintf("%dG", n>>30)
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dM", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dK", n>>10)
	}
	return strconv.FormatUint(n, 10)
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
