package vcftiles

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTileSize(t *testing.T) {
	tests := []struct {
		in   string
		want uint64
		ok   bool
	}{
		{"1024", 1024, true},
		{"1K", 1024, true},
		{"1kb", 1024, true},
		{" 2M ", 2 << 20, true},
		{"1G", 1 << 30, true},
		{"0", 0, false},
		{"", 0, false},
		{"-1", 0, false},
		{"1.5K", 0, false},
		{"99999999999999999999G", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseTileSize(tt.in)
		if !tt.ok {
			assert.True(t, IsParseError(err), tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestFormatTileSize(t *testing.T) {
	assert.Equal(t, "1K", FormatTileSize(1024))
	assert.Equal(t, "3M", FormatTileSize(3<<20))
	assert.Equal(t, "1000", FormatTileSize(1000))
	assert.Equal(t, "4G", FormatTileSize(1024<<22))
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection("Descending")
	require.NoError(t, err)
	assert.Equal(t, Descending, d)
	d, err = ParseDirection("asc")
	require.NoError(t, err)
	assert.Equal(t, Ascending, d)

	_, err = ParseDirection("")
	assert.True(t, IsParseError(err))
}

func TestConfigValidate(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, uint64(1024<<22), cfg.TileSize(DefaultLevels-1))
	assert.Equal(t, uint64(DefaultTileSize), cfg.CoverageWindowSize())
	// Direction is only needed by the builder
	assert.True(t, IsParseError(cfg.Policy().Validate()))

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero tile size", func(c *Config) { c.BaseTileSize = 0 }},
		{"no levels", func(c *Config) { c.Levels = 0 }},
		{"too many levels", func(c *Config) { c.Levels = maxLevels + 1 }},
		{"overflow", func(c *Config) { c.BaseTileSize = 1 << 40; c.Levels = 30 }},
		{"no workers", func(c *Config) { c.Workers = 0 }},
	}
	for _, tt := range tests {
		cfg := NewConfig()
		tt.modify(cfg)
		assert.True(t, IsParseError(cfg.Validate()), tt.name)
	}
}

func TestShowConfig(t *testing.T) {
	cfg := NewConfig()
	cfg.Direction = Ascending
	cfg.Categories = DefaultCategories
	var buf bytes.Buffer
	cfg.ShowConfig(&buf)
	assert.Contains(t, buf.String(), "Direction: ascending")
	assert.Contains(t, buf.String(), "stratified, 50 per category per tile (HIGH,LOW,MODERATE,MODIFIER)")
	assert.Contains(t, buf.String(), "top tile 4G")
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "250ms", formatDuration(250*time.Millisecond))
	assert.Equal(t, "1m 5s", formatDuration(65*time.Second))
	assert.Equal(t, "2h 0m 1s", formatDuration(2*time.Hour+time.Second))
}
