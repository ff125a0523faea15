package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/grailbio/base/log"
	"github.com/scttfrdmn/vcftiles/pkg/storage"
	"github.com/scttfrdmn/vcftiles/pkg/tileindex"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
	"github.com/scttfrdmn/vcftiles/pkg/vcftiles"
	"github.com/spf13/cobra"
)

var (
	convertCatalog catalogFlags
	outputPath     string
	coveragePath   string
	tileIndexPath  string
	maxPerTile     int
	directionStr   string
	tileSizeStr    string
	levels         int
	coverageWindow string
	workers        int
	showConfig     bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <input.vcf>",
	Short: "Build a zoom pyramid and/or coverage track from a VCF",
	Long: `Build a multi-resolution zoom pyramid and/or a windowed coverage track
from a VCF file.

The input may be plain, gzip/BGZF (.gz, .bgz) or zstd (.zst) compressed,
local or on S3 (s3://bucket/key), or "-" for stdin. Outputs are compressed
by extension and appear only when complete.

Pyramid:
  Level 0 contains every variant. Level z uses tiles of tile-size * 2^z
  bases on the concatenated genome axis; each non-empty tile keeps at most
  --max-per-tile variants ranked by --importance in --direction (ties go to
  the earlier variant). With --category, the cap applies per category, and
  values outside --categories share an "unclassified" bucket.
  Variants on chrM are never emitted.

Coverage:
  Tab-separated chrom, start, end, count lines over fixed windows of each
  chromosome, starting at 0.

Examples:
  # Pyramid ranked by CADD score, highest kept
  vcftiles convert in.vcf.gz -o pyramid.vcf.gz -s CADD_PHRED --direction descending

  # Stratified by consequence severity, 10 per category per tile
  vcftiles convert in.vcf.gz -o pyramid.vcf.gz -s SCORE -c IMPACT -m 10 --direction descending

  # Coverage track only
  vcftiles convert in.vcf.gz -b coverage.tsv --coverage-window 10K

  # Read from S3, write a tile index for region queries
  vcftiles convert s3://bucket/in.vcf.gz -o pyramid.vcf.gz -s SCORE \
    --direction descending --tile-index tiles.db`,
	Args: cobra.ExactArgs(1),
}

func init() {
	// RunE is assigned here because convertConfig refers to convertCmd,
	// which would otherwise form an initialization cycle.
	convertCmd.RunE = func(cmd *cobra.Command, args []string) error {
		config, err := convertConfig()
		if err != nil {
			return err
		}
		if showConfig {
			config.ShowConfig(os.Stdout)
			return nil
		}
		return runConvert(cmd.Context(), args[0], config)
	}
	addCatalogFlags(convertCmd, &convertCatalog)
	convertCmd.Flags().StringVarP(&outputPath, "output", "o", "",
		"Pyramid VCF output (omit to skip pyramid construction)")
	convertCmd.Flags().StringVarP(&coveragePath, "coverage", "b", "",
		"Coverage track output (omit to skip)")
	convertCmd.Flags().StringVar(&tileIndexPath, "tile-index", "",
		"SQLite tile index output (requires --output)")
	convertCmd.Flags().IntVarP(&maxPerTile, "max-per-tile", "m", vcftiles.DefaultMaxPerTile,
		"Variants kept per tile, or per category per tile with --category")
	convertCmd.Flags().StringVar(&directionStr, "direction", "",
		"Ranking direction: descending (keep highest) or ascending (keep lowest); required with --output")
	convertCmd.Flags().StringVar(&tileSizeStr, "tile-size", "1K",
		"Base tile size in bases (e.g. 1024, 1K, 4K)")
	convertCmd.Flags().IntVar(&levels, "levels", vcftiles.DefaultLevels,
		"Number of zoom levels, level 0 included")
	convertCmd.Flags().StringVar(&coverageWindow, "coverage-window", "",
		"Coverage window size (default: the base tile size)")
	convertCmd.Flags().IntVar(&workers, "workers", 0,
		"Number of levels built in parallel (0 = auto-detect CPU count)")
	convertCmd.Flags().BoolVar(&showConfig, "show-config", false,
		"Show effective configuration and exit")
}

// convertConfig checks the flags and builds the pyramid configuration
func convertConfig() (*vcftiles.Config, error) {
	if outputPath == "" && coveragePath == "" && !showConfig {
		return nil, fmt.Errorf("nothing to do: give --output and/or --coverage")
	}
	if tileIndexPath != "" && outputPath == "" {
		return nil, fmt.Errorf("--tile-index requires --output")
	}
	if convertCatalog.categoryKey == "" && cmdFlagChanged(convertCmd, "categories") {
		return nil, fmt.Errorf("--categories requires --category")
	}

	config := vcftiles.NewConfig()
	var err error
	if config.BaseTileSize, err = vcftiles.ParseTileSize(tileSizeStr); err != nil {
		return nil, fmt.Errorf("invalid tile size: %w", err)
	}
	if coverageWindow != "" {
		if config.CoverageWindow, err = vcftiles.ParseTileSize(coverageWindow); err != nil {
			return nil, fmt.Errorf("invalid coverage window: %w", err)
		}
	}
	config.Levels = levels
	config.MaxPerTile = maxPerTile
	config.Categories = convertCatalog.categoryList()
	if workers > 0 {
		config.Workers = workers
	}
	if directionStr != "" {
		if config.Direction, err = vcftiles.ParseDirection(directionStr); err != nil {
			return nil, err
		}
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	if outputPath != "" {
		if convertCatalog.importanceKey == "" {
			return nil, fmt.Errorf("--importance is required with --output")
		}
		if err := config.Policy().Validate(); err != nil {
			return nil, err
		}
	}
	return config, nil
}

func cmdFlagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// runConvert computes every requested output, writes each one to a pending
// file and publishes them only once all of them have been written
func runConvert(ctx context.Context, input string, config *vcftiles.Config) error {
	startTime := time.Now()
	header, cat, err := convertCatalog.loadCatalog(ctx, input)
	if err != nil {
		return err
	}
	logCatalog(cat)

	var windows []vcftiles.CoverageWindow
	if coveragePath != "" {
		if windows, err = vcftiles.AggregateCoverage(cat, config.CoverageWindowSize()); err != nil {
			return err
		}
	}

	var pyramid *vcftiles.Pyramid
	if outputPath != "" {
		builder, err := vcftiles.NewBuilder(cat, config)
		if err != nil {
			return err
		}
		if pyramid, err = builder.Build(ctx); err != nil {
			return err
		}
	}

	var pending outputSet
	if err := writeOutputs(ctx, &pending, input, config, header, cat, windows, pyramid); err != nil {
		pending.abort()
		return err
	}
	if err := pending.publish(); err != nil {
		return err
	}

	log.Printf("✓ Conversion complete in %s", time.Since(startTime).Round(time.Millisecond))
	return nil
}

func writeOutputs(ctx context.Context, pending *outputSet, input string, config *vcftiles.Config,
	header *vcf.Header, cat *vcftiles.Catalog, windows []vcftiles.CoverageWindow, pyramid *vcftiles.Pyramid) error {
	if coveragePath != "" {
		if err := writeCoverage(ctx, pending, coveragePath, windows); err != nil {
			return err
		}
	}
	if pyramid != nil {
		if err := writePyramid(ctx, pending, outputPath, header, cat, pyramid); err != nil {
			return err
		}
	}
	if tileIndexPath != "" {
		if err := writeTileIndex(ctx, pending, tileIndexPath, input, config, cat, pyramid); err != nil {
			return err
		}
	}
	return nil
}

// pendingOutput is a fully written output awaiting publication
type pendingOutput struct {
	path    string
	summary string
	close   func() error
	abort   func() error
}

// outputSet publishes all outputs of a run, or none of them
type outputSet struct {
	outputs []pendingOutput
}

func (s *outputSet) add(o pendingOutput) {
	s.outputs = append(s.outputs, o)
}

// abort discards every output not yet published
func (s *outputSet) abort() {
	for _, o := range s.outputs {
		if err := o.abort(); err != nil {
			log.Error.Printf("failed to discard %s: %v", o.path, err)
		}
	}
	s.outputs = nil
}

// publish moves every output into place. If one fails, the remaining ones
// are discarded.
func (s *outputSet) publish() error {
	for i, o := range s.outputs {
		if err := o.close(); err != nil {
			rest := outputSet{outputs: s.outputs[i+1:]}
			rest.abort()
			s.outputs = nil
			return err
		}
		log.Printf("%s", o.summary)
	}
	s.outputs = nil
	return nil
}

func logCatalog(cat *vcftiles.Catalog) {
	s := cat.Summary()
	log.Printf("catalog: %d variants on %d chromosomes (%d excluded from output)",
		s.Variants, len(s.Chromosomes), s.Excluded)
	if log.At(log.Debug) {
		for _, c := range s.Chromosomes {
			log.Debug.Printf("  %s: %d variants, max position %d", c.Name, c.Variants, c.MaxPosition)
		}
	}
}

func writeCoverage(ctx context.Context, pending *outputSet, path string, windows []vcftiles.CoverageWindow) error {
	out, err := storage.CreateWriter(ctx, path)
	if err != nil {
		return err
	}
	if err := vcftiles.WriteCoverage(out, windows); err != nil {
		out.Abort()
		return err
	}
	pending.add(pendingOutput{
		path:    path,
		summary: fmt.Sprintf("wrote %d coverage windows to %s", len(windows), path),
		close:   out.Close,
		abort:   out.Abort,
	})
	return nil
}

func writePyramid(ctx context.Context, pending *outputSet, path string, header *vcf.Header, cat *vcftiles.Catalog, p *vcftiles.Pyramid) error {
	out, err := storage.CreateWriter(ctx, path)
	if err != nil {
		return err
	}
	w, err := vcf.NewWriter(out, header)
	if err != nil {
		out.Abort()
		return err
	}
	if err := vcftiles.WritePyramid(w, cat, p); err != nil {
		out.Abort()
		return err
	}
	pending.add(pendingOutput{
		path:    path,
		summary: fmt.Sprintf("wrote %d pyramid records (%d levels) to %s", p.NumEntries(), len(p.Levels), path),
		close:   out.Close,
		abort:   out.Abort,
	})
	return nil
}

func writeTileIndex(ctx context.Context, pending *outputSet, path, input string, config *vcftiles.Config, cat *vcftiles.Catalog, p *vcftiles.Pyramid) error {
	w, err := tileindex.Create(path)
	if err != nil {
		return err
	}
	meta := map[string]string{
		tileindex.KeyVersion:       version,
		tileindex.KeyCreated:       time.Now().UTC().Format(time.RFC3339),
		tileindex.KeyInput:         input,
		tileindex.KeyAssembly:      cat.Mapper().Assembly(),
		tileindex.KeyTileSize:      strconv.FormatUint(config.BaseTileSize, 10),
		tileindex.KeyLevels:        strconv.Itoa(config.Levels),
		tileindex.KeyMaxPerTile:    strconv.Itoa(config.MaxPerTile),
		tileindex.KeyDirection:     config.Direction.String(),
		tileindex.KeyImportanceKey: convertCatalog.importanceKey,
		tileindex.KeyCategoryKey:   convertCatalog.categoryKey,
		tileindex.KeyCategories:    strings.Join(config.Categories, ","),
		tileindex.KeyVariants:      strconv.Itoa(cat.Len()),
	}
	if err := w.WriteMetadata(meta); err != nil {
		w.Abort()
		return err
	}
	if err := w.WriteChromosomes(cat.Mapper()); err != nil {
		w.Abort()
		return err
	}
	if err := w.WritePyramid(cat, p); err != nil {
		w.Abort()
		return err
	}
	pending.add(pendingOutput{
		path:    path,
		summary: fmt.Sprintf("wrote tile index to %s", path),
		close:   func() error { return w.Close(ctx) },
		abort:   w.Abort,
	})
	return nil
}
