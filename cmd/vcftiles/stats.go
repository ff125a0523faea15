package main

import (
	"fmt"
	"sort"

	"github.com/scttfrdmn/vcftiles/pkg/vcftiles"
	"github.com/spf13/cobra"
)

var (
	statsCatalog    catalogFlags
	statsMaxPerTile int
	statsTileSize   string
	statsLevels     int
)

var statsCmd = &cobra.Command{
	Use:   "stats <input.vcf>",
	Short: "Show catalog statistics and per-level pyramid sizes",
	Long: `Load a VCF the way convert does and report what a pyramid would contain,
without writing anything.

Per-level counts do not depend on the ranking direction, so --direction is
not needed here.

Example:
  vcftiles stats in.vcf.gz -s CADD_PHRED -c IMPACT -m 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := vcftiles.NewConfig()
		var err error
		if config.BaseTileSize, err = vcftiles.ParseTileSize(statsTileSize); err != nil {
			return fmt.Errorf("invalid tile size: %w", err)
		}
		config.Levels = statsLevels
		config.MaxPerTile = statsMaxPerTile
		config.Categories = statsCatalog.categoryList()
		config.Direction = vcftiles.Descending

		_, cat, err := statsCatalog.loadCatalog(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		builder, err := vcftiles.NewBuilder(cat, config)
		if err != nil {
			return err
		}
		pyramid, err := builder.Build(cmd.Context())
		if err != nil {
			return err
		}

		s := cat.Summary()
		fmt.Println("===========================================")
		fmt.Println("Variant Catalog Statistics")
		fmt.Println("===========================================")
		fmt.Println()
		fmt.Printf("Input: %s\n", args[0])
		fmt.Printf("Assembly: %s\n", cat.Mapper().Assembly())
		fmt.Println()

		fmt.Println("Variants:")
		fmt.Printf("  Total: %d\n", s.Variants)
		fmt.Printf("  Excluded from output: %d\n", s.Excluded)
		if statsCatalog.importanceKey != "" {
			fmt.Printf("  Importance range (%s): %g to %g\n", statsCatalog.importanceKey, s.ImportanceMin, s.ImportanceMax)
		}
		if len(s.Unknown) > 0 {
			fmt.Printf("  Chromosomes not in assembly: %v\n", s.Unknown)
		}
		if len(s.Resized) > 0 {
			fmt.Printf("  Chromosomes extended past assembly length: %v\n", s.Resized)
		}
		fmt.Println()

		if len(s.CategoryCounts) > 0 {
			fmt.Printf("Categories (%s):\n", statsCatalog.categoryKey)
			names := make([]string, 0, len(s.CategoryCounts))
			for name := range s.CategoryCounts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				note := ""
				if _, ok := s.Unrecognized[name]; ok {
					note = " (" + vcftiles.Unclassified + ")"
				}
				fmt.Printf("  %s: %d%s\n", name, s.CategoryCounts[name], note)
			}
			fmt.Println()
		}

		fmt.Println("Chromosomes:")
		for _, c := range s.Chromosomes {
			note := ""
			if !c.Eligible {
				note = " (excluded)"
			}
			fmt.Printf("  %s: %d variants, max position %d%s\n", c.Name, c.Variants, c.MaxPosition, note)
		}
		fmt.Println()

		fmt.Println("Pyramid:")
		fmt.Printf("  %5s %10s %10s %12s %10s\n", "Level", "Tile size", "Tiles", "Entries", "Dropped")
		for _, l := range pyramid.Levels {
			dropped := 0
			for _, t := range l.Tiles {
				dropped += t.Candidates - t.Kept
			}
			tiles := fmt.Sprint(len(l.Tiles))
			if l.Level == 0 {
				tiles = "-"
			}
			fmt.Printf("  %5d %10s %10s %12d %10d\n",
				l.Level, vcftiles.FormatTileSize(l.TileSize), tiles, len(l.Entries), dropped)
		}
		fmt.Printf("  Total entries: %d\n", pyramid.NumEntries())
		return nil
	},
}

func init() {
	addCatalogFlags(statsCmd, &statsCatalog)
	statsCmd.Flags().IntVarP(&statsMaxPerTile, "max-per-tile", "m", vcftiles.DefaultMaxPerTile,
		"Variants kept per tile, or per category per tile with --category")
	statsCmd.Flags().StringVar(&statsTileSize, "tile-size", "1K",
		"Base tile size in bases (e.g. 1024, 1K, 4K)")
	statsCmd.Flags().IntVar(&statsLevels, "levels", vcftiles.DefaultLevels,
		"Number of zoom levels, level 0 included")
}
