package main

import (
	"fmt"

	"github.com/scttfrdmn/vcftiles/pkg/tileindex"
	"github.com/spf13/cobra"
)

var (
	queryLevel int
	countOnly  bool
	showRows   int
)

var queryCmd = &cobra.Command{
	Use:   "query <tiles.db> <region>",
	Short: "Query a tile index by region",
	Long: `Show the tiles and variants a pyramid holds in a genomic region, using
the SQLite tile index written by convert --tile-index.

The region format is chr:start-end (1-based, inclusive) or a whole
chromosome (e.g. chr17). Without --level, one summary line is printed per
zoom level.

Examples:
  vcftiles query tiles.db chr17:41196312-41277500
  vcftiles query tiles.db chr17:41196312-41277500 --level 8
  vcftiles query tiles.db chr1 --level 12 --show 0`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		// Parse region
		region, err := tileindex.ParseRegion(args[1])
		if err != nil {
			return fmt.Errorf("invalid region: %w", err)
		}

		idx, err := tileindex.Open(args[0])
		if err != nil {
			return err
		}
		defer idx.Close()

		meta, err := idx.Metadata()
		if err != nil {
			return err
		}
		levels, err := idx.Levels()
		if err != nil {
			return err
		}
		fmt.Printf("Index: %s (%s, %s ranking by %s)\n", args[0],
			meta[tileindex.KeyAssembly], meta[tileindex.KeyDirection], meta[tileindex.KeyImportanceKey])
		fmt.Printf("Query: %s\n", region)

		if queryLevel < 0 {
			fmt.Println()
			fmt.Printf("%5s %10s %8s %8s\n", "Level", "Tile size", "Tiles", "Entries")
			for _, l := range levels {
				tiles, err := idx.FindTiles(region, l.Level)
				if err != nil {
					return err
				}
				entries, err := idx.FindEntries(region, l.Level, 0)
				if err != nil {
					return err
				}
				fmt.Printf("%5d %10d %8d %8d\n", l.Level, l.TileSize, len(tiles), len(entries))
			}
			return nil
		}
		if queryLevel >= len(levels) {
			return fmt.Errorf("level %d out of range, index has %d levels", queryLevel, len(levels))
		}

		tiles, err := idx.FindTiles(region, queryLevel)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		entries, err := idx.FindEntries(region, queryLevel, 0)
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		fmt.Printf("Found %d variants in %d tiles at level %d\n", len(entries), len(tiles), queryLevel)

		if countOnly {
			return nil
		}

		for i, t := range tiles {
			if showRows > 0 && i == showRows {
				fmt.Printf("  ... %d more tiles\n", len(tiles)-i)
				break
			}
			fmt.Printf("  tile [%d, %d): %d candidates, %d kept\n", t.Start, t.End, t.Candidates, t.Kept)
		}

		numToShow := showRows
		if numToShow == 0 || numToShow > len(entries) {
			numToShow = len(entries)
		}
		if numToShow > 0 {
			fmt.Println()
			fmt.Printf("%-10s %-12s %12s %12s %s\n", "ID", "Chrom", "Position", "Importance", "Category")
			fmt.Println("------------------------------------------------------------")
			for _, e := range entries[:numToShow] {
				fmt.Printf("%-10d %-12s %12d %12g %s\n", e.ID, e.Chrom, e.Pos, e.Importance, e.Category)
			}
		}
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVarP(&queryLevel, "level", "z", -1,
		"Zoom level to list (default: summarize every level)")
	queryCmd.Flags().BoolVar(&countOnly, "count", false,
		"Only show counts, don't list variants")
	queryCmd.Flags().IntVar(&showRows, "show", 10,
		"Number of variants to display (0 for all)")
}
