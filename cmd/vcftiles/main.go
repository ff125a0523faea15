package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	verbose bool
	quiet   bool
)

var rootCmd = &cobra.Command{
	Use:   "vcftiles",
	Short: "vcftiles - zoom pyramids of genomic variants",
	Long: `vcftiles converts a VCF into a multi-resolution "zoom pyramid" for
tile-based genome browsers.

Level 0 holds every variant. Each higher level doubles the tile size and
keeps at most a fixed number of the most (or least) important variants per
tile, optionally per consequence category. Every emitted record is tagged
with its level by renaming its chromosome to "{chrom}_{level}".`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose && quiet {
			return fmt.Errorf("--verbose and --quiet are mutually exclusive")
		}
		setupLogging(verbose, quiet)
		return nil
	},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Show debug output (per-level and per-tile detail)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"Only show errors and warnings")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("vcftiles version %s\n", version)
		fmt.Println("Zoom pyramids of genomic variants for tile-based browsers")
	},
}
