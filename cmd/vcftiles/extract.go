package main

import (
	"fmt"
	"io"
	"os"

	"github.com/grailbio/base/log"
	"github.com/scttfrdmn/vcftiles/pkg/storage"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
	"github.com/scttfrdmn/vcftiles/pkg/vcftiles"
	"github.com/spf13/cobra"
)

var (
	extractLevel int
	keepTag      bool
)

var extractCmd = &cobra.Command{
	Use:   "extract <pyramid.vcf> <output.vcf>",
	Short: "Extract one zoom level from a pyramid VCF",
	Long: `Write the records of a single zoom level as a plain VCF, with the
original chromosome names restored. Use "-" as output for stdout.

Examples:
  vcftiles extract pyramid.vcf.gz level8.vcf --level 8
  vcftiles extract s3://bucket/pyramid.vcf.gz - -z 0 | head`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if extractLevel < 0 {
			return fmt.Errorf("--level is required")
		}
		in, err := openInput(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer in.Close()

		r, err := vcf.NewReader(in)
		if err != nil {
			return fmt.Errorf("failed to read pyramid header: %w", err)
		}

		if args[1] == "-" {
			w, err := vcf.NewWriter(os.Stdout, r.Header())
			if err != nil {
				return err
			}
			_, err = vcftiles.ExtractLevel(r, w, uint32(extractLevel), keepTag)
			return err
		}

		out, err := storage.CreateWriter(cmd.Context(), args[1])
		if err != nil {
			return err
		}
		n, err := extractTo(out, r)
		if err != nil {
			out.Abort()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
		log.Printf("wrote %d level %d records to %s", n, extractLevel, args[1])
		return nil
	},
}

func extractTo(out io.Writer, r *vcf.Reader) (int, error) {
	w, err := vcf.NewWriter(out, r.Header())
	if err != nil {
		return 0, err
	}
	return vcftiles.ExtractLevel(r, w, uint32(extractLevel), keepTag)
}

func init() {
	extractCmd.Flags().IntVarP(&extractLevel, "level", "z", -1,
		"Zoom level to extract")
	extractCmd.Flags().BoolVar(&keepTag, "keep-tag", false,
		"Keep the zoom-tagged chromosome names (chr1_8)")
}
