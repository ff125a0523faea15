package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/grailbio/base/log"
	"github.com/scttfrdmn/vcftiles/pkg/genome"
	"github.com/scttfrdmn/vcftiles/pkg/storage"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
	"github.com/scttfrdmn/vcftiles/pkg/vcftiles"
	"github.com/spf13/cobra"
)

// progressInterval is how many records are read between progress lines
const progressInterval = 1000000

// catalogFlags are the flags shared by commands that load a catalog
type catalogFlags struct {
	importanceKey string
	categoryKey   string
	categories    string
	assembly      string
	chromSizes    string
}

func addCatalogFlags(cmd *cobra.Command, f *catalogFlags) {
	cmd.Flags().StringVarP(&f.importanceKey, "importance", "s", "",
		"INFO key holding the importance score (\"NA\" reads as 0)")
	cmd.Flags().StringVarP(&f.categoryKey, "category", "c", "",
		"INFO key holding the category label; enables stratified selection")
	cmd.Flags().StringVar(&f.categories, "categories", strings.Join(vcftiles.DefaultCategories, ","),
		"Ordered category buckets used with --category")
	cmd.Flags().StringVar(&f.assembly, "assembly", "hg38",
		"Genome assembly for chromosome order and offsets: hg38, hg19")
	cmd.Flags().StringVar(&f.chromSizes, "chrom-sizes", "",
		"Tab-separated chrom/length file overriding --assembly")
}

// categoryList returns the configured buckets, or nil for flat selection
func (f *catalogFlags) categoryList() []string {
	if f.categoryKey == "" {
		return nil
	}
	var out []string
	for _, c := range strings.Split(f.categories, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func (f *catalogFlags) options() vcftiles.CatalogOptions {
	return vcftiles.CatalogOptions{
		ImportanceKey: f.importanceKey,
		CategoryKey:   f.categoryKey,
		Categories:    f.categoryList(),
	}
}

// mapper builds the coordinate mapper from --chrom-sizes or --assembly
func (f *catalogFlags) mapper(ctx context.Context) (*genome.Mapper, error) {
	if f.chromSizes == "" {
		a, err := genome.LookupAssembly(f.assembly)
		if err != nil {
			return nil, err
		}
		return genome.NewMapper(a)
	}
	rc, err := storage.OpenReader(ctx, f.chromSizes)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	a, err := genome.LoadChromSizes(f.chromSizes, rc)
	if err != nil {
		return nil, err
	}
	return genome.NewMapper(a)
}

// loadCatalog reads the whole input and builds its catalog
func (f *catalogFlags) loadCatalog(ctx context.Context, input string) (*vcf.Header, *vcftiles.Catalog, error) {
	m, err := f.mapper(ctx)
	if err != nil {
		return nil, nil, err
	}
	header, records, err := readVCF(ctx, input)
	if err != nil {
		return nil, nil, err
	}
	cat, err := vcftiles.LoadCatalog(records, m, f.options())
	if err != nil {
		return nil, nil, err
	}
	return header, cat, nil
}

// openInput opens path, or stdin for "-"
func openInput(ctx context.Context, path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return storage.OpenReader(ctx, path)
}

// readVCF reads every record of path, logging progress
func readVCF(ctx context.Context, path string) (*vcf.Header, []*vcf.Record, error) {
	startTime := time.Now()
	rc, err := openInput(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer rc.Close()

	r, err := vcf.NewReader(rc)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var records []*vcf.Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		records = append(records, rec)
		if len(records)%progressInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
			log.Printf("read %d records...", len(records))
		}
	}
	log.Printf("read %d records from %s in %s", len(records), path, time.Since(startTime).Round(time.Millisecond))
	return r.Header(), records, nil
}
