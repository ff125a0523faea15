package vcftiles

import (
	"io"
	"sort"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/base/tsv"
)

// AggregateCoverage counts variants in fixed windows of each eligible
// chromosome's local axis. Windows start at 0 and continue while the window
// start does not exceed the chromosome's largest position; empty windows are
// included. Chromosomes are counted in parallel and returned in
// Chromosomes() order.
func AggregateCoverage(cat *Catalog, windowSize uint64) ([]CoverageWindow, error) {
	if windowSize == 0 {
		return nil, errors.E(errors.Invalid, "coverage window must be > 0")
	}
	chroms := cat.Chromosomes()
	index := make(map[string]int, len(chroms))
	for i, c := range chroms {
		index[c] = i
	}
	positions := make([][]uint64, len(chroms))
	for _, v := range cat.Variants() {
		if i, ok := index[v.Chromosome]; ok {
			positions[i] = append(positions[i], v.Position)
		}
	}

	perChrom := make([][]CoverageWindow, len(chroms))
	err := traverse.Each(len(chroms), func(i int) error {
		windows, err := chromosomeCoverage(chroms[i], positions[i], windowSize)
		perChrom[i] = windows
		return err
	})
	if err != nil {
		return nil, err
	}

	var out []CoverageWindow
	for _, w := range perChrom {
		out = append(out, w...)
	}
	log.Printf("coverage: %d windows of %s over %d chromosomes", len(out), FormatTileSize(windowSize), len(chroms))
	return out, nil
}

func chromosomeCoverage(chrom string, positions []uint64, windowSize uint64) ([]CoverageWindow, error) {
	if len(positions) == 0 {
		return nil, invariantError("chromosome %s has no indexed variants", chrom)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	maxPos := positions[len(positions)-1]

	windows := make([]CoverageWindow, 0, maxPos/windowSize+1)
	i := 0
	for start := uint64(0); start <= maxPos; start += windowSize {
		end := start + windowSize
		n := 0
		for i < len(positions) && positions[i] < end {
			i++
			n++
		}
		windows = append(windows, CoverageWindow{Chrom: chrom, Start: start, End: end, Count: n})
	}
	return windows, nil
}

// WriteCoverage writes windows as headerless "chrom start end count" lines
func WriteCoverage(w io.Writer, windows []CoverageWindow) error {
	tw := tsv.NewWriter(w)
	for _, win := range windows {
		tw.WriteString(win.Chrom)
		tw.WriteInt64(int64(win.Start))
		tw.WriteInt64(int64(win.End))
		tw.WriteInt64(int64(win.Count))
		if err := tw.EndLine(); err != nil {
			return errors.E(err, "failed to write coverage line")
		}
	}
	if err := tw.Flush(); err != nil {
		return errors.E(err, "failed to flush coverage track")
	}
	return nil
}
