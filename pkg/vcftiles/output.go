package vcftiles

import (
	"io"

	"github.com/grailbio/base/errors"
	"github.com/scttfrdmn/vcftiles/pkg/vcf"
)

// WritePyramid writes every entry of p as a tagged record, in level order
// and within a level in the order the builder produced, then flushes w
func WritePyramid(w *vcf.Writer, cat *Catalog, p *Pyramid) error {
	err := p.Each(func(e Entry) error {
		v, err := cat.ByID(e.ID)
		if err != nil {
			return invariantError("pyramid entry %d at level %d: %v", e.ID, e.Level, err)
		}
		return w.WriteTagged(v.Record, v.ID, e.Level)
	})
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errors.E(err, "failed to flush pyramid output")
	}
	return nil
}

// ExtractLevel copies the records of one zoom level from a pyramid stream to
// w, restoring their original chromosome labels unless keepTag is set. It
// returns the number of records written.
func ExtractLevel(r *vcf.Reader, w *vcf.Writer, level uint32, keepTag bool) (int, error) {
	n := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return n, err
		}
		chrom, l, ok := vcf.SplitTag(rec.Chrom)
		if !ok {
			return n, errors.E(errors.Invalid, "record is not zoom-tagged: "+rec.Chrom)
		}
		if l != level {
			continue
		}
		if !keepTag {
			fields := append([]string(nil), rec.Fields...)
			fields[vcf.ColChrom] = chrom
			rec = &vcf.Record{Chrom: chrom, Pos: rec.Pos, Fields: fields}
		}
		if err := w.Write(rec); err != nil {
			return n, err
		}
		n++
	}
	if err := w.Flush(); err != nil {
		return n, errors.E(err, "failed to flush output")
	}
	return n, nil
}
