package vcf

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Writer writes VCF text
type Writer struct {
	w   *bufio.Writer
	buf []byte
}

// NewWriter writes the header to w verbatim and returns a record writer
func NewWriter(w io.Writer, header *Header) (*Writer, error) {
	vw := &Writer{w: bufio.NewWriterSize(w, 1<<20)}
	for _, line := range header.Meta {
		if err := vw.writeLine(line); err != nil {
			return nil, err
		}
	}
	if err := vw.writeLine(header.Columns); err != nil {
		return nil, err
	}
	return vw, nil
}

func (w *Writer) writeLine(line string) error {
	if _, err := w.w.WriteString(line); err != nil {
		return errors.E(err, "failed to write VCF line")
	}
	return w.w.WriteByte('\n')
}

// Write writes a record unchanged
func (w *Writer) Write(rec *Record) error {
	return w.writeLine(strings.Join(rec.Fields, "\t"))
}

// WriteTagged writes rec with CHROM rewritten to "{chrom}_{level}" and ID
// rewritten to id. The record itself is not modified.
func (w *Writer) WriteTagged(rec *Record, id uint64, level uint32) error {
	b := w.buf[:0]
	b = append(b, rec.Chrom...)
	b = append(b, '_')
	b = strconv.AppendUint(b, uint64(level), 10)
	b = append(b, '\t')
	b = append(b, rec.Fields[ColPos]...)
	b = append(b, '\t')
	b = strconv.AppendUint(b, id, 10)
	for _, f := range rec.Fields[ColRef:] {
		b = append(b, '\t')
		b = append(b, f...)
	}
	b = append(b, '\n')
	w.buf = b

	if _, err := w.w.Write(b); err != nil {
		return errors.E(err, "failed to write VCF record")
	}
	return nil
}

// Flush flushes buffered output
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// SplitTag splits a zoom-tagged chromosome label such as "chr1_5" into its
// original label and level
func SplitTag(chrom string) (string, uint32, bool) {
	i := strings.LastIndexByte(chrom, '_')
	if i <= 0 || i == len(chrom)-1 {
		return chrom, 0, false
	}
	level, err := strconv.ParseUint(chrom[i+1:], 10, 32)
	if err != nil {
		return chrom, 0, false
	}
	return chrom[:i], uint32(level), true
}
