// Package vcf reads and writes VCF text while keeping every column verbatim.
// Only CHROM, POS, ID and INFO are interpreted; everything else is payload.
package vcf

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
)

// Column indices of the fixed VCF fields
const (
	ColChrom = iota
	ColPos
	ColID
	ColRef
	ColAlt
	ColQual
	ColFilter
	ColInfo

	// MinColumns is the number of mandatory VCF columns
	MinColumns = 8
)

// maxLineSize bounds a single VCF line (wide cohort files carry many samples)
const maxLineSize = 256 * 1024 * 1024

// Header holds the meta-information lines and the column header line
type Header struct {
	Meta    []string // "##" lines, without trailing newline
	Columns string   // "#CHROM ..." line
}

// Record is one VCF data line
type Record struct {
	Chrom  string
	Pos    uint64   // 1-based
	Fields []string // every column, verbatim
}

// InfoValue returns the raw value of an INFO key. Flags return "" and true.
func (r *Record) InfoValue(key string) (string, bool) {
	if len(r.Fields) <= ColInfo {
		return "", false
	}
	info := r.Fields[ColInfo]
	if info == "." || info == "" {
		return "", false
	}
	for len(info) > 0 {
		var entry string
		if i := strings.IndexByte(info, ';'); i >= 0 {
			entry, info = info[:i], info[i+1:]
		} else {
			entry, info = info, ""
		}
		if eq := strings.IndexByte(entry, '='); eq >= 0 {
			if entry[:eq] == key {
				return entry[eq+1:], true
			}
		} else if entry == key {
			return "", true
		}
	}
	return "", false
}

// Info returns the first comma-separated element of an INFO value
func (r *Record) Info(key string) (string, bool) {
	v, ok := r.InfoValue(key)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		v = v[:i]
	}
	return v, true
}

// Reader reads VCF records from a stream
type Reader struct {
	header  Header
	scanner *bufio.Scanner
	line    int
	pending string // first data line, consumed while parsing the header
	hasNext bool
}

// NewReader parses the VCF header from r and returns a reader positioned
// at the first record
func NewReader(r io.Reader) (*Reader, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	vr := &Reader{scanner: scanner}
	for scanner.Scan() {
		vr.line++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.HasPrefix(line, "##") {
			vr.header.Meta = append(vr.header.Meta, line)
			continue
		}
		if strings.HasPrefix(line, "#") {
			vr.header.Columns = line
			continue
		}
		if line == "" {
			continue
		}

		// Stop at first data line, Read() picks it up
		vr.pending = line
		vr.hasNext = true
		break
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.E(err, "failed to read VCF header")
	}
	if vr.header.Columns == "" {
		return nil, errors.E(errors.Invalid, "missing #CHROM header line")
	}
	return vr, nil
}

// Header returns the parsed header
func (r *Reader) Header() *Header {
	return &r.header
}

// Read returns the next record, or io.EOF when the stream is exhausted
func (r *Reader) Read() (*Record, error) {
	for {
		var line string
		if r.hasNext {
			line = r.pending
			r.pending, r.hasNext = "", false
		} else {
			if !r.scanner.Scan() {
				if err := r.scanner.Err(); err != nil {
					return nil, errors.E(err, "failed to read VCF record")
				}
				return nil, io.EOF
			}
			r.line++
			line = strings.TrimRight(r.scanner.Text(), "\r")
		}
		if line == "" {
			continue
		}
		return parseLine(line, r.line)
	}
}

// ReadAll reads every remaining record
func (r *Reader) ReadAll() ([]*Record, error) {
	var records []*Record
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// parseLine splits a data line into a Record
func parseLine(line string, lineNum int) (*Record, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < MinColumns {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("line %d: %d columns, expected at least %d", lineNum, len(fields), MinColumns))
	}

	pos, err := strconv.ParseUint(fields[ColPos], 10, 64)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, fmt.Sprintf("line %d: invalid POS %q", lineNum, fields[ColPos]))
	}

	return &Record{
		Chrom:  fields[ColChrom],
		Pos:    pos,
		Fields: fields,
	}, nil
}
