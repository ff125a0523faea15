package storage

import (
	"context"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/biogo/hts/bgzf"
	"github.com/grailbio/base/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Codec is a compression format chosen by file extension
type Codec int

const (
	// CodecNone is plain text
	CodecNone Codec = iota
	// CodecGzip reads any gzip stream and writes BGZF, which tabix and
	// bcftools can index
	CodecGzip
	// CodecZstd is zstandard
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecGzip:
		return "bgzf"
	case CodecZstd:
		return "zstd"
	default:
		return "none"
	}
}

// CodecForPath returns the codec implied by the extension of path
func CodecForPath(path string) Codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".bgz", ".bgzf":
		return CodecGzip
	case ".zst", ".zstd":
		return CodecZstd
	}
	return CodecNone
}

// OpenReader opens path on its storage backend, decompressing by extension
func OpenReader(ctx context.Context, path string) (io.ReadCloser, error) {
	st, err := ForPath(ctx, path)
	if err != nil {
		return nil, err
	}
	rc, err := st.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	r, err := NewDecompressor(rc, CodecForPath(path))
	if err != nil {
		rc.Close()
		return nil, errors.E(err, "failed to open", path)
	}
	return r, nil
}

// CreateWriter creates path on its storage backend, compressing by
// extension. The file appears only if Close succeeds.
func CreateWriter(ctx context.Context, path string) (Output, error) {
	st, err := ForPath(ctx, path)
	if err != nil {
		return nil, err
	}
	out, err := st.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	w, err := NewCompressor(out, CodecForPath(path))
	if err != nil {
		out.Abort()
		return nil, errors.E(err, "failed to create", path)
	}
	return w, nil
}

// NewDecompressor wraps rc with a decoder for codec. Closing the result
// closes rc.
func NewDecompressor(rc io.ReadCloser, codec Codec) (io.ReadCloser, error) {
	switch codec {
	case CodecGzip:
		zr, err := gzip.NewReader(rc)
		if err != nil {
			return nil, errors.E(errors.Invalid, err, "invalid gzip stream")
		}
		return &decompressor{Reader: zr, closers: []io.Closer{zr, rc}}, nil
	case CodecZstd:
		zr, err := zstd.NewReader(rc)
		if err != nil {
			return nil, errors.E(err, "failed to create zstd decoder")
		}
		return &decompressor{Reader: zr, closers: []io.Closer{zr.IOReadCloser(), rc}}, nil
	}
	return rc, nil
}

// NewCompressor wraps out with an encoder for codec. Close flushes the
// encoder before publishing out; Abort discards everything.
func NewCompressor(out Output, codec Codec) (Output, error) {
	switch codec {
	case CodecGzip:
		return &compressor{enc: bgzf.NewWriter(out, runtime.NumCPU()), out: out}, nil
	case CodecZstd:
		zw, err := zstd.NewWriter(out)
		if err != nil {
			return nil, errors.E(err, "failed to create zstd encoder")
		}
		return &compressor{enc: zw, out: out}, nil
	}
	return out, nil
}

type decompressor struct {
	io.Reader
	closers []io.Closer
}

func (d *decompressor) Close() error {
	var first error
	for _, c := range d.closers {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// compressor is an encoder in front of a pending Output
type compressor struct {
	enc  io.WriteCloser
	out  Output
	done bool
}

func (c *compressor) Write(p []byte) (int, error) {
	return c.enc.Write(p)
}

func (c *compressor) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	if err := c.enc.Close(); err != nil {
		c.out.Abort()
		return errors.E(err, "failed to finish compressed stream")
	}
	return c.out.Close()
}

func (c *compressor) Abort() error {
	if c.done {
		return nil
	}
	c.done = true
	err := c.out.Abort()
	c.enc.Close()
	return err
}
