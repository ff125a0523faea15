package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/biogo/hts/bgzf"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalCreateClose(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := context.Background()
	st := NewLocalStorage()
	path := filepath.Join(tmpdir, "sub", "out.txt")

	out, err := st.Create(ctx, path)
	require.NoError(t, err)
	_, err = io.WriteString(out, "hello\n")
	require.NoError(t, err)

	// Not visible until closed
	exists, err := st.Exists(ctx, path)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, out.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))

	// Later calls are no-ops
	assert.NoError(t, out.Close())
	assert.NoError(t, out.Abort())
	_, err = out.Write([]byte("x"))
	assert.Error(t, err)
	assertNoTempFiles(t, filepath.Dir(path))
}

func TestLocalAbort(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := context.Background()
	st := NewLocalStorage()
	path := filepath.Join(tmpdir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("previous"), 0644))

	out, err := st.Create(ctx, path)
	require.NoError(t, err)
	_, err = io.WriteString(out, "partial")
	require.NoError(t, err)
	require.NoError(t, out.Abort())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))
	assertNoTempFiles(t, tmpdir)
}

func assertNoTempFiles(t *testing.T, dir string) {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), e.Name())
	}
}

func TestLocalOpenMissing(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	_, err := NewLocalStorage().Open(context.Background(), filepath.Join(tmpdir, "missing.vcf"))
	assert.True(t, errors.Is(errors.NotExist, err))

	_, err = OpenReader(context.Background(), filepath.Join(tmpdir, "missing.vcf.gz"))
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestCodecRoundTrip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	ctx := context.Background()
	content := strings.Repeat("chr1\t10\t.\tA\tG\t.\tPASS\tSCORE=1\n", 5000)

	for _, name := range []string{"plain.vcf", "out.vcf.gz", "out.vcf.bgz", "out.vcf.zst"} {
		path := filepath.Join(tmpdir, name)
		w, err := CreateWriter(ctx, path)
		require.NoError(t, err, name)
		_, err = io.WriteString(w, content)
		require.NoError(t, err, name)
		require.NoError(t, w.Close(), name)

		r, err := OpenReader(ctx, path)
		require.NoError(t, err, name)
		data, err := io.ReadAll(r)
		require.NoError(t, err, name)
		require.NoError(t, r.Close(), name)
		assert.Equal(t, content, string(data), name)
	}

	// Gzip outputs are BGZF
	f, err := os.Open(filepath.Join(tmpdir, "out.vcf.gz"))
	require.NoError(t, err)
	defer f.Close()
	br, err := bgzf.NewReader(f, 1)
	require.NoError(t, err)
	data, err := io.ReadAll(br)
	require.NoError(t, err)
	assert.Equal(t, content, string(data))
}

func TestCompressedAbort(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "out.vcf.gz")

	w, err := CreateWriter(context.Background(), path)
	require.NoError(t, err)
	_, err = io.WriteString(w, "data\n")
	require.NoError(t, err)
	require.NoError(t, w.Abort())
	assert.NoError(t, w.Close())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assertNoTempFiles(t, tmpdir)
}

func TestInvalidGzip(t *testing.T) {
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	path := filepath.Join(tmpdir, "bad.vcf.gz")
	require.NoError(t, os.WriteFile(path, []byte("not gzip"), 0644))

	_, err := OpenReader(context.Background(), path)
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestCodecForPath(t *testing.T) {
	tests := []struct {
		path string
		want Codec
	}{
		{"in.vcf", CodecNone},
		{"in.vcf.gz", CodecGzip},
		{"IN.VCF.GZ", CodecGzip},
		{"in.vcf.bgz", CodecGzip},
		{"s3://bucket/in.vcf.zst", CodecZstd},
		{"tiles.db", CodecNone},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CodecForPath(tt.path), tt.path)
	}
}

func TestParseS3URI(t *testing.T) {
	uri, err := ParseS3URI("s3://bucket/path/to/in.vcf.gz")
	require.NoError(t, err)
	assert.Equal(t, S3URI{Bucket: "bucket", Key: "path/to/in.vcf.gz"}, uri)
	assert.Equal(t, "s3://bucket/path/to/in.vcf.gz", uri.String())

	for _, bad := range []string{"/local/path", "s3://", "s3:///key", "s3://bucket", "s3://bucket/", "s3://bucket/dir/"} {
		_, err := ParseS3URI(bad)
		assert.True(t, errors.Is(errors.Invalid, err), bad)
	}
}
