package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/grailbio/base/errors"
)

// Storage reads inputs and writes outputs atomically. Supports both the
// local filesystem and S3.
type Storage interface {
	// Open opens path for reading
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Create starts writing path. Nothing is visible at path until the
	// returned Output is closed successfully.
	Create(ctx context.Context, path string) (Output, error)

	// Exists checks if path exists
	Exists(ctx context.Context, path string) (bool, error)

	// IsS3 returns true if this is S3 storage
	IsS3() bool
}

// Output is a pending file. Close publishes it; Abort discards it. After
// either call, further calls to Close or Abort are no-ops.
type Output interface {
	io.Writer
	Close() error
	Abort() error
}

// ForPath returns the storage backend for path
func ForPath(ctx context.Context, path string) (Storage, error) {
	if IsS3URI(path) {
		return NewS3Storage(ctx, "")
	}
	return NewLocalStorage(), nil
}

// LocalStorage implements Storage for the local filesystem
type LocalStorage struct{}

// NewLocalStorage creates a new local storage backend
func NewLocalStorage() *LocalStorage {
	return &LocalStorage{}
}

func (s *LocalStorage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.E(errors.NotExist, err, "failed to open", path)
		}
		return nil, errors.E(err, "failed to open", path)
	}
	return f, nil
}

// Create writes to a temporary file in the destination directory, renamed
// over path on Close
func (s *LocalStorage) Create(ctx context.Context, path string) (Output, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.E(err, "failed to create directory", dir)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, errors.E(err, "failed to create", path)
	}
	return &localOutput{file: f, path: path}, nil
}

func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, errors.E(err, "failed to stat", path)
}

func (s *LocalStorage) IsS3() bool {
	return false
}

// localOutput is a temporary file awaiting rename
type localOutput struct {
	file *os.File
	path string
	done bool
}

func (o *localOutput) Write(p []byte) (int, error) {
	if o.done {
		return 0, errors.E(errors.Invalid, "write after close", o.path)
	}
	return o.file.Write(p)
}

func (o *localOutput) Close() error {
	if o.done {
		return nil
	}
	o.done = true
	tmp := o.file.Name()
	if err := o.file.Close(); err != nil {
		os.Remove(tmp)
		return errors.E(err, "failed to close", o.path)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return errors.E(err, "failed to set permissions", o.path)
	}
	if err := os.Rename(tmp, o.path); err != nil {
		os.Remove(tmp)
		return errors.E(err, "failed to rename", fmt.Sprintf("%s -> %s", tmp, o.path))
	}
	return nil
}

func (o *localOutput) Abort() error {
	if o.done {
		return nil
	}
	o.done = true
	o.file.Close()
	if err := os.Remove(o.file.Name()); err != nil && !os.IsNotExist(err) {
		return errors.E(err, "failed to remove", o.file.Name())
	}
	return nil
}

// S3URI is a parsed s3://bucket/key path
type S3URI struct {
	Bucket string
	Key    string
}

func (u S3URI) String() string {
	return "s3://" + u.Bucket + "/" + u.Key
}

// IsS3URI checks if a path is an S3 URI
func IsS3URI(path string) bool {
	return strings.HasPrefix(path, "s3://")
}

// ParseS3URI parses an S3 URI like s3://bucket/path/to/object
func ParseS3URI(uri string) (S3URI, error) {
	if !IsS3URI(uri) {
		return S3URI{}, errors.E(errors.Invalid, "invalid S3 URI (must start with s3://)", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "s3://"), "/", 2)
	if parts[0] == "" {
		return S3URI{}, errors.E(errors.Invalid, "invalid S3 URI: missing bucket name", uri)
	}
	if len(parts) < 2 || parts[1] == "" || strings.HasSuffix(parts[1], "/") {
		return S3URI{}, errors.E(errors.Invalid, "invalid S3 URI: missing object key", uri)
	}
	return S3URI{Bucket: parts[0], Key: parts[1]}, nil
}
