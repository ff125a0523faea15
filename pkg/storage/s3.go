package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
)

const (
	// s3PartSize is the multipart upload part size
	s3PartSize = 10 * 1024 * 1024
	// s3Concurrency is the number of parts uploaded in parallel
	s3Concurrency = 3
)

// S3Storage implements Storage for AWS S3
type S3Storage struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
}

// NewS3Storage creates an S3 backend from the default AWS configuration.
// An empty region uses the configured default.
func NewS3Storage(ctx context.Context, region string) (*S3Storage, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.E(err, "failed to load AWS config")
	}

	client := s3.NewFromConfig(cfg)
	return &S3Storage{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = s3PartSize
			u.Concurrency = s3Concurrency
		}),
		downloader: manager.NewDownloader(client),
	}, nil
}

// Open downloads the object into memory with parallel ranged reads
func (s *S3Storage) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	uri, err := ParseS3URI(path)
	if err != nil {
		return nil, err
	}
	buf := manager.NewWriteAtBuffer([]byte{})
	n, err := s.downloader.Download(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		return nil, errors.E(err, "failed to download", path)
	}
	log.Printf("downloaded %s (%.1f MB)", path, float64(n)/(1024*1024))
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

// Create streams writes into a multipart upload. Abort, or any write
// error, cancels the upload so no object is created.
func (s *S3Storage) Create(ctx context.Context, path string) (Output, error) {
	uri, err := ParseS3URI(path)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	pr, pw := io.Pipe()
	o := &s3Output{
		path:   path,
		pipe:   pw,
		cancel: cancel,
		done:   make(chan error, 1),
	}
	go func() {
		_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket: aws.String(uri.Bucket),
			Key:    aws.String(uri.Key),
			Body:   pr,
		})
		pr.CloseWithError(err)
		o.done <- err
	}()
	return o, nil
}

func (s *S3Storage) Exists(ctx context.Context, path string) (bool, error) {
	uri, err := ParseS3URI(path)
	if err != nil {
		return false, err
	}
	_, err = s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(uri.Bucket),
		Key:    aws.String(uri.Key),
	})
	if err != nil {
		// Check if it's a not found error
		if strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "404") {
			return false, nil
		}
		return false, errors.E(err, "failed to stat", path)
	}
	return true, nil
}

func (s *S3Storage) IsS3() bool {
	return true
}

// s3Output feeds an in-flight upload through a pipe
type s3Output struct {
	path   string
	pipe   *io.PipeWriter
	cancel context.CancelFunc
	done   chan error

	once sync.Once
	err  error
}

func (o *s3Output) Write(p []byte) (int, error) {
	n, err := o.pipe.Write(p)
	if err != nil {
		return n, errors.E(err, "failed to upload", o.path)
	}
	return n, nil
}

func (o *s3Output) Close() error {
	o.once.Do(func() {
		o.pipe.Close()
		if err := <-o.done; err != nil {
			o.err = errors.E(err, "failed to upload", o.path)
		}
		o.cancel()
	})
	return o.err
}

func (o *s3Output) Abort() error {
	o.once.Do(func() {
		o.cancel()
		o.pipe.CloseWithError(errors.E(errors.Canceled, "upload aborted", o.path))
		<-o.done
	})
	return nil
}
