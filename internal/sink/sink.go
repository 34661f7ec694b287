// Package sink writes generated documents to a file or an S3 object,
// skipping the write when the destination already holds identical bytes.
package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/shipq/tsrpc/openapi"
)

// FingerprintKey is the object metadata key holding the document
// fingerprint.
const FingerprintKey = "tsrpc-fingerprint"

// Sink is a document destination.
type Sink interface {
	// Write stores data. It reports false when the destination already
	// held the same bytes and nothing was written.
	Write(ctx context.Context, data []byte) (bool, error)
	String() string
}

// S3Options configure S3 destinations.
type S3Options struct {
	Region          string
	Endpoint        string
	ForcePathStyle  bool
	AccessKeyID     string
	SecretAccessKey string
}

// Open returns the sink for dest: an S3 sink for s3://bucket/key URLs and a
// file sink otherwise.
func Open(dest string, format openapi.Format, opts S3Options) (Sink, error) {
	if strings.HasPrefix(dest, "s3://") {
		bucket, key, err := ParseS3URL(dest)
		if err != nil {
			return nil, err
		}
		client, err := NewS3Client(opts)
		if err != nil {
			return nil, err
		}
		return NewS3Sink(client, bucket, key, format), nil
	}
	if strings.TrimSpace(dest) == "" {
		return nil, errors.New("output path is required")
	}
	return &FileSink{Path: dest}, nil
}

// FileSink writes to a local file.
type FileSink struct {
	Path string
}

func (f *FileSink) String() string { return f.Path }

// Write replaces the file atomically unless it already holds data.
func (f *FileSink) Write(_ context.Context, data []byte) (bool, error) {
	existing, err := os.ReadFile(f.Path)
	if err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading %s: %w", f.Path, err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return false, fmt.Errorf("writing %s: %w", f.Path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return false, fmt.Errorf("writing %s: %w", f.Path, err)
	}
	if err := tmp.Close(); err != nil {
		return false, fmt.Errorf("writing %s: %w", f.Path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return false, fmt.Errorf("writing %s: %w", f.Path, err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return false, fmt.Errorf("writing %s: %w", f.Path, err)
	}
	return true, nil
}

// ObjectAPI is the subset of the S3 client the sink uses.
type ObjectAPI interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds an S3 client with static credentials.
func NewS3Client(opts S3Options) (*s3.Client, error) {
	access := strings.TrimSpace(opts.AccessKeyID)
	secret := strings.TrimSpace(opts.SecretAccessKey)
	if access == "" || secret == "" {
		return nil, errors.New("s3 access key and secret key are required")
	}
	region := strings.TrimSpace(opts.Region)
	if region == "" {
		region = "us-east-1"
	}

	o := s3.Options{
		Region:       region,
		Credentials:  credentials.NewStaticCredentialsProvider(access, secret, ""),
		UsePathStyle: opts.ForcePathStyle,
	}
	if ep := strings.TrimSpace(opts.Endpoint); ep != "" {
		o.BaseEndpoint = aws.String(ep)
	}
	return s3.New(o), nil
}

// ParseS3URL splits s3://bucket/key.
func ParseS3URL(raw string) (bucket, key string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid s3 url %q: %w", raw, err)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if u.Scheme != "s3" || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid s3 url %q (want s3://bucket/key)", raw)
	}
	return bucket, key, nil
}

// S3Sink writes to one object. The fingerprint of the last written document
// is stored in the object metadata and compared before each write.
type S3Sink struct {
	client      ObjectAPI
	bucket      string
	key         string
	contentType string
}

// NewS3Sink returns a sink writing bucket/key through client.
func NewS3Sink(client ObjectAPI, bucket, key string, format openapi.Format) *S3Sink {
	ct := "application/json"
	if format == openapi.FormatYAML {
		ct = "application/yaml"
	}
	return &S3Sink{client: client, bucket: bucket, key: key, contentType: ct}
}

func (s *S3Sink) String() string { return "s3://" + s.bucket + "/" + s.key }

func (s *S3Sink) Write(ctx context.Context, data []byte) (bool, error) {
	fp := openapi.Fingerprint(data)

	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	var notFound *types.NotFound
	switch {
	case err == nil:
		if head.Metadata[FingerprintKey] == fp {
			return false, nil
		}
	case errors.As(err, &notFound):
	default:
		return false, fmt.Errorf("checking %s: %w", s, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(s.key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(s.contentType),
		Metadata:      map[string]string{FingerprintKey: fp},
	})
	if err != nil {
		return false, fmt.Errorf("uploading %s: %w", s, err)
	}
	return true, nil
}
