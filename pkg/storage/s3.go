package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/ethpandaops/mperf/pkg/config"
	"github.com/sirupsen/logrus"
)

// preflightKey is the object written by Preflight.
const preflightKey = ".mperf-write-test"

// s3API is the subset of the S3 client used by the store.
type s3API interface {
	PutObject(
		ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options),
	) (*s3.PutObjectOutput, error)
	HeadObject(
		ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options),
	) (*s3.HeadObjectOutput, error)
}

// Compile-time interface checks.
var (
	_ Store       = (*s3Store)(nil)
	_ Preflighter = (*s3Store)(nil)
)

// s3Store implements Store for S3-compatible storage. S3 has no directories,
// so they are emulated with zero-byte marker objects. In strict mode Put
// refuses to write below a directory whose marker is missing.
type s3Store struct {
	log    logrus.FieldLogger
	bucket string
	strict bool
	client s3API
}

// NewS3Store creates a Store for the bucket in cfg.
func NewS3Store(log logrus.FieldLogger, cfg *config.S3Config) Store {
	return &s3Store{
		log:    log.WithField("component", "s3-store"),
		bucket: cfg.Bucket,
		strict: cfg.StrictDirectories,
		client: newS3Client(cfg),
	}
}

// newS3Client builds an S3 client from the given configuration.
func newS3Client(cfg *config.S3Config) *s3.Client {
	return s3.New(s3.Options{}, func(o *s3.Options) {
		if cfg.Region != "" {
			o.Region = cfg.Region
		} else {
			o.Region = "us-east-1"
		}

		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}

		if cfg.ForcePathStyle {
			o.UsePathStyle = true
		}

		if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, "",
			)
		}
	})
}

func (s *s3Store) Type() string {
	return config.BackendS3
}

// Preflight verifies S3 connectivity by writing a small test object.
func (s *s3Store) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("mperf write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(preflightKey),
		Body:        strings.NewReader(content),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", s.bucket, err)
	}

	return nil
}

// Put streams body to the object key. The body is not seekable, so the
// payload is sent unsigned.
func (s *s3Store) Put(
	ctx context.Context, objectPath string, body io.Reader, meta Metadata,
) error {
	key := CleanPath(objectPath)

	if s.strict {
		if err := s.checkDir(ctx, parentDir(key)); err != nil {
			return err
		}
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(meta.Size),
		ContentType:   aws.String(meta.ContentType),
	}, s3.WithAPIOptions(v4.SwapComputePayloadSHA256ForUnsignedPayloadMiddleware))
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.bucket,
	}).Debug("Uploaded object")

	return nil
}

// checkDir returns an error wrapping ErrDirectoryNotExist when the marker for
// dir is missing. The bucket root always exists.
func (s *s3Store) checkDir(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(MarkerKey(dir)),
	})
	if err == nil {
		return nil
	}

	if isS3NotFound(err) {
		return fmt.Errorf("%w: %s", ErrDirectoryNotExist, dir)
	}

	return fmt.Errorf("checking directory %q: %w", dir, err)
}

// MkdirAll writes a marker for dir and each ancestor. Markers are plain
// overwrites, so concurrent calls are harmless.
func (s *s3Store) MkdirAll(ctx context.Context, dir string) error {
	for _, d := range Ancestors(dir) {
		_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(s.bucket),
			Key:           aws.String(MarkerKey(d)),
			Body:          strings.NewReader(""),
			ContentLength: aws.Int64(0),
			ContentType:   aws.String(DirectoryContentType),
		})
		if err != nil {
			return fmt.Errorf("creating directory marker %q: %w", MarkerKey(d), err)
		}
	}

	return nil
}

// isS3NotFound returns true if the error indicates the object does not exist.
func isS3NotFound(err error) bool {
	var (
		nf  *s3types.NotFound
		nsk *s3types.NoSuchKey
	)

	if errors.As(err, &nf) || errors.As(err, &nsk) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}

	// HEAD responses carry no body, so some S3-compatible implementations
	// only expose the status code.
	var respErr *smithyhttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}

	return strings.Contains(err.Error(), "NoSuchKey")
}
