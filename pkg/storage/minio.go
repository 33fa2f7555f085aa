package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ethpandaops/mperf/pkg/config"
	"github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"
)

// minioAPI is the subset of the MinIO client used by the store.
type minioAPI interface {
	PutObject(
		ctx context.Context, bucketName, objectName string,
		reader io.Reader, objectSize int64, opts minio.PutObjectOptions,
	) (minio.UploadInfo, error)
	StatObject(
		ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions,
	) (minio.ObjectInfo, error)
}

// Compile-time interface checks.
var (
	_ Store       = (*minioStore)(nil)
	_ Preflighter = (*minioStore)(nil)
)

// minioStore implements Store on a MinIO server with the same directory
// marker scheme as the S3 store.
type minioStore struct {
	log    logrus.FieldLogger
	bucket string
	strict bool
	client minioAPI
}

// NewMinioStore creates a Store for the MinIO bucket in cfg.
func NewMinioStore(log logrus.FieldLogger, cfg *config.MinioConfig) (Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	return &minioStore{
		log:    log.WithField("component", "minio-store"),
		bucket: cfg.Bucket,
		strict: cfg.StrictDirectories,
		client: client,
	}, nil
}

func (s *minioStore) Type() string {
	return config.BackendMinio
}

// Preflight verifies connectivity by writing a small test object.
func (s *minioStore) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("mperf write test: %s", time.Now().UTC().Format(time.RFC3339))

	_, err := s.client.PutObject(ctx, s.bucket, preflightKey,
		strings.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "text/plain"})
	if err != nil {
		return fmt.Errorf("writing test object to minio bucket %s: %w", s.bucket, err)
	}

	return nil
}

// Put streams body to the object key.
func (s *minioStore) Put(
	ctx context.Context, objectPath string, body io.Reader, meta Metadata,
) error {
	key := CleanPath(objectPath)

	if s.strict {
		if err := s.checkDir(ctx, parentDir(key)); err != nil {
			return err
		}
	}

	info, err := s.client.PutObject(ctx, s.bucket, key, body, meta.Size,
		minio.PutObjectOptions{ContentType: meta.ContentType})
	if err != nil {
		return fmt.Errorf("putting object %q: %w", key, err)
	}

	if info.Size != meta.Size {
		return fmt.Errorf("putting object %q: short write: %d of %d bytes", key, info.Size, meta.Size)
	}

	s.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": s.bucket,
	}).Debug("Uploaded object")

	return nil
}

func (s *minioStore) checkDir(ctx context.Context, dir string) error {
	if dir == "" {
		return nil
	}

	_, err := s.client.StatObject(ctx, s.bucket, MarkerKey(dir), minio.StatObjectOptions{})
	if err == nil {
		return nil
	}

	if isMinioNotFound(err) {
		return fmt.Errorf("%w: %s", ErrDirectoryNotExist, dir)
	}

	return fmt.Errorf("checking directory %q: %w", dir, err)
}

// MkdirAll writes a marker for dir and each ancestor.
func (s *minioStore) MkdirAll(ctx context.Context, dir string) error {
	for _, d := range Ancestors(dir) {
		_, err := s.client.PutObject(ctx, s.bucket, MarkerKey(d),
			strings.NewReader(""), 0,
			minio.PutObjectOptions{ContentType: DirectoryContentType})
		if err != nil {
			return fmt.Errorf("creating directory marker %q: %w", MarkerKey(d), err)
		}
	}

	return nil
}

func isMinioNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)

	return resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound
}
