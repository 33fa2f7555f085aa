package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/ethpandaops/mperf/pkg/zerostream"
	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMinio is an in-memory minioAPI.
type fakeMinio struct {
	mu      sync.Mutex
	objects map[string]int64
	putErr  error
}

func (f *fakeMinio) PutObject(
	_ context.Context, _, objectName string,
	reader io.Reader, _ int64, _ minio.PutObjectOptions,
) (minio.UploadInfo, error) {
	n, err := io.Copy(io.Discard, reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.putErr != nil {
		return minio.UploadInfo{}, f.putErr
	}

	f.objects[objectName] = n

	return minio.UploadInfo{Key: objectName, Size: n}, nil
}

func (f *fakeMinio) StatObject(
	_ context.Context, _, objectName string, _ minio.StatObjectOptions,
) (minio.ObjectInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, ok := f.objects[objectName]
	if !ok {
		return minio.ObjectInfo{}, minio.ErrorResponse{
			Code:       "NoSuchKey",
			StatusCode: http.StatusNotFound,
		}
	}

	return minio.ObjectInfo{Key: objectName, Size: n}, nil
}

func TestMinioStore_HealThenPut(t *testing.T) {
	fake := &fakeMinio{objects: make(map[string]int64)}
	store := &minioStore{log: logrus.New(), bucket: "load", strict: true, client: fake}
	ctx := context.Background()
	meta := Metadata{Size: 2048, ContentType: "text/plain"}

	err := store.Put(ctx, "mperf/run/0f/obj", zerostream.New(2048), meta)
	require.Error(t, err)
	assert.True(t, IsDirectoryNotExist(err))

	require.NoError(t, store.MkdirAll(ctx, "mperf/run/0f"))
	require.NoError(t, store.MkdirAll(ctx, "mperf/run/0f"))

	require.NoError(t, store.Put(ctx, "mperf/run/0f/obj", zerostream.New(2048), meta))
	assert.Equal(t, int64(2048), fake.objects["mperf/run/0f/obj"])
}

func TestMinioStore_ShortBody(t *testing.T) {
	fake := &fakeMinio{objects: make(map[string]int64)}
	store := &minioStore{log: logrus.New(), bucket: "load", client: fake}

	err := store.Put(context.Background(), "obj", zerostream.New(10), Metadata{Size: 20})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short write")
}

func TestIsMinioNotFound(t *testing.T) {
	assert.True(t, isMinioNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isMinioNotFound(minio.ErrorResponse{StatusCode: http.StatusNotFound}))
	assert.False(t, isMinioNotFound(minio.ErrorResponse{Code: "AccessDenied", StatusCode: http.StatusForbidden}))
	assert.False(t, isMinioNotFound(errors.New("dial tcp: connection refused")))
}
