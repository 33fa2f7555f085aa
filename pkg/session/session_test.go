package session

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethpandaops/mperf/pkg/config"
	"github.com/ethpandaops/mperf/pkg/storage"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUploadConfig() *config.UploadConfig {
	return &config.UploadConfig{
		SizeMiB:        2,
		ParentDir:      "/stor/mperf",
		MaxOutstanding: 7,
		IntervalMS:     250,
	}
}

func TestNew(t *testing.T) {
	s := New(testUploadConfig())

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "/stor/mperf/"+s.ID, s.Root)
	assert.Equal(t, int64(2*1024*1024), s.ObjectSize)
	assert.Equal(t, 250*time.Millisecond, s.Interval)
	assert.Equal(t, 7, s.Gate.Capacity())
	assert.Zero(t, s.Gate.Outstanding())

	other := New(testUploadConfig())
	assert.NotEqual(t, s.Root, other.Root, "every session gets a fresh root")
}

func TestBootstrapCreatesRoot(t *testing.T) {
	base := t.TempDir()

	store, err := storage.NewLocalStore(logrus.New(), &config.LocalStorageConfig{BaseDir: base})
	require.NoError(t, err)

	log, hook := test.NewNullLogger()
	s := New(testUploadConfig())

	require.NoError(t, s.Bootstrap(context.Background(), log, store))

	info, err := os.Stat(filepath.Join(base, "stor", "mperf", s.ID))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "Session root created", hook.LastEntry().Message)
}

type failingStore struct {
	preflightErr error
	mkdirErr     error
	mkdirs       int
}

func (s *failingStore) Put(context.Context, string, io.Reader, storage.Metadata) error {
	return nil
}

func (s *failingStore) MkdirAll(context.Context, string) error {
	s.mkdirs++

	return s.mkdirErr
}

func (s *failingStore) Preflight(context.Context) error {
	return s.preflightErr
}

func (s *failingStore) Type() string {
	return "failing"
}

func TestBootstrapFailures(t *testing.T) {
	cause := errors.New("access denied")

	tests := []struct {
		name       string
		store      *failingStore
		wantMkdirs int
	}{
		{
			name:       "root creation fails",
			store:      &failingStore{mkdirErr: cause},
			wantMkdirs: 1,
		},
		{
			name:       "preflight fails before root creation",
			store:      &failingStore{preflightErr: cause},
			wantMkdirs: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, _ := test.NewNullLogger()
			s := New(testUploadConfig())

			err := s.Bootstrap(context.Background(), log, tt.store)
			require.Error(t, err)

			var bootErr *BootstrapError

			require.ErrorAs(t, err, &bootErr)
			assert.Equal(t, s.Root, bootErr.Root)
			assert.ErrorIs(t, err, cause)
			assert.Equal(t, tt.wantMkdirs, tt.store.mkdirs)
		})
	}
}
