package fsutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOwner(t *testing.T) {
	tests := []struct {
		name    string
		owner   string
		want    *Owner
		wantErr bool
	}{
		{name: "empty", owner: "", want: nil},
		{name: "valid", owner: "1000:1001", want: &Owner{UID: 1000, GID: 1001}},
		{name: "missing gid", owner: "1000", wantErr: true},
		{name: "too many parts", owner: "1:2:3", wantErr: true},
		{name: "non numeric uid", owner: "root:0", wantErr: true},
		{name: "non numeric gid", owner: "0:wheel", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOwner(tt.owner)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMkdirAllIsIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")

	require.NoError(t, MkdirAll(dir, nil))
	require.NoError(t, MkdirAll(dir, nil))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCreateFileDoesNotCreateParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "object")

	_, err := CreateFile(path, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)

	require.NoError(t, MkdirAll(filepath.Dir(path), nil))

	f, err := CreateFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
