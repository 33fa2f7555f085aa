package zerostream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name       string
		size       int64
		max        int
		wantChunks []int
	}{
		{
			name:       "empty stream",
			size:       0,
			max:        10,
			wantChunks: nil,
		},
		{
			name:       "exact multiple",
			size:       30,
			max:        10,
			wantChunks: []int{10, 10, 10},
		},
		{
			name:       "trailing partial chunk",
			size:       25,
			max:        10,
			wantChunks: []int{10, 10, 5},
		},
		{
			name:       "default chunk size",
			size:       DefaultChunkSize + 1,
			max:        0,
			wantChunks: []int{DefaultChunkSize, 1},
		},
		{
			name:       "request larger than default is capped",
			size:       DefaultChunkSize * 2,
			max:        DefaultChunkSize * 4,
			wantChunks: []int{DefaultChunkSize, DefaultChunkSize},
		},
		{
			name:       "negative size is empty",
			size:       -5,
			max:        10,
			wantChunks: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(tt.size)

			var got []int

			for {
				chunk, ok := s.Next(tt.max)
				if !ok {
					break
				}

				assert.LessOrEqual(t, len(chunk), max(tt.max, DefaultChunkSize))
				got = append(got, len(chunk))
			}

			assert.Equal(t, tt.wantChunks, got)
			assert.Zero(t, s.Remaining())

			_, ok := s.Next(tt.max)
			assert.False(t, ok, "exhausted stream must stay exhausted")
		})
	}
}

func TestReadProducesExactZeroContent(t *testing.T) {
	const size = 5*1024*1024 + 17

	s := New(size)

	data, err := io.ReadAll(s)
	require.NoError(t, err)

	assert.Len(t, data, size)
	assert.Equal(t, -1, bytes.IndexFunc(data, func(r rune) bool { return r != 0 }))
	assert.Zero(t, s.Remaining())
}

func TestReadOverwritesDirtyBuffer(t *testing.T) {
	s := New(8)

	buf := bytes.Repeat([]byte{0xff}, 16)

	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, make([]byte, 8), buf[:8])

	n, err = s.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteTo(t *testing.T) {
	s := New(3*DefaultChunkSize + 100)

	var buf bytes.Buffer

	n, err := io.Copy(&buf, s)
	require.NoError(t, err)

	assert.Equal(t, int64(3*DefaultChunkSize+100), n)
	assert.Equal(t, 3*DefaultChunkSize+100, buf.Len())
	assert.Zero(t, s.Remaining())
}

type failingWriter struct {
	accept int
	err    error
}

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.accept >= len(p) {
		w.accept -= len(p)

		return len(p), nil
	}

	n := w.accept
	w.accept = 0

	return n, w.err
}

func TestWriteToKeepsUnwrittenBytes(t *testing.T) {
	sinkErr := errors.New("connection reset")
	s := New(2 * DefaultChunkSize)

	n, err := s.WriteTo(&failingWriter{accept: DefaultChunkSize + 10, err: sinkErr})
	require.ErrorIs(t, err, sinkErr)

	assert.Equal(t, int64(DefaultChunkSize+10), n)
	assert.Equal(t, int64(DefaultChunkSize-10), s.Remaining())
}
