package zerostream

import (
	"io"
)

// DefaultChunkSize is the chunk size used when a caller does not request one.
const DefaultChunkSize = 64 * 1024

// zeros backs every chunk handed out by Next and WriteTo. It is never written to.
var zeros = make([]byte, DefaultChunkSize)

// Stream is a finite, single-use source of zero bytes. It yields chunks until
// exactly size bytes have been produced and then reports end of stream.
// A Stream is owned by one upload attempt and must not be shared.
type Stream struct {
	size      int64
	remaining int64
}

// Ensure interface compliance.
var (
	_ io.Reader   = (*Stream)(nil)
	_ io.WriterTo = (*Stream)(nil)
)

// New creates a stream producing size zero bytes. Negative sizes are treated as zero.
func New(size int64) *Stream {
	if size < 0 {
		size = 0
	}

	return &Stream{size: size, remaining: size}
}

// Size returns the total number of bytes the stream produces.
func (s *Stream) Size() int64 {
	return s.size
}

// Remaining returns the number of bytes not yet produced.
func (s *Stream) Remaining() int64 {
	return s.remaining
}

// Next returns the next chunk of at most limit bytes. A limit <= 0 selects
// DefaultChunkSize. The returned slice is read-only and only valid until
// the next call. ok is false once the stream is exhausted.
func (s *Stream) Next(limit int) (chunk []byte, ok bool) {
	if s.remaining == 0 {
		return nil, false
	}

	if limit <= 0 || limit > DefaultChunkSize {
		limit = DefaultChunkSize
	}

	n := int64(limit)
	if n > s.remaining {
		n = s.remaining
	}

	s.remaining -= n

	return zeros[:n], true
}

// Read fills p with zero bytes, up to the remaining length.
func (s *Stream) Read(p []byte) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}

	if len(p) == 0 {
		return 0, nil
	}

	n := int64(len(p))
	if n > s.remaining {
		n = s.remaining
	}

	clear(p[:n])
	s.remaining -= n

	return int(n), nil
}

// WriteTo writes the remainder of the stream to w in DefaultChunkSize chunks.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	var written int64

	for {
		chunk, ok := s.Next(DefaultChunkSize)
		if !ok {
			return written, nil
		}

		n, err := w.Write(chunk)
		written += int64(n)

		if err != nil {
			// Bytes the writer did not accept are still owed.
			s.remaining += int64(len(chunk) - n)

			return written, err
		}

		if n != len(chunk) {
			s.remaining += int64(len(chunk) - n)

			return written, io.ErrShortWrite
		}
	}
}
