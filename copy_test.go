package memstream

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kopia/memstream/internal/bufpool"
)

func TestWriteTo(t *testing.T) {
	pool := newTestPool(t, bufpool.Options{})
	s := newTestStream(t, pool)

	data := pattern(0x42, 150000)
	_, err := s.Write(data)
	require.NoError(t, err)

	// WriteTo copies from the current position.
	_, err = s.Seek(100, io.SeekStart)
	require.NoError(t, err)

	var dst bytes.Buffer

	n, err := s.WriteTo(&dst)
	require.NoError(t, err)
	require.Equal(t, int64(149900), n)
	require.Equal(t, data[100:], dst.Bytes())
	require.Equal(t, s.Length(), s.Position())
}

type failAfterWriter struct {
	allowed int
}

func (w *failAfterWriter) Write(p []byte) (int, error) {
	if w.allowed <= 0 {
		return 0, io.ErrShortWrite
	}

	w.allowed--

	return len(p), nil
}

func TestWriteToDestinationFailure(t *testing.T) {
	pool := newTestPool(t, bufpool.Options{})
	s := newTestStream(t, pool)

	_, err := s.Write(pattern(1, 200000))
	require.NoError(t, err)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)

	n, err := s.WriteTo(&failAfterWriter{allowed: 1})
	require.ErrorIs(t, err, io.ErrShortWrite)

	// the position reflects the bytes actually emitted.
	require.Equal(t, n, s.Position())
}

func TestCopyToContext(t *testing.T) {
	pool := newTestPool(t, bufpool.Options{})
	s := newTestStream(t, pool)

	data := pattern(0x37, 300000)
	_, err := s.Write(data)
	require.NoError(t, err)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)

	var dst bytes.Buffer

	n, err := s.CopyToContext(context.Background(), &dst, 10000)
	require.NoError(t, err)
	require.Equal(t, int64(300000), n)
	require.Equal(t, data, dst.Bytes())
}

func TestCopyToContextCancellation(t *testing.T) {
	pool := newTestPool(t, bufpool.Options{})
	s := newTestStream(t, pool)

	_, err := s.Write(pattern(1, 500000))
	require.NoError(t, err)

	_, err = s.Seek(0, io.SeekStart)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	var dst bytes.Buffer

	// cancel after the first chunk has been emitted.
	w := writerFunc(func(p []byte) (int, error) {
		cancel()
		return dst.Write(p)
	})

	n, err := s.CopyToContext(ctx, w, 1000)
	require.ErrorIs(t, err, context.Canceled)

	// bytes already written remain and the position reflects them.
	require.Equal(t, int64(1000), n)
	require.Equal(t, int64(1000), s.Position())
	require.Equal(t, 1000, dst.Len())
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) {
	return f(p)
}

func TestIterateChunks(t *testing.T) {
	pool := newTestPool(t, bufpool.Options{})
	s := newTestStream(t, pool)

	data := pattern(0x66, 150000)
	_, err := s.Write(data)
	require.NoError(t, err)

	var (
		total  int
		chunks int
	)

	require.NoError(t, s.IterateChunks(func(b []byte) error {
		total += len(b)
		chunks++

		return nil
	}))

	require.Equal(t, 150000, total)
	require.Equal(t, 3, chunks)
	require.Equal(t, int64(150000), s.Position(), "iteration must not move the position")

	// errors from the callback propagate
	sentinel := io.ErrNoProgress
	require.ErrorIs(t, s.IterateChunks(func([]byte) error { return sentinel }), sentinel)
}

func TestToByteSlice(t *testing.T) {
	pool := newTestPool(t, bufpool.Options{})
	s := newTestStream(t, pool)

	data := make([]byte, 100000)
	for i := range data {
		data[i] = byte(3 * i)
	}

	_, err := s.Write(data)
	require.NoError(t, err)

	before := contiguousCopies.Snapshot()

	// position does not affect the copy.
	_, err = s.Seek(17, io.SeekStart)
	require.NoError(t, err)

	got, err := s.ToByteSlice()
	require.NoError(t, err)
	require.Equal(t, data, got)
	require.Equal(t, int64(17), s.Position())

	require.Equal(t, before+1, contiguousCopies.Snapshot())

	// the copy is fresh: mutating it does not affect the stream.
	got[0] ^= 0xFF

	again, err := s.ToByteSlice()
	require.NoError(t, err)
	require.Equal(t, data, again)
}
