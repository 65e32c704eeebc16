package memstream

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/kopia/memstream/internal/memsegment"
)

// DefaultCopyByteBudget is the number of bytes CopyToContext emits between
// cancellation checks when no budget is specified.
const DefaultCopyByteBudget = memsegment.Size

// WriteTo implements io.WriterTo. It emits the bytes between the current
// position and the length to w and advances the position by the number of
// bytes actually written.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	if s.closed {
		return 0, errors.Wrap(ErrClosed, "write to")
	}

	var written int64

	for s.pos < s.length {
		v := s.occupiedAt(s.pos)

		n, err := w.Write(v)
		written += int64(n)
		s.pos += int64(n)

		if err != nil {
			return written, errors.Wrap(err, "error writing to destination")
		}
	}

	return written, nil
}

// CopyToContext emits the bytes between the current position and the length
// to w, yielding to cancellation at segment boundaries or after byteBudget
// bytes, whichever comes first. On cancellation it returns the bytes written
// so far together with the context's error; the position reflects the bytes
// actually emitted. A non-positive byteBudget selects
// DefaultCopyByteBudget.
func (s *Stream) CopyToContext(ctx context.Context, w io.Writer, byteBudget int64) (int64, error) {
	if s.closed {
		return 0, errors.Wrap(ErrClosed, "copy to")
	}

	if byteBudget <= 0 {
		byteBudget = DefaultCopyByteBudget
	}

	var written int64

	for s.pos < s.length {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		v := s.occupiedAt(s.pos)
		if int64(len(v)) > byteBudget {
			v = v[:byteBudget]
		}

		n, err := w.Write(v)
		written += int64(n)
		s.pos += int64(n)

		if err != nil {
			return written, errors.Wrap(err, "error writing to destination")
		}
	}

	return written, nil
}

// ToByteSlice returns a freshly-allocated contiguous copy of the stream's
// contents. The allocation is observable: it bypasses the pools entirely, so
// an event is emitted to let callers audit unintended use.
func (s *Stream) ToByteSlice() ([]byte, error) {
	if s.closed {
		return nil, errors.Wrap(ErrClosed, "to byte slice")
	}

	b := make([]byte, s.length)
	s.readAt(b, 0)

	contiguousCopies.Add(1)
	s.log.Debugw("contiguous-copy", "id", s.id, "size", s.length)

	return b, nil
}

// IterateChunks invokes fn over the stream's occupied storage in order,
// without copying and without moving the position. The callback must not
// retain the slice past its return; the storage may be recycled when the
// stream is closed.
func (s *Stream) IterateChunks(fn func(b []byte) error) error {
	if s.closed {
		return errors.Wrap(ErrClosed, "iterate chunks")
	}

	for off := int64(0); off < s.length; {
		v := s.occupiedAt(off)

		if err := fn(v); err != nil {
			return err
		}

		off += int64(len(v))
	}

	return nil
}

// occupiedAt returns the occupied storage view starting at off and clamped
// to the logical length.
func (s *Stream) occupiedAt(off int64) []byte {
	v := s.storageAt(off)
	if rem := s.length - off; int64(len(v)) > rem {
		v = v[:rem]
	}

	return v
}
