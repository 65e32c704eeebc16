package memstream

import (
	"context"

	"github.com/pkg/errors"
)

// NewWrapping creates a fixed-mode stream over a caller-supplied buffer. The
// capacity is fixed at len(buf) and no pool storage is ever acquired; writes
// beyond the buffer fail with ErrStreamTooLong. The initial length is
// len(buf) and the position is 0.
//
// UnderlyingBuffer is permitted only when exportable is true.
func NewWrapping(ctx context.Context, buf []byte, exportable bool) *Stream {
	s := newStream(ctx, nil, streamOptions{zeroPolicy: ZeroPolicyNone})

	s.form = formWrapped
	s.wrapped = buf
	s.exportable = exportable
	s.length = int64(len(buf))

	return s
}

// UnderlyingBuffer returns the buffer the stream was created over. It fails
// with ErrUnsupportedInMode on expandable streams and on wrapped streams that
// did not opt into exposing their buffer.
func (s *Stream) UnderlyingBuffer() ([]byte, error) {
	if s.closed {
		return nil, errors.Wrap(ErrClosed, "underlying buffer")
	}

	if s.form != formWrapped || !s.exportable {
		return nil, errors.Wrap(ErrUnsupportedInMode, "underlying buffer is not exposed")
	}

	return s.wrapped, nil
}
