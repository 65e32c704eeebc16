package memstream

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/kopia/memstream/internal/bufpool"
	"github.com/kopia/memstream/internal/memsegment"
	"github.com/kopia/memstream/internal/releasable"
	"github.com/kopia/memstream/logging"
)

type storageForm int

const (
	formEmpty storageForm = iota
	formSmall
	formChained
	formWrapped
)

func (f storageForm) String() string {
	switch f {
	case formEmpty:
		return "empty"
	case formSmall:
		return "small"
	case formChained:
		return "chained"
	case formWrapped:
		return "wrapped"
	default:
		return "unknown"
	}
}

// Stream is an in-memory byte stream whose backing storage is drawn from
// recycling buffer pools. Small streams live in a single pooled block; larger
// streams are backed by a chain of fixed-size segments, which makes growth
// cheap and keeps large allocations uniform.
//
// A Stream must not be used concurrently from multiple goroutines. The pools
// behind it are safe for any number of concurrent streams.
type Stream struct {
	id   int64
	opts streamOptions
	pool *bufpool.Pool
	log  logging.Logger

	form  storageForm
	small memsegment.Region
	chain []memsegment.Region

	wrapped    []byte
	exportable bool

	length int64
	pos    int64
	closed bool
}

var (
	_ io.Reader   = (*Stream)(nil)
	_ io.Writer   = (*Stream)(nil)
	_ io.Seeker   = (*Stream)(nil)
	_ io.WriterTo = (*Stream)(nil)
	_ io.Closer   = (*Stream)(nil)
)

// New creates an expandable stream.
func New(ctx context.Context, opts ...Option) (*Stream, error) {
	o := globalDefaults()
	for _, opt := range opts {
		opt(&o)
	}

	if err := o.validate(); err != nil {
		return nil, err
	}

	s := newStream(ctx, defaultPool(ctx), o)

	if o.initialCapacity > 0 {
		if err := s.ensureCapacity(o.initialCapacity); err != nil {
			s.Close() //nolint:errcheck
			return nil, err
		}
	}

	return s, nil
}

func newStream(ctx context.Context, pool *bufpool.Pool, o streamOptions) *Stream {
	s := &Stream{
		id:   nextStreamID.Add(1),
		opts: o,
		pool: pool,
		log:  logging.Module("memstream")(ctx),
	}

	liveStreams.Add(1)
	releasable.Created(streamItemKind, s.id)

	s.log.Debugw("created", "id", s.id, "name", o.name, "zeroPolicy", o.zeroPolicy.String())

	return s
}

// Length returns the logical length of the stream.
func (s *Stream) Length() int64 {
	return s.length
}

// Capacity returns the size of the storage currently backing the stream.
func (s *Stream) Capacity() int64 {
	switch s.form {
	case formSmall:
		return int64(len(s.small.Data))
	case formChained:
		return int64(len(s.chain)) * memsegment.Size
	case formWrapped:
		return int64(len(s.wrapped))
	default:
		return 0
	}
}

// Position returns the current stream position.
func (s *Stream) Position() int64 {
	return s.pos
}

// SetPosition sets the stream position. The position may exceed the current
// length; a subsequent write zero-fills the gap.
func (s *Stream) SetPosition(p int64) error {
	if s.closed {
		return errors.Wrap(ErrClosed, "set position")
	}

	if p < 0 {
		return errors.Wrap(ErrSeekBeforeBegin, "set position")
	}

	if p > s.maxStreamLength() {
		return errors.Wrap(ErrStreamTooLong, "set position")
	}

	s.pos = p

	return nil
}

// Seek implements io.Seeker.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if s.closed {
		return 0, errors.Wrap(ErrClosed, "seek")
	}

	var base int64

	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = s.pos
	case io.SeekEnd:
		base = s.length
	default:
		return 0, errors.Wrap(ErrOutOfRange, "invalid seek origin")
	}

	np := base + offset

	if np < 0 {
		return 0, errors.Wrap(ErrSeekBeforeBegin, "seek")
	}

	if np > s.maxStreamLength() {
		return 0, errors.Wrap(ErrStreamTooLong, "seek")
	}

	s.pos = np

	return np, nil
}

// Read implements io.Reader. It copies up to len(p) bytes starting at the
// current position and advances the position. At end of stream it returns
// (0, io.EOF).
func (s *Stream) Read(p []byte) (int, error) {
	if s.closed {
		return 0, errors.Wrap(ErrClosed, "read")
	}

	if len(p) == 0 {
		return 0, nil
	}

	avail := s.length - s.pos
	if avail <= 0 {
		return 0, io.EOF
	}

	n := int64(len(p))
	if n > avail {
		n = avail
	}

	s.readAt(p[:n], s.pos)
	s.pos += n

	return int(n), nil
}

// Write implements io.Writer. Writing past the current capacity grows the
// stream; writing past the current length extends it. Writing at a position
// beyond the length zero-fills the gap first.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, errors.Wrap(ErrClosed, "write")
	}

	if len(p) == 0 {
		return 0, nil
	}

	m := int64(len(p))

	if s.pos > math.MaxInt64-m {
		return 0, errors.Wrap(ErrStreamTooLong, "write")
	}

	end := s.pos + m

	if end > s.maxStreamLength() {
		return 0, errors.Wrap(ErrStreamTooLong, "write")
	}

	if end > s.Capacity() {
		if err := s.ensureCapacity(end); err != nil {
			return 0, err
		}
	}

	if s.pos > s.length {
		// the gap is stream content and is zeroed regardless of the
		// zero-buffer policy.
		s.zeroRange(s.length, s.pos)
	}

	s.writeAt(p, s.pos)
	s.pos = end

	if end > s.length {
		s.length = end
	}

	return len(p), nil
}

// SetLength sets the logical length. Growing zero-fills the new bytes.
// Shrinking does not release storage; use SetCapacity to reclaim.
func (s *Stream) SetLength(n int64) error {
	if s.closed {
		return errors.Wrap(ErrClosed, "set length")
	}

	if n < 0 {
		return errors.Wrap(ErrOutOfRange, "length must be non-negative")
	}

	if n > s.maxStreamLength() {
		return errors.Wrap(ErrStreamTooLong, "set length")
	}

	if n == s.length {
		return nil
	}

	if n > s.Capacity() {
		if err := s.ensureCapacity(n); err != nil {
			return err
		}
	}

	if n > s.length {
		s.zeroRange(s.length, n)
	}

	s.length = n

	return nil
}

// SetCapacity grows or shrinks the backing storage. The resulting capacity
// is at least n (rounded up to the storage granularity). Setting capacity
// below the current length fails.
func (s *Stream) SetCapacity(n int64) error {
	if s.closed {
		return errors.Wrap(ErrClosed, "set capacity")
	}

	if n < 0 {
		return errors.Wrap(ErrOutOfRange, "capacity must be non-negative")
	}

	if n < s.length {
		return errors.Wrap(ErrCapacityBelowLength, "set capacity")
	}

	if n > s.maxStreamLength() {
		return errors.Wrap(ErrStreamTooLong, "set capacity")
	}

	if s.form == formWrapped {
		if n == int64(len(s.wrapped)) {
			return nil
		}

		return errors.Wrap(ErrUnsupportedInMode, "cannot resize a wrapped stream")
	}

	switch cur := s.Capacity(); {
	case n == cur:
		return nil
	case n > cur:
		return s.ensureCapacity(n)
	default:
		s.shrinkCapacity(n)
		return nil
	}
}

// Close releases the stream's storage back to the pools under the stream's
// zero policy and marks the stream closed. Close is idempotent.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}

	s.closed = true
	s.releaseStorage()

	liveStreams.Add(-1)
	releasable.Released(streamItemKind, s.id)

	s.log.Debugw("closed", "id", s.id)

	return nil
}

// Reset truncates the stream to zero length and releases its storage, leaving
// the stream open and empty.
func (s *Stream) Reset() error {
	if s.closed {
		return errors.Wrap(ErrClosed, "reset")
	}

	s.releaseStorage()
	s.length = 0
	s.pos = 0

	return nil
}

func (s *Stream) String() string {
	return fmt.Sprintf("memstream(id=%v form=%v len=%v cap=%v)", s.id, s.form, s.length, s.Capacity())
}

func (s *Stream) maxStreamLength() int64 {
	if s.opts.maxCapacity > 0 {
		return s.opts.maxCapacity
	}

	return math.MaxInt64
}
