package memstream

import (
	"github.com/pkg/errors"

	"github.com/kopia/memstream/internal/bufpool"
)

// ZeroPolicy is the discipline by which a stream's retired buffers are
// overwritten with zeroes before they become available for reuse by other
// streams.
type ZeroPolicy int

const (
	// ZeroPolicyNone recycles retired buffers without clearing them.
	ZeroPolicyNone ZeroPolicy = iota

	// ZeroPolicyBackground clears retired buffers asynchronously; a buffer
	// is not acquirable until it has been cleared. This is the default.
	ZeroPolicyBackground

	// ZeroPolicyOnRelease clears retired buffers synchronously on the
	// releasing goroutine.
	ZeroPolicyOnRelease
)

func (p ZeroPolicy) String() string {
	switch p {
	case ZeroPolicyNone:
		return "none"
	case ZeroPolicyBackground:
		return "background"
	case ZeroPolicyOnRelease:
		return "on-release"
	default:
		return "invalid"
	}
}

func (p ZeroPolicy) isValid() bool {
	return p >= ZeroPolicyNone && p <= ZeroPolicyOnRelease
}

func (p ZeroPolicy) toPool() bufpool.ZeroPolicy {
	switch p {
	case ZeroPolicyBackground:
		return bufpool.ZeroBackground
	case ZeroPolicyOnRelease:
		return bufpool.ZeroOnRelease
	default:
		return bufpool.ZeroNone
	}
}

type streamOptions struct {
	initialCapacity int64
	maxCapacity     int64
	zeroPolicy      ZeroPolicy
	name            string
}

// Option modifies the configuration of a single stream.
type Option func(*streamOptions)

// WithCapacity sets the initial capacity hint. The hint may be exceeded by
// subsequent writes.
func WithCapacity(n int64) Option {
	return func(o *streamOptions) {
		o.initialCapacity = n
	}
}

// WithMaxCapacity bounds the stream's capacity, length and position. Writes
// and seeks beyond the bound fail with ErrStreamTooLong. Zero means no bound.
func WithMaxCapacity(n int64) Option {
	return func(o *streamOptions) {
		o.maxCapacity = n
	}
}

// WithZeroPolicy sets the stream's zero-buffer policy.
func WithZeroPolicy(p ZeroPolicy) Option {
	return func(o *streamOptions) {
		o.zeroPolicy = p
	}
}

// WithName attaches a name to the stream, used in log events only.
func WithName(name string) Option {
	return func(o *streamOptions) {
		o.name = name
	}
}

func (o *streamOptions) validate() error {
	if o.initialCapacity < 0 || o.maxCapacity < 0 {
		return errors.Wrap(ErrOutOfRange, "capacity must be non-negative")
	}

	if !o.zeroPolicy.isValid() {
		return errors.Wrap(ErrOutOfRange, "invalid zero policy")
	}

	if o.maxCapacity > 0 && o.initialCapacity > o.maxCapacity {
		return errors.Wrap(ErrStreamTooLong, "initial capacity exceeds maximum capacity")
	}

	return nil
}
