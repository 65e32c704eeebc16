package memstream

import (
	"github.com/pkg/errors"

	"github.com/kopia/memstream/internal/bufpool"
	"github.com/kopia/memstream/internal/memsegment"
)

// storageAt returns the storage view starting at logical offset off and
// extending to the end of the containing block or segment. Callers must not
// ask for offsets at or beyond the current capacity.
func (s *Stream) storageAt(off int64) []byte {
	switch s.form {
	case formSmall:
		return s.small.Data[off:]
	case formChained:
		return s.chain[off/memsegment.Size].Data[off%memsegment.Size:]
	case formWrapped:
		return s.wrapped[off:]
	default:
		return nil
	}
}

func (s *Stream) readAt(p []byte, off int64) {
	for len(p) > 0 {
		n := copy(p, s.storageAt(off))
		p = p[n:]
		off += int64(n)
	}
}

func (s *Stream) writeAt(p []byte, off int64) {
	for len(p) > 0 {
		n := copy(s.storageAt(off), p)
		p = p[n:]
		off += int64(n)
	}
}

func (s *Stream) zeroRange(from, to int64) {
	for from < to {
		v := s.storageAt(from)
		if int64(len(v)) > to-from {
			v = v[:to-from]
		}

		clear(v)

		from += int64(len(v))
	}
}

// ensureCapacity grows the backing storage so that at least target bytes fit.
// All storage needed for the growth is acquired before any stream state is
// mutated, so an allocation failure leaves the stream exactly as it was.
func (s *Stream) ensureCapacity(target int64) error {
	if target <= s.Capacity() {
		return nil
	}

	if target > s.maxStreamLength() {
		return errors.Wrap(ErrStreamTooLong, "grow")
	}

	switch s.form {
	case formWrapped:
		return errors.Wrap(ErrStreamTooLong, "write beyond wrapped buffer")

	case formEmpty:
		if target <= bufpool.MaxSmall {
			r, err := s.pool.AcquireSmall(int(target))
			if err != nil {
				return errors.Wrapf(ErrOutOfMemory, "acquiring small buffer: %v", err)
			}

			s.small = r
			s.form = formSmall

			break
		}

		segs, err := s.acquireSegments(ceilDiv(target, memsegment.Size))
		if err != nil {
			return err
		}

		s.chain = segs
		s.form = formChained

	case formSmall:
		if target <= bufpool.MaxSmall {
			// grow to a bigger small class.
			r, err := s.pool.AcquireSmall(int(target))
			if err != nil {
				return errors.Wrapf(ErrOutOfMemory, "acquiring small buffer: %v", err)
			}

			copy(r.Data, s.small.Data[:s.length])
			s.pool.ReleaseSmall(s.small, s.zeroPolicy())
			s.small = r

			break
		}

		// promote to chained: the used prefix of the small block always
		// fits in the head segment.
		segs, err := s.acquireSegments(ceilDiv(target, memsegment.Size))
		if err != nil {
			return err
		}

		copy(segs[0].Data, s.small.Data[:s.length])
		s.pool.ReleaseSmall(s.small, s.zeroPolicy())
		s.small = memsegment.Region{}
		s.chain = segs
		s.form = formChained

	case formChained:
		add, err := s.acquireSegments(ceilDiv(target, memsegment.Size) - int64(len(s.chain)))
		if err != nil {
			return err
		}

		s.chain = append(s.chain, add...)
	}

	s.log.Debugw("capacity-expand", "id", s.id, "form", s.form.String(), "capacity", s.Capacity())

	return nil
}

// acquireSegments obtains n segments, all-or-nothing. On failure the
// already-acquired segments are returned under the stream's zero policy.
func (s *Stream) acquireSegments(n int64) ([]memsegment.Region, error) {
	if n <= 0 {
		return nil, nil
	}

	segs := make([]memsegment.Region, 0, n)

	for range n {
		r, err := s.pool.AcquireSegment()
		if err != nil {
			for _, a := range segs {
				s.pool.ReleaseSegment(a, s.zeroPolicy())
			}

			return nil, errors.Wrapf(ErrOutOfMemory, "acquiring segment: %v", err)
		}

		segs = append(segs, r)
	}

	return segs, nil
}

// shrinkCapacity reduces the backing storage while still covering n bytes: a
// chained stream drops its trailing segments (it is not demoted to a small
// block), a small stream moves to a smaller class, and n == 0 releases all
// storage. The caller guarantees s.length <= n < s.Capacity().
func (s *Stream) shrinkCapacity(n int64) {
	switch s.form {
	case formChained:
		want := ceilDiv(n, memsegment.Size)

		if want == 0 {
			s.releaseStorage()
			break
		}

		for _, r := range s.chain[want:] {
			s.pool.ReleaseSegment(r, s.zeroPolicy())
		}

		s.chain = s.chain[:want]

	case formSmall:
		if n == 0 && s.length == 0 {
			s.releaseStorage()
			break
		}

		if bufpool.SmallClassSize(bufpool.SmallClassFor(int(n))) >= len(s.small.Data) {
			return
		}

		r, err := s.pool.AcquireSmall(int(n))
		if err != nil {
			// shrinking is advisory; keep the larger block.
			return
		}

		copy(r.Data, s.small.Data[:s.length])
		s.pool.ReleaseSmall(s.small, s.zeroPolicy())
		s.small = r

	default:
		return
	}

	// bytes that remain allocated past the logical length are cleared
	// under the clearing policies, like any other retired bytes.
	if s.opts.zeroPolicy != ZeroPolicyNone && s.form != formEmpty {
		s.zeroRange(s.length, s.Capacity())
	}

	s.log.Debugw("capacity-reduce", "id", s.id, "form", s.form.String(), "capacity", s.Capacity())
}

// releaseStorage returns all backing storage to the pools under the stream's
// zero policy and leaves the stream in the empty form.
func (s *Stream) releaseStorage() {
	switch s.form {
	case formSmall:
		s.pool.ReleaseSmall(s.small, s.zeroPolicy())
		s.small = memsegment.Region{}

	case formChained:
		for _, r := range s.chain {
			s.pool.ReleaseSegment(r, s.zeroPolicy())
		}

		s.chain = nil

	case formWrapped:
		s.wrapped = nil
	}

	s.form = formEmpty
}

func (s *Stream) zeroPolicy() bufpool.ZeroPolicy {
	return s.opts.zeroPolicy.toPool()
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
