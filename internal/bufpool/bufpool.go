// Package bufpool implements the two-tier recycling buffer allocator behind
// expandable memory streams: a pool of fixed-size standard segments and a
// family of power-of-two small-buffer pools, with freelist recycling,
// optional background zeroing of retired buffers and periodic trimming of
// idle reserves.
package bufpool

import (
	"context"
	"math/bits"
	"time"

	"github.com/pkg/errors"

	"github.com/kopia/memstream/internal/clock"
	"github.com/kopia/memstream/internal/memsegment"
	"github.com/kopia/memstream/internal/metrics"
	"github.com/kopia/memstream/logging"
)

// ZeroPolicy is the discipline by which retired buffers are overwritten with
// zeroes before they become available for reuse.
type ZeroPolicy int

const (
	// ZeroNone returns retired buffers to the freelist as-is.
	ZeroNone ZeroPolicy = iota

	// ZeroBackground hands retired buffers to a background worker; the
	// buffer only appears on the freelist after it has been cleared.
	ZeroBackground

	// ZeroOnRelease clears retired buffers synchronously on the releasing
	// goroutine before inserting them into the freelist.
	ZeroOnRelease
)

const (
	// MinSmall is the smallest small-buffer class.
	MinSmall = 128

	// MaxSmall is the largest small-buffer class. Streams that outgrow it
	// promote to chained segments, which keeps the small pool bounded.
	MaxSmall = memsegment.Size / 2

	numSmallClasses = 9 // 128 B .. 32 KiB, powers of two

	defaultZeroQueueSize = 512
)

// SmallClassSize returns the buffer size of the given small class.
func SmallClassSize(class int) int {
	return MinSmall << class
}

// SmallClassFor returns the index of the smallest class whose buffers hold at
// least n bytes. n must be in [0, MaxSmall].
func SmallClassFor(n int) int {
	if n <= MinSmall {
		return 0
	}

	return bits.Len(uint(n-1)) - bits.Len(MinSmall) + 1
}

// Options configures a Pool.
type Options struct {
	// Source provides segment storage. Defaults to the managed source.
	Source memsegment.Source

	// MetricsRegistry receives pool counters and gauges; nil disables them.
	MetricsRegistry *metrics.Registry

	// ZeroQueueSize bounds the background zeroing queue.
	ZeroQueueSize int

	TrimInterval      time.Duration
	TrimIdleThreshold time.Duration

	// DisableTrimmer prevents the background trim goroutine from starting;
	// TrimIdle can still be invoked manually.
	DisableTrimmer bool

	// TimeNow overrides the pool's clock.
	TimeNow func() time.Time
}

// Pool is the two-tier allocator. All methods are safe for concurrent use.
type Pool struct {
	source      memsegment.Source
	smallSource memsegment.Source

	timeNow func() time.Time
	log     logging.Logger

	segments freeList
	smalls   [numSmallClasses]freeList

	zw *zeroWorker
	tr *trimmer

	segmentsHeldManaged *metrics.GaugeInt64
	segmentsHeldNative  *metrics.GaugeInt64
	smallHeld           *metrics.GaugeInt64
	segmentAllocs       *metrics.CounterInt64
	segmentReleases     *metrics.CounterInt64
	smallAllocs         *metrics.CounterInt64
	smallReleases       *metrics.CounterInt64
	zeroFallbacks       *metrics.CounterInt64
}

// New creates a pool. The pool owns a background zeroing worker and, unless
// disabled, a background trimmer; Close stops both.
func New(ctx context.Context, opt Options) *Pool {
	if opt.Source == nil {
		opt.Source = memsegment.NewSource(memsegment.SourceManaged)
	}

	if opt.ZeroQueueSize <= 0 {
		opt.ZeroQueueSize = defaultZeroQueueSize
	}

	if opt.TrimInterval <= 0 {
		opt.TrimInterval = defaultTrimInterval
	}

	if opt.TrimIdleThreshold <= 0 {
		opt.TrimIdleThreshold = defaultTrimIdleThreshold
	}

	if opt.TimeNow == nil {
		opt.TimeNow = clock.Now
	}

	mr := opt.MetricsRegistry

	p := &Pool{
		source:      opt.Source,
		smallSource: memsegment.NewSource(memsegment.SourceManaged),
		timeNow:     opt.TimeNow,
		log:         logging.Module("memstream/bufpool")(ctx),

		segmentsHeldManaged: mr.GaugeInt64("segments_held", "Number of segments currently held by the pool and its streams", map[string]string{"source": "managed"}),
		segmentsHeldNative:  mr.GaugeInt64("segments_held", "Number of segments currently held by the pool and its streams", map[string]string{"source": "native"}),
		smallHeld:           mr.GaugeInt64("small_buffers_held", "Number of small buffers currently held by the pool and its streams", nil),
		segmentAllocs:       mr.CounterInt64("segment_allocs", "Number of segments allocated from the segment source", nil),
		segmentReleases:     mr.CounterInt64("segment_releases", "Number of segments released back to the segment source", nil),
		smallAllocs:         mr.CounterInt64("small_allocs", "Number of small buffers allocated", nil),
		smallReleases:       mr.CounterInt64("small_releases", "Number of small buffers released", nil),
		zeroFallbacks:       mr.CounterInt64("zeroing_fallbacks", "Number of times the zeroing queue overflowed and the buffer was cleared synchronously", nil),
	}

	p.zw = newZeroWorker(opt.ZeroQueueSize, p.timeNow, p.zeroFallbacks)

	if !opt.DisableTrimmer {
		p.tr = startTrimmer(p, opt.TrimInterval, opt.TrimIdleThreshold)
	}

	return p
}

// AcquireSegment obtains one standard segment of memsegment.Size bytes.
// Contents are all-zero unless the pool is operating with ZeroNone releases.
func (p *Pool) AcquireSegment() (memsegment.Region, error) {
	p.segments.noteOutstanding(1)

	if r, ok := p.segments.pop(); ok {
		return r, nil
	}

	r, err := p.source.Alloc(memsegment.Size)
	if err != nil {
		p.segments.noteOutstanding(-1)
		return memsegment.Region{}, errors.Wrap(err, "segment source")
	}

	p.segmentAllocs.Add(1)
	p.segmentsHeld(r.Kind).Add(1)
	p.log.Debugw("allocated segment", "size", memsegment.Size, "source", r.Kind.String())

	return r, nil
}

// ReleaseSegment retires a segment under the given policy. Once this method
// returns the caller must no longer touch the region.
func (p *Pool) ReleaseSegment(r memsegment.Region, policy ZeroPolicy) {
	p.segments.noteOutstanding(-1)
	p.retire(r, &p.segments, policy)
}

// AcquireSmall obtains a small buffer of the smallest class that holds n
// bytes. n must not exceed MaxSmall.
func (p *Pool) AcquireSmall(n int) (memsegment.Region, error) {
	if n > MaxSmall {
		return memsegment.Region{}, errors.Errorf("small buffer request of %v exceeds %v", n, MaxSmall)
	}

	class := SmallClassFor(n)
	fl := &p.smalls[class]

	fl.noteOutstanding(1)

	if r, ok := fl.pop(); ok {
		return r, nil
	}

	r, err := p.smallSource.Alloc(SmallClassSize(class))
	if err != nil {
		fl.noteOutstanding(-1)
		return memsegment.Region{}, errors.Wrap(err, "small buffer source")
	}

	p.smallAllocs.Add(1)
	p.smallHeld.Add(1)
	p.log.Debugw("allocated small buffer", "size", SmallClassSize(class))

	return r, nil
}

// ReleaseSmall retires a small buffer under the given policy.
func (p *Pool) ReleaseSmall(r memsegment.Region, policy ZeroPolicy) {
	fl := &p.smalls[SmallClassFor(len(r.Data))]

	fl.noteOutstanding(-1)
	p.retire(r, fl, policy)
}

func (p *Pool) retire(r memsegment.Region, fl *freeList, policy ZeroPolicy) {
	switch policy {
	case ZeroBackground:
		if p.zw.enqueue(retired{region: r, list: fl}) {
			return
		}

		// queue full, clear on the releasing goroutine instead so
		// that stale contents can never be observed by an acquirer.
		clear(r.Data)

	case ZeroOnRelease:
		clear(r.Data)

	case ZeroNone:
	}

	fl.push(r, p.timeNow())
}

// TrimIdle releases excess idle freelist entries back to their sources. It
// normally runs on the trimmer's schedule but may be invoked directly.
func (p *Pool) TrimIdle(now time.Time) {
	for _, r := range p.segments.trim(now, p.trimIdleThreshold()) {
		p.releaseToSource(r)
	}

	for i := range p.smalls {
		for _, r := range p.smalls[i].trim(now, p.trimIdleThreshold()) {
			p.releaseSmallToSource(r)
		}
	}
}

func (p *Pool) trimIdleThreshold() time.Duration {
	if p.tr != nil {
		return p.tr.idleThreshold
	}

	return defaultTrimIdleThreshold
}

// ReleaseAllFree immediately returns every free entry in every freelist to
// its source. Buffers held by streams or in transit to the zeroing worker
// are unaffected.
func (p *Pool) ReleaseAllFree() {
	for _, r := range p.segments.drain() {
		p.releaseToSource(r)
	}

	for i := range p.smalls {
		for _, r := range p.smalls[i].drain() {
			p.releaseSmallToSource(r)
		}
	}
}

func (p *Pool) releaseToSource(r memsegment.Region) {
	kind := r.Kind

	if err := p.source.Release(r); err != nil {
		p.log.Warnw("unable to release segment", "err", err)
	}

	p.segmentReleases.Add(1)
	p.segmentsHeld(kind).Add(-1)
	p.log.Debugw("released segment", "size", memsegment.Size, "source", kind.String())
}

func (p *Pool) releaseSmallToSource(r memsegment.Region) {
	if err := p.smallSource.Release(r); err != nil {
		p.log.Warnw("unable to release small buffer", "err", err)
	}

	p.smallReleases.Add(1)
	p.smallHeld.Add(-1)
	p.log.Debugw("released small buffer", "size", len(r.Data))
}

func (p *Pool) segmentsHeld(kind memsegment.SourceKind) *metrics.GaugeInt64 {
	if kind == memsegment.SourceNative {
		return p.segmentsHeldNative
	}

	return p.segmentsHeldManaged
}

// Stats is a point-in-time snapshot of pool occupancy.
type Stats struct {
	FreeSegments       int
	FreeSmallByClass   [numSmallClasses]int
	SegmentsHeld       int64
	SmallBuffersHeld   int64
	ZeroQueueFallbacks int64
}

// Stats returns a snapshot of pool occupancy.
func (p *Pool) Stats() Stats {
	s := Stats{
		FreeSegments:       p.segments.freeCount(),
		SegmentsHeld:       p.segmentsHeldManaged.Snapshot(false) + p.segmentsHeldNative.Snapshot(false),
		SmallBuffersHeld:   p.smallHeld.Snapshot(false),
		ZeroQueueFallbacks: p.zeroFallbacks.Snapshot(),
	}

	for i := range p.smalls {
		s.FreeSmallByClass[i] = p.smalls[i].freeCount()
	}

	return s
}

// Close stops the pool's background goroutines. Buffers queued for zeroing
// may be abandoned.
func (p *Pool) Close() {
	if p.tr != nil {
		p.tr.shutdown()
	}

	p.zw.stop()
}
