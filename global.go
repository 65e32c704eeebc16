package memstream

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/kopia/memstream/internal/bufpool"
	"github.com/kopia/memstream/internal/memsegment"
	"github.com/kopia/memstream/internal/metrics"
	"github.com/kopia/memstream/internal/releasable"
	"github.com/kopia/memstream/logging"
)

// SegmentSource selects the raw-memory provider for segment storage.
type SegmentSource int

const (
	// SegmentSourceManaged allocates segments from the Go heap.
	SegmentSourceManaged SegmentSource = iota

	// SegmentSourceNative allocates segments from the operating system via
	// anonymous memory mappings.
	SegmentSourceNative
)

const streamItemKind releasable.ItemKind = "memory-stream"

//nolint:gochecknoglobals
var global = struct {
	mu sync.Mutex

	// +checklocks:mu
	sourceKind SegmentSource
	// +checklocks:mu
	sourceLatched bool
	// +checklocks:mu
	defaults streamOptions
	// +checklocks:mu
	defaultsLatched bool
	// +checklocks:mu
	pool *bufpool.Pool
}{
	defaults: streamOptions{zeroPolicy: ZeroPolicyBackground},
}

//nolint:gochecknoglobals
var (
	metricsRegistry = metrics.NewRegistry()

	liveStreams      = metricsRegistry.GaugeInt64("live_streams", "Number of open streams", nil)
	contiguousCopies = metricsRegistry.CounterInt64("contiguous_copies", "Number of freshly-allocated contiguous copies produced by ToByteSlice", nil)

	nextStreamID atomic.Int64
)

// SetSegmentSource selects the segment source for the process. It may be
// called at most once, before any stream is created; afterwards it fails
// with ErrSettingsLocked.
func SetSegmentSource(kind SegmentSource) error {
	if kind != SegmentSourceManaged && kind != SegmentSourceNative {
		return errors.Wrap(ErrOutOfRange, "invalid segment source")
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	if global.sourceLatched {
		return errors.Wrap(ErrSettingsLocked, "segment source already in use")
	}

	global.sourceKind = kind
	global.sourceLatched = true

	return nil
}

// SetDefaultOptions sets the options applied to streams that do not override
// them. It may be called at most once, before the first stream is created;
// afterwards it fails with ErrSettingsLocked.
func SetDefaultOptions(opts ...Option) error {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.defaultsLatched {
		return errors.Wrap(ErrSettingsLocked, "default options already in use")
	}

	d := global.defaults
	for _, o := range opts {
		o(&d)
	}

	if err := d.validate(); err != nil {
		return err
	}

	global.defaults = d
	global.defaultsLatched = true

	return nil
}

// ReleaseAllFreeBuffers immediately returns every free buffer in every
// freelist to the segment source. Open streams are unaffected; their buffers
// are recycled normally when they are closed.
func ReleaseAllFreeBuffers() {
	global.mu.Lock()
	p := global.pool
	global.mu.Unlock()

	if p != nil {
		p.ReleaseAllFree()
	}
}

// DumpStats logs the current pool and stream statistics through the logger
// associated with the provided context.
func DumpStats(ctx context.Context) {
	global.mu.Lock()
	p := global.pool
	global.mu.Unlock()

	log := logging.Module("memstream")(ctx)

	if p == nil {
		log.Debugw("memstream stats", "liveStreams", liveStreams.Snapshot(false))
		return
	}

	st := p.Stats()

	log.Debugw("memstream stats",
		"liveStreams", liveStreams.Snapshot(false),
		"segmentsHeld", st.SegmentsHeld,
		"freeSegments", st.FreeSegments,
		"smallBuffersHeld", st.SmallBuffersHeld,
		"zeroingFallbacks", st.ZeroQueueFallbacks,
		"contiguousCopies", contiguousCopies.Snapshot(),
	)
}

// defaultPool returns the process-wide pool, creating it on first use. Pool
// creation latches both one-shot globals.
func defaultPool(ctx context.Context) *bufpool.Pool {
	global.mu.Lock()
	defer global.mu.Unlock()

	if global.pool == nil {
		kind := memsegment.SourceManaged
		if global.sourceKind == SegmentSourceNative {
			kind = memsegment.SourceNative
		}

		global.pool = bufpool.New(ctx, bufpool.Options{
			Source:          memsegment.NewSource(kind),
			MetricsRegistry: metricsRegistry,
		})

		global.sourceLatched = true
	}

	global.defaultsLatched = true

	return global.pool
}

func globalDefaults() streamOptions {
	global.mu.Lock()
	defer global.mu.Unlock()

	return global.defaults
}
