package bufpool

import (
	"sync"
	"sync/atomic"
	"time"

	"code.hybscloud.com/lfq"
	"code.hybscloud.com/spin"

	"github.com/kopia/memstream/internal/memsegment"
	"github.com/kopia/memstream/internal/metrics"
)

// retired is a region handed to the zeroing worker together with the
// freelist it must be inserted into once cleared.
type retired struct {
	region memsegment.Region
	list   *freeList
}

// maxIdleSpins is how many times the worker busy-polls an empty queue before
// parking on the wake channel.
const maxIdleSpins = 64

// zeroWorker is a single background goroutine that clears retired regions
// and only then inserts them into their originating freelists. A region in
// the queue is owned by the worker, so it can never be observed on a
// freelist with stale contents.
type zeroWorker struct {
	queue *lfq.MPSC[retired]

	wake chan struct{}
	done chan struct{}

	closed   atomic.Bool
	stopOnce sync.Once

	timeNow   func() time.Time
	fallbacks *metrics.CounterInt64
}

func newZeroWorker(queueSize int, timeNow func() time.Time, fallbacks *metrics.CounterInt64) *zeroWorker {
	w := &zeroWorker{
		queue:     lfq.NewMPSC[retired](queueSize),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		timeNow:   timeNow,
		fallbacks: fallbacks,
	}

	go w.run()

	return w
}

// enqueue hands the region to the background worker. It returns false when
// the queue is full or the worker has been stopped, in which case the caller
// must clear the region synchronously and insert it itself.
func (w *zeroWorker) enqueue(r retired) bool {
	if w.closed.Load() {
		return false
	}

	if err := w.queue.Enqueue(&r); err != nil {
		w.fallbacks.Add(1)
		return false
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}

	return true
}

func (w *zeroWorker) run() {
	sw := spin.Wait{}
	spins := 0

	for {
		it, err := w.queue.Dequeue()
		if err != nil {
			if spins < maxIdleSpins {
				sw.Once()
				spins++

				continue
			}

			sw = spin.Wait{}
			spins = 0

			select {
			case <-w.wake:
			case <-w.done:
				// in-flight entries are abandoned; zeroing is
				// best-effort, not a persistence guarantee.
				return
			}

			continue
		}

		spins = 0

		clear(it.region.Data)
		it.list.push(it.region, w.timeNow())
	}
}

// stop terminates the worker. Queued entries may be abandoned.
func (w *zeroWorker) stop() {
	w.stopOnce.Do(func() {
		w.closed.Store(true)
		close(w.done)
	})
}
