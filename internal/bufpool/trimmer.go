package bufpool

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/kopia/memstream/internal/clock"
)

const (
	defaultTrimInterval      = time.Minute
	defaultTrimIdleThreshold = 90 * time.Second
)

// trimmer periodically releases excess idle freelist entries back to the
// segment source. The schedule is jittered so that many processes sharing a
// host do not trim in lockstep.
type trimmer struct {
	pool *Pool

	interval      time.Duration
	idleThreshold time.Duration

	cancel context.CancelFunc
}

func startTrimmer(p *Pool, interval, idleThreshold time.Duration) *trimmer {
	ctx, cancel := context.WithCancel(context.Background())

	t := &trimmer{
		pool:          p,
		interval:      interval,
		idleThreshold: idleThreshold,
		cancel:        cancel,
	}

	go t.run(ctx)

	return t
}

func (t *trimmer) run(ctx context.Context) {
	for clock.SleepInterruptibly(ctx, t.jittered()) {
		t.pool.TrimIdle(t.pool.timeNow())
	}
}

// jittered returns the configured interval +/- 25%.
func (t *trimmer) jittered() time.Duration {
	half := t.interval / 2

	return t.interval*3/4 + rand.N(half)
}

func (t *trimmer) shutdown() {
	t.cancel()
}
