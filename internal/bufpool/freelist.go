package bufpool

import (
	"sync"
	"time"

	"github.com/kopia/memstream/internal/memsegment"
)

type freeEntry struct {
	region    memsegment.Region
	idleSince time.Time
}

// freeList is a LIFO list of retired regions of one size class. The last
// returned region is handed out first to maximize cache locality.
//
// The list tracks two high-water marks: highWaterMark is the largest number
// of free entries ever observed (recorded only; Stats does not report it),
// demandHighWater is a decaying
// maximum of the number of outstanding regions, used by the trimmer as the
// retention target for this class.
type freeList struct {
	mu sync.Mutex

	// +checklocks:mu
	entries []freeEntry
	// +checklocks:mu
	outstanding int
	// +checklocks:mu
	demandHighWater int
	// +checklocks:mu
	highWaterMark int
}

func (l *freeList) pop() (memsegment.Region, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if n == 0 {
		return memsegment.Region{}, false
	}

	e := l.entries[n-1]
	l.entries[n-1] = freeEntry{}
	l.entries = l.entries[:n-1]

	return e.region, true
}

func (l *freeList) push(r memsegment.Region, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, freeEntry{region: r, idleSince: now})

	if len(l.entries) > l.highWaterMark {
		l.highWaterMark = len(l.entries)
	}
}

// noteOutstanding adjusts the count of regions of this class currently held
// by streams and maintains the demand high-water mark.
func (l *freeList) noteOutstanding(delta int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.outstanding += delta

	if l.outstanding > l.demandHighWater {
		l.demandHighWater = l.outstanding
	}
}

func (l *freeList) freeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

// trim removes entries in excess of the demand high-water mark that have been
// idle longer than idleThreshold and decays the mark. The oldest entries sit
// at the bottom of the LIFO and are removed first. Removed regions are
// returned to the caller for release to their source.
func (l *freeList) trim(now time.Time, idleThreshold time.Duration) []memsegment.Region {
	l.mu.Lock()
	defer l.mu.Unlock()

	var trimmed []memsegment.Region

	target := l.demandHighWater

	for len(l.entries) > target && now.Sub(l.entries[0].idleSince) >= idleThreshold {
		trimmed = append(trimmed, l.entries[0].region)
		l.entries = l.entries[1:]
	}

	if next := l.demandHighWater * 3 / 4; next >= l.outstanding {
		l.demandHighWater = next
	} else {
		l.demandHighWater = l.outstanding
	}

	return trimmed
}

// drain removes and returns all free entries.
func (l *freeList) drain() []memsegment.Region {
	l.mu.Lock()
	defer l.mu.Unlock()

	regions := make([]memsegment.Region, 0, len(l.entries))
	for _, e := range l.entries {
		regions = append(regions, e.region)
	}

	l.entries = nil

	return regions
}
