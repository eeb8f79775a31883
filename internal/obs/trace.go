package obs

import (
	"sync/atomic"
	"time"
)

// CycleIDs hands out monotonically increasing ids, one per maker cycle, so
// log lines and journal rows of the same cycle can be joined.
type CycleIDs struct {
	next uint64
}

// NewCycleIDs returns a generator seeded with the given value.
func NewCycleIDs(seed uint64) *CycleIDs {
	if seed == 0 {
		seed = uint64(time.Now().UTC().UnixNano())
	}
	return &CycleIDs{next: seed}
}

// Next returns the next cycle id.
func (g *CycleIDs) Next() uint64 {
	if g == nil {
		return 0
	}
	return atomic.AddUint64(&g.next, 1)
}
