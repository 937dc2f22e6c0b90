package registry

import "math"

// Allocator hands out server IDs from a counter. IDs below FirstUserID are
// reserved for system servers and never produced here.
//
// The counter is kept as a uint32 so that it can sit one past the largest
// ServerID; at that point the space is used up.
type Allocator struct {
	next uint32
}

const counterLimit = uint32(math.MaxInt32) + 1

func NewAllocator(next uint32) Allocator {
	if next < uint32(FirstUserID) {
		next = uint32(FirstUserID)
	}
	if next > counterLimit {
		next = counterLimit
	}
	return Allocator{next: next}
}

// Next returns the counter and advances it. It fails rather than wrap into
// negative or reserved IDs.
func (a *Allocator) Next() (ServerID, error) {
	if a.next >= counterLimit {
		return NoServerID, ErrIDSpaceExhausted
	}
	id := ServerID(a.next)
	a.next++
	return id, nil
}

// Counter is the value the next call to Next would return, or one past the
// largest ID when the space is exhausted.
func (a *Allocator) Counter() uint32 { return a.next }

// Observe moves the counter past an explicitly assigned ID so the two never
// collide.
func (a *Allocator) Observe(id ServerID) {
	if id < 0 || uint32(id) < a.next {
		return
	}
	a.next = uint32(id) + 1
}
