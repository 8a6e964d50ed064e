// Package seqtrack implements the Sequence Tracker (C3): per-sender
// duplicate, out-of-order, and gap detection over a monotonically
// increasing sequence-number stream. The tracker never rejects traffic; it
// only observes and counts.
package seqtrack

import "sync"

// Status is the classification returned by Tracker.Check.
type Status int

const (
	Ok Status = iota
	Duplicate
	OutOfOrder
	Gap
)

func (s Status) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Duplicate:
		return "Duplicate"
	case OutOfOrder:
		return "OutOfOrder"
	case Gap:
		return "Gap"
	default:
		return "Unknown"
	}
}

// Result is the outcome of one Check call.
type Result struct {
	Status Status
	// Delta is set for OutOfOrder: how far behind "expected" the sequence was.
	Delta uint64
	// Missing is set for Gap: the inclusive range of sequence numbers skipped.
	Missing [2]uint64
}

// Counters tallies observations for a Tracker.
type Counters struct {
	Received, OutOfOrder, Duplicates, Gaps uint64
}

// Tracker holds the per-sender state: largest sequence seen, a recent-seen
// window for duplicate detection, and running counters.
type Tracker struct {
	mu          sync.Mutex
	started     bool
	expected    uint64 // next sequence number we have not yet seen
	highest     uint64 // largest sequence observed so far
	recentSeen  map[uint64]struct{}
	recentOrder []uint64
	counters    Counters
}

// windowSize bounds the recent-seen window used for duplicate detection.
const windowSize = 1024

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{recentSeen: make(map[uint64]struct{}, windowSize)}
}

// Check classifies seq against the tracker's current state and updates it.
func (t *Tracker) Check(seq uint64) Result {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters.Received++

	if !t.started {
		t.started = true
		t.expected = seq + 1
		t.highest = seq
		t.remember(seq)
		return Result{Status: Ok}
	}

	if _, dup := t.recentSeen[seq]; dup {
		t.counters.Duplicates++
		return Result{Status: Duplicate}
	}

	var res Result
	switch {
	case seq == t.expected:
		res = Result{Status: Ok}
	case seq < t.expected:
		res = Result{Status: OutOfOrder, Delta: t.expected - seq}
		t.counters.OutOfOrder++
	default: // seq > t.expected: a gap of [expected, seq-1]
		res = Result{Status: Gap, Missing: [2]uint64{t.expected, seq - 1}}
		t.counters.Gaps++
	}

	if seq > t.highest {
		t.highest = seq
	}
	if seq+1 > t.expected {
		t.expected = seq + 1
	}
	t.remember(seq)
	return res
}

// remember records seq in the recent-seen duplicate-detection window,
// evicting the oldest entry once the window is full.
func (t *Tracker) remember(seq uint64) {
	t.recentSeen[seq] = struct{}{}
	t.recentOrder = append(t.recentOrder, seq)
	if len(t.recentOrder) > windowSize {
		oldest := t.recentOrder[0]
		t.recentOrder = t.recentOrder[1:]
		delete(t.recentSeen, oldest)
	}
}

// Counters returns a snapshot of the tracker's running counters.
func (t *Tracker) Counters() Counters {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters
}

// Reset clears all tracker state.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started = false
	t.expected = 0
	t.highest = 0
	t.recentSeen = make(map[uint64]struct{}, windowSize)
	t.recentOrder = nil
	t.counters = Counters{}
}
