// Package progress converts byte-level progress across many tasks and
// phases into a single monotonic percentage for external reporting.
//
// The Tracker is the only concurrently mutated state in the engine. All
// counters are atomic; one mutex guards the last-emit timestamp used to
// throttle outbound events.
package progress

import (
	"sync"
	"sync/atomic"
	"time"
)

// Phase labels the coarse stage of a batch.
type Phase string

const (
	PhaseCalculating Phase = "calculating"
	PhaseInstalling  Phase = "installing"
	PhaseVerifying   Phase = "verifying"
	PhaseFinalizing  Phase = "finalizing"
)

// Event is one progress report emitted to a Sink.
type Event struct {
	Phase          Phase
	Percentage     float64
	ProcessedBytes int64
	TotalBytes     int64
	TaskIndex      int
	CurrentFile    string
	VerifyProgress float64
}

// Sink receives progress events. Implementations must be safe for calls
// from the engine goroutine only; the Tracker serializes emission.
type Sink interface {
	Emit(Event)
}

// NopSink discards all events. Callers that don't need live updates pass
// this instead of nil.
type NopSink struct{}

func (NopSink) Emit(Event) {}

// ChannelSink forwards events to a channel, dropping events when the
// receiver lags. Suited to feeding a UI without ever blocking an install.
type ChannelSink struct {
	C chan Event
}

// NewChannelSink returns a sink with a buffer of size n.
func NewChannelSink(n int) *ChannelSink {
	return &ChannelSink{C: make(chan Event, n)}
}

func (s *ChannelSink) Emit(e Event) {
	select {
	case s.C <- e:
	default:
	}
}

// Tracker accumulates byte progress across a batch of tasks and emits
// throttled events. The reported percentage is a high-water mark: it
// never decreases within a batch even if bookkeeping is revised.
type Tracker struct {
	sink   Sink
	minGap time.Duration

	processed   atomic.Int64
	total       atomic.Int64
	taskIndex   atomic.Int64
	verifyDone  atomic.Int64
	verifyTotal atomic.Int64

	// highWater holds the percentage in basis points (1% == 100) so it
	// can be advanced with integer compare-and-swap.
	highWater atomic.Int64

	phase atomic.Value // Phase

	// taskSizes and taskOffsets are written once in SetBudget, before any
	// concurrent reads.
	taskSizes   []int64
	taskOffsets []int64

	mu       sync.Mutex
	lastEmit time.Time
	lastFile string
}

// NewTracker creates a tracker emitting to sink, throttled to at most
// ratePerSecond events (zero or negative means the default of 60).
func NewTracker(sink Sink, ratePerSecond int) *Tracker {
	if sink == nil {
		sink = NopSink{}
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 60
	}
	t := &Tracker{
		sink:   sink,
		minGap: time.Second / time.Duration(ratePerSecond),
	}
	t.phase.Store(PhaseCalculating)
	return t
}

// SetBudget records the per-task byte sizes and derives cumulative
// offsets. Must be called before installs begin.
func (t *Tracker) SetBudget(sizes []int64) {
	t.taskSizes = make([]int64, len(sizes))
	copy(t.taskSizes, sizes)
	t.taskOffsets = make([]int64, len(sizes))

	var total int64
	for i, size := range sizes {
		t.taskOffsets[i] = total
		total += size
	}
	t.total.Store(total)
	t.emit("", true)
}

// BeginTask marks the start of task i and snaps processed bytes to the
// task's cumulative offset, so a task that under-reported its own bytes
// cannot drag the percentage backwards.
func (t *Tracker) BeginTask(i int) {
	t.taskIndex.Store(int64(i))
	if i >= 0 && i < len(t.taskOffsets) {
		t.raiseProcessed(t.taskOffsets[i])
	}
	t.verifyDone.Store(0)
	t.verifyTotal.Store(0)
	t.emit("", true)
}

// CompleteTask marks task i fully processed regardless of how many bytes
// were reported along the way.
func (t *Tracker) CompleteTask(i int) {
	if i >= 0 && i < len(t.taskOffsets) {
		t.raiseProcessed(t.taskOffsets[i] + t.taskSizes[i])
	}
	t.emit("", true)
}

// SetPhase switches the coarse phase and emits immediately.
func (t *Tracker) SetPhase(p Phase) {
	t.phase.Store(p)
	t.emit("", true)
}

// Add records n processed bytes attributed to file, emitting a throttled
// event.
func (t *Tracker) Add(n int64, file string) {
	t.processed.Add(n)
	t.emit(file, false)
}

// VerifyStep records verification sub-progress (done of total files).
func (t *Tracker) VerifyStep(done, total int) {
	t.verifyDone.Store(int64(done))
	t.verifyTotal.Store(int64(total))
	t.emit("", false)
}

// Percentage returns the monotonic high-water percentage.
func (t *Tracker) Percentage() float64 {
	t.advance()
	return float64(t.highWater.Load()) / 100
}

// Finish switches to the finalizing phase and forces a last event.
func (t *Tracker) Finish() {
	t.phase.Store(PhaseFinalizing)
	t.emit("", true)
}

// raiseProcessed advances the processed counter to at least n.
func (t *Tracker) raiseProcessed(n int64) {
	for {
		cur := t.processed.Load()
		if cur >= n || t.processed.CompareAndSwap(cur, n) {
			return
		}
	}
}

// advance recomputes the percentage and raises the high-water mark.
func (t *Tracker) advance() {
	total := t.total.Load()
	if total <= 0 {
		return
	}
	bp := t.processed.Load() * 10000 / total
	if bp > 10000 {
		bp = 10000
	}
	for {
		cur := t.highWater.Load()
		if cur >= bp || t.highWater.CompareAndSwap(cur, bp) {
			return
		}
	}
}

func (t *Tracker) emit(file string, force bool) {
	t.advance()

	t.mu.Lock()
	now := time.Now()
	if !force && now.Sub(t.lastEmit) < t.minGap {
		if file != "" {
			t.lastFile = file
		}
		t.mu.Unlock()
		return
	}
	t.lastEmit = now
	if file == "" {
		file = t.lastFile
	} else {
		t.lastFile = file
	}
	t.mu.Unlock()

	var verify float64
	if vt := t.verifyTotal.Load(); vt > 0 {
		verify = float64(t.verifyDone.Load()) / float64(vt)
	}

	t.sink.Emit(Event{
		Phase:          t.phase.Load().(Phase),
		Percentage:     float64(t.highWater.Load()) / 100,
		ProcessedBytes: t.processed.Load(),
		TotalBytes:     t.total.Load(),
		TaskIndex:      int(t.taskIndex.Load()),
		CurrentFile:    file,
		VerifyProgress: verify,
	})
}
