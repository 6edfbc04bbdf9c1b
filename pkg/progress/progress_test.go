package progress

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arthur-debert/airlift/pkg/testutil"
)

// recordSink captures every emitted event.
type recordSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordSink) Emit(e Event) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func TestTrackerBudgetAndPercentage(t *testing.T) {
	tr := NewTracker(NopSink{}, 1000)
	tr.SetBudget([]int64{100, 300})

	assert.Equal(t, 0.0, tr.Percentage())

	tr.BeginTask(0)
	tr.Add(50, "a")
	assert.InDelta(t, 12.5, tr.Percentage(), 0.01)

	tr.CompleteTask(0)
	assert.InDelta(t, 25.0, tr.Percentage(), 0.01)

	tr.BeginTask(1)
	tr.Add(300, "b")
	tr.CompleteTask(1)
	assert.Equal(t, 100.0, tr.Percentage())
}

func TestTrackerPercentageIsMonotonic(t *testing.T) {
	tr := NewTracker(NopSink{}, 1000)
	tr.SetBudget([]int64{100, 100})

	tr.BeginTask(0)
	tr.Add(80, "a")
	before := tr.Percentage()

	// Task 1 begins at its cumulative offset, which is below the bytes
	// already reported; the percentage must not move backwards.
	tr.BeginTask(1)
	assert.GreaterOrEqual(t, tr.Percentage(), before)

	tr.CompleteTask(1)
	assert.Equal(t, 100.0, tr.Percentage())
}

func TestTrackerCompleteCoversUnderReportedBytes(t *testing.T) {
	tr := NewTracker(NopSink{}, 1000)
	tr.SetBudget([]int64{200})

	tr.BeginTask(0)
	// The task reports nothing (a pure rename install).
	tr.CompleteTask(0)
	assert.Equal(t, 100.0, tr.Percentage())
}

func TestTrackerPercentageCapsAtHundred(t *testing.T) {
	tr := NewTracker(NopSink{}, 1000)
	tr.SetBudget([]int64{10})
	tr.BeginTask(0)
	tr.Add(1000, "over")
	assert.Equal(t, 100.0, tr.Percentage())
}

func TestTrackerZeroBudget(t *testing.T) {
	tr := NewTracker(NopSink{}, 1000)
	tr.SetBudget(nil)
	tr.Add(100, "a")
	assert.Equal(t, 0.0, tr.Percentage())
}

func TestTrackerEmitsPhasesAndVerifyProgress(t *testing.T) {
	sink := &recordSink{}
	tr := NewTracker(sink, 1000)
	tr.SetBudget([]int64{10})
	tr.BeginTask(0)
	tr.SetPhase(PhaseVerifying)
	tr.VerifyStep(1, 4)
	tr.SetPhase(PhaseVerifying) // forced emit flushes the verify step
	tr.Finish()

	events := sink.all()
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	assert.Equal(t, PhaseFinalizing, last.Phase)
	assert.InDelta(t, 0.25, last.VerifyProgress, 0.01)

	sawVerifying := false
	for _, e := range events {
		if e.Phase == PhaseVerifying {
			sawVerifying = true
		}
	}
	assert.True(t, sawVerifying)
}

func TestTrackerThrottlesEvents(t *testing.T) {
	sink := &recordSink{}
	// One event per second: within a fast test only forced emits get
	// through.
	tr := NewTracker(sink, 1)
	tr.SetBudget([]int64{1000})
	tr.BeginTask(0)
	forced := len(sink.all())

	for i := 0; i < 100; i++ {
		tr.Add(1, "spam")
	}
	assert.Equal(t, forced, len(sink.all()), "throttled adds must not emit")

	tr.CompleteTask(0)
	assert.Equal(t, forced+1, len(sink.all()))
}

func TestTrackerConcurrentAdds(t *testing.T) {
	tr := NewTracker(NopSink{}, 1000)
	tr.SetBudget([]int64{10000})
	tr.BeginTask(0)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Add(10, "f")
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 100.0, tr.Percentage())
}

func TestChannelSinkNeverBlocks(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(Event{TaskIndex: 1})
	// Buffer is full; further emits are dropped, not blocked on.
	sink.Emit(Event{TaskIndex: 2})
	sink.Emit(Event{TaskIndex: 3})

	e := <-sink.C
	assert.Equal(t, 1, e.TaskIndex)
	select {
	case <-sink.C:
		t.Fatal("dropped events must not arrive")
	default:
	}
}

func TestScanSizes(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "addon")
	testutil.WriteTree(t, dir, map[string]string{
		"a.txt":     "12345",
		"sub/b.txt": "123",
	})
	file := filepath.Join(root, "single.zip")
	testutil.WriteTree(t, root, map[string]string{"single.zip": "1234567890"})

	sizes := ScanSizes([]string{dir, file, filepath.Join(root, "missing")})
	require.Len(t, sizes, 3)
	assert.Equal(t, int64(8), sizes[0])
	assert.Equal(t, int64(10), sizes[1])
	assert.Equal(t, int64(0), sizes[2])
}
