package progress

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/arthur-debert/airlift/pkg/logging"
)

// barScale is the resolution of the terminal bar; percentages map onto it
// in basis points.
const barScale = 10000

// BarSink renders events as a terminal progress bar.
type BarSink struct {
	bar       *progressbar.ProgressBar
	lastPhase Phase
}

// NewBarSink builds a progress bar writing to stderr.
func NewBarSink() *BarSink {
	bar := progressbar.NewOptions(barScale,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("installing"),
		progressbar.OptionShowBytes(false),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionClearOnFinish(),
	)
	return &BarSink{bar: bar}
}

func (s *BarSink) Emit(e Event) {
	if e.Phase != s.lastPhase {
		s.lastPhase = e.Phase
		s.bar.Describe(string(e.Phase))
	}
	_ = s.bar.Set(int(e.Percentage * 100))
	if e.Phase == PhaseFinalizing {
		_ = s.bar.Finish()
	}
}

// logSink reports phase transitions through the structured logger. Used
// when stderr is not a terminal.
type logSink struct {
	lastPhase Phase
	lastTask  int
}

func (s *logSink) Emit(e Event) {
	if e.Phase == s.lastPhase && e.TaskIndex == s.lastTask {
		return
	}
	s.lastPhase = e.Phase
	s.lastTask = e.TaskIndex

	logger := logging.GetLogger("progress")
	logger.Info().
		Str("phase", string(e.Phase)).
		Int("task", e.TaskIndex).
		Str("percent", fmt.Sprintf("%.1f", e.Percentage)).
		Msg("Progress")
}

// NewConsoleSink picks a terminal bar or plain log lines depending on
// whether stderr is a TTY.
func NewConsoleSink() Sink {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return NewBarSink()
	}
	return &logSink{lastPhase: "", lastTask: -1}
}
