package types

import "sync/atomic"

// TaskControl carries the cooperative cancellation flags for a batch.
// Cancellation is polled, never preemptive: the engine checks the flags at
// defined yield points (before each task, and after install but before
// verification) and never interrupts an in-flight file operation.
type TaskControl struct {
	cancelled atomic.Bool
	skip      atomic.Bool
}

// NewTaskControl returns a control object with both flags clear.
func NewTaskControl() *TaskControl {
	return &TaskControl{}
}

// Cancel requests that all remaining tasks in the batch be abandoned.
func (c *TaskControl) Cancel() {
	c.cancelled.Store(true)
}

// IsCancelled reports whether cancellation has been requested.
func (c *TaskControl) IsCancelled() bool {
	if c == nil {
		return false
	}
	return c.cancelled.Load()
}

// RequestSkip asks the engine to discard the task currently installing
// and continue with the next one.
func (c *TaskControl) RequestSkip() {
	c.skip.Store(true)
}

// IsSkipRequested reports whether a skip has been requested.
func (c *TaskControl) IsSkipRequested() bool {
	if c == nil {
		return false
	}
	return c.skip.Load()
}

// ResetSkip clears the skip flag after the engine has acted on it.
func (c *TaskControl) ResetSkip() {
	if c != nil {
		c.skip.Store(false)
	}
}
