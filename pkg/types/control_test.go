package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskControlCancel(t *testing.T) {
	c := NewTaskControl()
	assert.False(t, c.IsCancelled())

	c.Cancel()
	assert.True(t, c.IsCancelled())

	// Cancellation is sticky.
	c.Cancel()
	assert.True(t, c.IsCancelled())
}

func TestTaskControlSkipResets(t *testing.T) {
	c := NewTaskControl()
	assert.False(t, c.IsSkipRequested())

	c.RequestSkip()
	assert.True(t, c.IsSkipRequested())

	c.ResetSkip()
	assert.False(t, c.IsSkipRequested())
}

func TestTaskControlConcurrent(t *testing.T) {
	c := NewTaskControl()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RequestSkip()
			_ = c.IsSkipRequested()
			c.Cancel()
		}()
	}
	wg.Wait()

	assert.True(t, c.IsCancelled())
	assert.True(t, c.IsSkipRequested())
}

func TestBatchResultCounts(t *testing.T) {
	b := &BatchResult{}
	b.Add(TaskResult{Status: StatusSuccess})
	b.Add(TaskResult{Status: StatusFailed})
	b.Add(TaskResult{Status: StatusSkipped})
	b.Add(TaskResult{Status: StatusCancelled})
	b.Add(TaskResult{Status: StatusSuccess})

	assert.Equal(t, 2, b.Succeeded)
	assert.Equal(t, 1, b.Failed)
	assert.Equal(t, 1, b.Skipped)
	assert.Equal(t, 1, b.Cancelled)
	assert.False(t, b.Ok())

	good := &BatchResult{}
	good.Add(TaskResult{Status: StatusSuccess})
	good.Add(TaskResult{Status: StatusSkipped})
	assert.True(t, good.Ok())
}

func TestVerificationManifestTotals(t *testing.T) {
	m := NewVerificationManifest()
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, int64(0), m.TotalSize())

	m.Files["a.txt"] = ManifestEntry{Hash: "blake3:aa", Size: 10}
	m.Files["sub/b.txt"] = ManifestEntry{Hash: "blake3:bb", Size: 32}
	assert.Equal(t, 2, m.Len())
	assert.Equal(t, int64(42), m.TotalSize())

	var nilManifest *VerificationManifest
	assert.Equal(t, 0, nilManifest.Len())
	assert.Equal(t, int64(0), nilManifest.TotalSize())
}
