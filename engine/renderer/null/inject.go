package null

import (
	"slices"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/settings"
)

// InjectAcquireResults makes the next acquires report results in order.
func (b *Backend) InjectAcquireResults(results ...queue.PresentResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acquireResults = append(b.acquireResults, results...)
}

// InjectPresentResults makes the next presents report results in order.
func (b *Backend) InjectPresentResults(results ...queue.PresentResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.presentResults = append(b.presentResults, results...)
}

// FailNextSubmits makes the next n submits fail with DeviceLost.
func (b *Backend) FailNextSubmits(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failSubmits += n
}

func (b *Backend) FailNextRecords(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRecords += n
}

func (b *Backend) FailNextLoads(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failLoads += n
}

func (b *Backend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Submissions returns the executed submits, oldest first.
func (b *Backend) Submissions() []Submission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.submissions)
}

// LoadedSettings is the data of the last successful settings load.
func (b *Backend) LoadedSettings() settings.Data {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data
}

func (b *Backend) CurrentSwapchain() *Swapchain {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.swapchain
}
