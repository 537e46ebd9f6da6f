// Package frame tracks the frame-in-flight index shared by every
// frame-indexed resource.
package frame

import (
	"fmt"
	"sync/atomic"
)

// Clock holds the current frame slot in [0, N). It is written by the render
// loop only and read from any goroutine.
type Clock struct {
	n     int32
	index atomic.Int32
	epoch atomic.Uint64
}

func New(framesInFlight int) *Clock {
	if framesInFlight < 1 {
		panic(fmt.Sprintf("frame: invalid frames in flight %d", framesInFlight))
	}
	return &Clock{n: int32(framesInFlight)}
}

func (c *Clock) FramesInFlight() int {
	return int(c.n)
}

func (c *Clock) CurrentFrameIndex() int {
	return int(c.index.Load())
}

// AdvanceFrame moves to the next slot and returns it. Must be called once
// per completed loop iteration.
func (c *Clock) AdvanceFrame() int {
	next := (c.index.Load() + 1) % c.n
	c.index.Store(next)
	c.epoch.Add(1)
	return int(next)
}

// Epoch counts every AdvanceFrame since creation. It never wraps in practice
// and is not affected by Reset.
func (c *Clock) Epoch() uint64 {
	return c.epoch.Load()
}

// Reset goes back to slot 0, used when the swapchain is recreated.
func (c *Clock) Reset() {
	c.index.Store(0)
}

// Set forces the current slot. Panics outside [0, N).
func (c *Clock) Set(index int) {
	if index < 0 || index >= int(c.n) {
		panic(fmt.Sprintf("frame: index %d out of range [0,%d)", index, c.n))
	}
	c.index.Store(int32(index))
}
