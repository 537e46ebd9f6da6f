package null

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// Fence is a software fence signaled by the fake queue.
type Fence struct {
	mu       sync.Mutex
	signaled bool
	done     chan struct{}
}

func newFence(signaled bool) *Fence {
	f := &Fence{done: make(chan struct{})}
	if signaled {
		f.signaled = true
		close(f.done)
	}
	return f
}

func (f *Fence) Signal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.signaled {
		f.signaled = true
		close(f.done)
	}
}

func (f *Fence) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signaled {
		f.signaled = false
		f.done = make(chan struct{})
	}
}

func (f *Fence) Signaled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signaled
}

// Wait blocks until the fence is signaled or timeout elapsed.
func (f *Fence) Wait(timeout time.Duration) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-done:
		return nil
	case <-t.C:
		return core.Errorf(core.DeviceLost, "fence not signaled after %s", timeout)
	}
}

// Semaphore counts its signals and waits.
type Semaphore struct {
	Name    string
	signals atomic.Int64
	waits   atomic.Int64
}

func (s *Semaphore) signal()        { s.signals.Add(1) }
func (s *Semaphore) wait()          { s.waits.Add(1) }
func (s *Semaphore) Signals() int64 { return s.signals.Load() }
func (s *Semaphore) Waits() int64   { return s.waits.Load() }
