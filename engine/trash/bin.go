// Package trash defers the destruction of GPU objects until no frame in
// flight can still reference them.
package trash

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
)

// DestroyFunc releases the native resource held by value.
type DestroyFunc func(value any)

type entry struct {
	value   any
	destroy DestroyFunc
	retired uint64
	counter int
}

// Bin is an epoch based reclamation list. Every Tick closes an epoch and
// decrements each entry's counter, which starts at N. An entry is destroyed
// once its counter is negative, that is on the (N+1)-th Tick following its
// Enqueue.
type Bin struct {
	frames int
	logger *log.Logger

	mu      sync.Mutex
	entries []entry
	epoch   uint64
	closed  bool
}

func NewBin(framesInFlight int, logger *log.Logger) *Bin {
	core.Assert(framesInFlight > 0, "trash: frames in flight must be positive, got %d", framesInFlight)
	if logger == nil {
		logger = core.NewLogger("Trash 🗑️ ")
	}
	return &Bin{
		frames: framesInFlight,
		logger: logger,
	}
}

// Enqueue registers value for deferred destruction. Safe for concurrent use.
// Once the bin is closed the value is destroyed right away.
func (b *Bin) Enqueue(value any, destroy DestroyFunc) {
	if destroy == nil {
		return
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		b.run(entry{value: value, destroy: destroy})
		return
	}
	b.entries = append(b.entries, entry{
		value:   value,
		destroy: destroy,
		retired: b.epoch,
		counter: b.frames,
	})
	b.mu.Unlock()
}

// Enqueue is the nil tolerant form of Bin.Enqueue: without a bin, the value
// is destroyed immediately.
func Enqueue(b *Bin, value any, destroy DestroyFunc) {
	if b == nil {
		if destroy != nil {
			destroy(value)
		}
		return
	}
	b.Enqueue(value, destroy)
}

// Tick closes the current epoch. Called by the render loop once per frame,
// after the fence of the slot about to be reused has been waited on.
func (b *Bin) Tick() {
	b.mu.Lock()
	b.epoch++
	ready := make([]entry, 0)
	kept := b.entries[:0]
	for _, e := range b.entries {
		e.counter--
		if e.counter < 0 {
			ready = append(ready, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(b.entries); i++ {
		b.entries[i] = entry{}
	}
	b.entries = kept
	epoch := b.epoch
	b.mu.Unlock()

	for _, e := range ready {
		b.logger.Debug("reclaiming", "retired", e.retired, "epoch", epoch)
		b.run(e)
	}
}

// Len returns the number of objects waiting for destruction.
func (b *Bin) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Epoch returns the number of ticks so far.
func (b *Bin) Epoch() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.epoch
}

// Close destroys everything still pending. Later enqueues destroy at once.
func (b *Bin) Close() {
	b.mu.Lock()
	pending := b.entries
	b.entries = nil
	b.closed = true
	b.mu.Unlock()

	if len(pending) > 0 {
		b.logger.Debugf("emptying %d pending objects", len(pending))
	}
	for _, e := range pending {
		b.run(e)
	}
}

func (b *Bin) run(e entry) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorf("destructor panicked: %v", r)
		}
	}()
	e.destroy(e.value)
}
