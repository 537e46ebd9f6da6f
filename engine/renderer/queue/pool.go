package queue

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/containers"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"golang.org/x/sync/errgroup"
)

var (
	ErrPoolClosed   = errors.New("queue order pool is closed")
	ErrInvalidSlot  = errors.New("frame index out of range")
	ErrInvalidOrder = errors.New("invalid queue order")
)

// ErrorHandler receives orders that failed to execute.
type ErrorHandler func(frameIndex int, order Order, err error)

type slot struct {
	mu      sync.Mutex
	work    *sync.Cond
	idle    *sync.Cond
	orders  *containers.RingQueue[Order]
	busy    bool
	stopped bool
}

// Pool runs one worker per slot. Orders queued on the same slot execute in
// FIFO order; different slots are not ordered relative to each other.
type Pool struct {
	slots  []*slot
	logger *log.Logger
	group  errgroup.Group
	closed atomic.Bool

	onError atomic.Pointer[ErrorHandler]
}

func NewPool(slots int, logger *log.Logger) *Pool {
	core.Assert(slots > 0, "queue order pool needs at least one slot, got %d", slots)
	if logger == nil {
		logger = core.NewLogger("Queue ⚙️ ")
	}

	p := &Pool{
		slots:  make([]*slot, slots),
		logger: logger,
	}
	for i := range p.slots {
		s := &slot{orders: containers.NewGrowableRingQueue[Order](8)}
		s.work = sync.NewCond(&s.mu)
		s.idle = sync.NewCond(&s.mu)
		p.slots[i] = s

		index := i
		p.group.Go(func() error {
			p.worker(index, s)
			return nil
		})
	}
	logger.Debugf("started %d queue workers", slots)
	return p
}

func (p *Pool) Slots() int {
	return len(p.slots)
}

// OnError sets the handler for failed orders. Failures are logged either way.
func (p *Pool) OnError(fn ErrorHandler) {
	if fn == nil {
		p.onError.Store(nil)
		return
	}
	p.onError.Store(&fn)
}

// AddQueueOrder queues order on the worker of frameIndex.
func (p *Pool) AddQueueOrder(frameIndex int, order Order) error {
	if p.closed.Load() {
		return ErrPoolClosed
	}
	if frameIndex < 0 || frameIndex >= len(p.slots) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrInvalidSlot, frameIndex, len(p.slots))
	}
	if order == nil {
		return ErrInvalidOrder
	}
	if v, ok := order.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidOrder, err)
		}
	}

	s := p.slots[frameIndex]
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrPoolClosed
	}
	if err := s.orders.Enqueue(order); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()
	s.work.Signal()
	return nil
}

// WaitIdle blocks until every order queued on frameIndex has executed.
func (p *Pool) WaitIdle(frameIndex int) {
	core.Assert(frameIndex >= 0 && frameIndex < len(p.slots), "frame index %d out of range", frameIndex)
	s := p.slots[frameIndex]
	s.mu.Lock()
	for s.busy || !s.orders.IsEmpty() {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// WaitAllIdle blocks until every slot is drained.
func (p *Pool) WaitAllIdle() {
	for i := range p.slots {
		p.WaitIdle(i)
	}
}

// Pending returns the orders waiting on frameIndex, excluding a running one.
func (p *Pool) Pending(frameIndex int) int {
	s := p.slots[frameIndex]
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders.Len()
}

// Close stops accepting orders, lets every worker drain what is already
// queued, then joins them.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	for _, s := range p.slots {
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		s.work.Broadcast()
	}
	err := p.group.Wait()
	p.logger.Debug("queue workers joined")
	return err
}

func (p *Pool) worker(index int, s *slot) {
	for {
		s.mu.Lock()
		for s.orders.IsEmpty() && !s.stopped {
			s.work.Wait()
		}
		order, err := s.orders.Dequeue()
		if err != nil {
			// Empty and stopped.
			s.mu.Unlock()
			s.idle.Broadcast()
			return
		}
		s.busy = true
		s.mu.Unlock()

		p.run(index, order)

		s.mu.Lock()
		s.busy = false
		drained := s.orders.IsEmpty()
		s.mu.Unlock()
		if drained {
			s.idle.Broadcast()
		}
	}
}

func (p *Pool) run(index int, order Order) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("queue order panicked: %v", r)
			}
		}()
		return order.execute()
	}()
	if err == nil {
		return
	}
	p.logger.Errorf("%s order on slot %d failed: %s", order.Kind(), index, err)
	if fn := p.onError.Load(); fn != nil {
		(*fn)(index, order, err)
	}
}
