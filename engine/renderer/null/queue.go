package null

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
)

// Submission records one executed submit.
type Submission struct {
	Queue          string
	Stages         []queue.PipelineStage
	Waits          []string
	Signals        []string
	CommandBuffers []*CommandBuffer
	Fenced         bool
}

// Queue executes orders immediately: waits are counted, signals and fences
// are set.
type Queue struct {
	name    string
	backend *Backend
}

func (q *Queue) Submit(order *queue.SubmitOrder) error {
	b := q.backend
	b.mu.Lock()
	if b.failSubmits > 0 {
		b.failSubmits--
		b.mu.Unlock()
		return core.Errorf(core.DeviceLost, "%s queue: injected submit failure", q.name)
	}
	s := Submission{Queue: q.name, Stages: order.WaitStages, Fenced: order.Fence != nil}
	for _, w := range order.WaitSemaphores {
		sem := w.(*Semaphore)
		sem.wait()
		s.Waits = append(s.Waits, sem.Name)
	}
	for _, sig := range order.SignalSemaphores {
		sem := sig.(*Semaphore)
		sem.signal()
		s.Signals = append(s.Signals, sem.Name)
	}
	for _, cmd := range order.CommandBuffers {
		s.CommandBuffers = append(s.CommandBuffers, cmd.(*CommandBuffer))
	}
	b.submissions = append(b.submissions, s)
	b.stats.Submits++
	b.mu.Unlock()

	if order.Fence != nil {
		order.Fence.(*Fence).Signal()
	}
	return nil
}

func (q *Queue) Present(order *queue.PresentOrder) (queue.PresentResult, error) {
	b := q.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, w := range order.WaitSemaphores {
		w.(*Semaphore).wait()
	}
	b.stats.Presents++
	if len(b.presentResults) == 0 {
		return queue.PresentSuccess, nil
	}
	r := b.presentResults[0]
	b.presentResults = b.presentResults[1:]
	return r, nil
}
