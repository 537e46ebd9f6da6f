// Package queue executes GPU queue submissions and presentations off the
// main goroutine, one FIFO worker per frame in flight.
package queue

import "errors"

// Native handles, owned by the backend that created them.
type (
	Fence         any
	Semaphore     any
	CommandBuffer any
	Swapchain     any
)

// PipelineStage is a pipeline stage mask a submission waits at. Values
// match VkPipelineStageFlagBits.
type PipelineStage uint32

const (
	StageFragmentShader        PipelineStage = 0x00000080
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageAllCommands           PipelineStage = 0x00010000
)

type PresentResult int

const (
	PresentSuccess PresentResult = iota
	// PresentSuboptimal: presented, but the swapchain should be recreated.
	PresentSuboptimal
	// PresentOutOfDate: not presented, the swapchain must be recreated.
	PresentOutOfDate
)

func (r PresentResult) String() string {
	switch r {
	case PresentSuccess:
		return "success"
	case PresentSuboptimal:
		return "suboptimal"
	case PresentOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// NeedsRecreate reports whether the swapchain has to be rebuilt.
func (r PresentResult) NeedsRecreate() bool {
	return r != PresentSuccess
}

// Queue is a backend device queue.
type Queue interface {
	Submit(order *SubmitOrder) error
	Present(order *PresentOrder) (PresentResult, error)
}

type SubmitOrder struct {
	Queue            Queue
	Fence            Fence
	WaitSemaphores   []Semaphore
	WaitStages       []PipelineStage
	CommandBuffers   []CommandBuffer
	SignalSemaphores []Semaphore

	// Done, when set, is called by the worker after the submission.
	Done func(err error)
}

type PresentOrder struct {
	Queue          Queue
	WaitSemaphores []Semaphore
	Swapchains     []Swapchain
	ImageIndices   []uint32

	// Done, when set, is called by the worker after the presentation.
	Done func(result PresentResult, err error)
}

type Kind int

const (
	KindSubmit Kind = iota
	KindPresent
)

func (k Kind) String() string {
	if k == KindPresent {
		return "present"
	}
	return "submit"
}

// Order is either a *SubmitOrder or a *PresentOrder.
type Order interface {
	Kind() Kind
	execute() error
}

var (
	ErrNoQueue         = errors.New("queue order has no target queue")
	ErrStageMismatch   = errors.New("wait semaphores and wait stages differ in length")
	ErrIndicesMismatch = errors.New("swapchains and image indices differ in length")
)

func (o *SubmitOrder) Kind() Kind { return KindSubmit }

func (o *SubmitOrder) Validate() error {
	if o.Queue == nil {
		return ErrNoQueue
	}
	if len(o.WaitSemaphores) != len(o.WaitStages) {
		return ErrStageMismatch
	}
	return nil
}

func (o *SubmitOrder) execute() error {
	err := o.Queue.Submit(o)
	if o.Done != nil {
		o.Done(err)
	}
	return err
}

func (o *PresentOrder) Kind() Kind { return KindPresent }

func (o *PresentOrder) Validate() error {
	if o.Queue == nil {
		return ErrNoQueue
	}
	if len(o.Swapchains) != len(o.ImageIndices) {
		return ErrIndicesMismatch
	}
	return nil
}

func (o *PresentOrder) execute() error {
	res, err := o.Queue.Present(o)
	if o.Done != nil {
		o.Done(res, err)
	}
	return err
}
