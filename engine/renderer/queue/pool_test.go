package queue

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingQueue struct {
	mu      sync.Mutex
	calls   []string
	delay   time.Duration
	fail    error
	present PresentResult
}

func (q *recordingQueue) Submit(o *SubmitOrder) error {
	time.Sleep(q.delay)
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, o.Fence.(string))
	return q.fail
}

func (q *recordingQueue) Present(o *PresentOrder) (PresentResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.calls = append(q.calls, "present")
	return q.present, q.fail
}

func (q *recordingQueue) recorded() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.calls...)
}

func submit(q Queue, tag string) *SubmitOrder {
	return &SubmitOrder{Queue: q, Fence: tag}
}

func TestSameSlotIsFIFO(t *testing.T) {
	q := &recordingQueue{delay: time.Millisecond}
	p := NewPool(3, nil)
	defer p.Close()

	want := []string{"a", "b", "c", "d", "e"}
	for _, tag := range want {
		require.NoError(t, p.AddQueueOrder(1, submit(q, tag)))
	}
	p.WaitIdle(1)
	assert.Equal(t, want, q.recorded())
	assert.Zero(t, p.Pending(1))
}

func TestSlotsRunIndependently(t *testing.T) {
	blocked := &blockingQueue{release: make(chan struct{})}
	fast := &recordingQueue{}
	p := NewPool(2, nil)
	defer p.Close()

	require.NoError(t, p.AddQueueOrder(0, &SubmitOrder{Queue: blocked}))
	require.NoError(t, p.AddQueueOrder(1, submit(fast, "x")))
	p.WaitIdle(1)
	assert.Equal(t, []string{"x"}, fast.recorded())
	close(blocked.release)
	p.WaitIdle(0)
}

type blockingQueue struct {
	release chan struct{}
}

func (q *blockingQueue) Submit(*SubmitOrder) error {
	<-q.release
	return nil
}

func (q *blockingQueue) Present(*PresentOrder) (PresentResult, error) {
	<-q.release
	return PresentSuccess, nil
}

func TestCloseDrainsQueuedOrders(t *testing.T) {
	q := &recordingQueue{delay: 2 * time.Millisecond}
	p := NewPool(1, nil)
	for _, tag := range []string{"1", "2", "3"} {
		require.NoError(t, p.AddQueueOrder(0, submit(q, tag)))
	}
	require.NoError(t, p.Close())
	assert.Equal(t, []string{"1", "2", "3"}, q.recorded())

	assert.ErrorIs(t, p.AddQueueOrder(0, submit(q, "late")), ErrPoolClosed)
	assert.NoError(t, p.Close())
}

func TestAddQueueOrderRejects(t *testing.T) {
	p := NewPool(3, nil)
	defer p.Close()

	q := &recordingQueue{}
	assert.ErrorIs(t, p.AddQueueOrder(3, submit(q, "a")), ErrInvalidSlot)
	assert.ErrorIs(t, p.AddQueueOrder(-1, submit(q, "a")), ErrInvalidSlot)
	assert.ErrorIs(t, p.AddQueueOrder(0, nil), ErrInvalidOrder)
	assert.ErrorIs(t, p.AddQueueOrder(0, &SubmitOrder{}), ErrNoQueue)
	assert.ErrorIs(t, p.AddQueueOrder(0, &SubmitOrder{
		Queue:          q,
		WaitSemaphores: []Semaphore{1},
	}), ErrStageMismatch)
	assert.ErrorIs(t, p.AddQueueOrder(0, &PresentOrder{
		Queue:      q,
		Swapchains: []Swapchain{1},
	}), ErrIndicesMismatch)
}

func TestFailuresReachErrorHandler(t *testing.T) {
	boom := errors.New("device lost")
	q := &recordingQueue{fail: boom}
	p := NewPool(2, nil)

	var mu sync.Mutex
	var failed []int
	p.OnError(func(frameIndex int, order Order, err error) {
		mu.Lock()
		defer mu.Unlock()
		assert.ErrorIs(t, err, boom)
		failed = append(failed, frameIndex)
	})

	var doneErr error
	require.NoError(t, p.AddQueueOrder(1, &SubmitOrder{
		Queue: q,
		Fence: "f",
		Done:  func(err error) { doneErr = err },
	}))
	p.WaitIdle(1)
	assert.ErrorIs(t, doneErr, boom)

	// The worker survives and keeps serving the slot.
	q.fail = nil
	require.NoError(t, p.AddQueueOrder(1, submit(q, "g")))
	require.NoError(t, p.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1}, failed)
	assert.Equal(t, []string{"f", "g"}, q.recorded())
}

func TestPanickingOrderIsReported(t *testing.T) {
	p := NewPool(1, nil)
	errs := make(chan error, 1)
	p.OnError(func(_ int, _ Order, err error) { errs <- err })

	require.NoError(t, p.AddQueueOrder(0, &SubmitOrder{Queue: panicQueue{}}))
	select {
	case err := <-errs:
		assert.ErrorContains(t, err, "panicked")
	case <-time.After(5 * time.Second):
		t.Fatal("panic was not reported")
	}
	require.NoError(t, p.Close())
}

type panicQueue struct{}

func (panicQueue) Submit(*SubmitOrder) error { panic("bad command buffer") }
func (panicQueue) Present(*PresentOrder) (PresentResult, error) {
	panic("bad swapchain")
}

func TestPresentDeliversResult(t *testing.T) {
	q := &recordingQueue{present: PresentOutOfDate}
	p := NewPool(3, nil)
	defer p.Close()

	got := make(chan PresentResult, 1)
	require.NoError(t, p.AddQueueOrder(2, &PresentOrder{
		Queue:        q,
		Swapchains:   []Swapchain{"sc"},
		ImageIndices: []uint32{0},
		Done:         func(res PresentResult, err error) { got <- res },
	}))
	res := <-got
	assert.Equal(t, PresentOutOfDate, res)
	assert.True(t, res.NeedsRecreate())
	assert.Equal(t, "out of date", res.String())
	assert.Equal(t, KindPresent, (&PresentOrder{}).Kind())
}

func TestNewPoolNeedsSlots(t *testing.T) {
	assert.Panics(t, func() { NewPool(0, nil) })
}
