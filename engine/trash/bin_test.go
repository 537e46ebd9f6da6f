package trash

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestroyedAfterNTicksExactlyOnce(t *testing.T) {
	const n = 3
	bin := NewBin(n, nil)
	destroyed := 0
	bin.Enqueue("buffer", func(v any) {
		assert.Equal(t, "buffer", v)
		destroyed++
	})

	for i := 1; i <= n; i++ {
		bin.Tick()
		assert.Zero(t, destroyed, "destroyed after %d ticks", i)
	}
	bin.Tick()
	assert.Equal(t, 1, destroyed)
	assert.Zero(t, bin.Len())

	for i := 0; i < 2*n; i++ {
		bin.Tick()
	}
	bin.Close()
	assert.Equal(t, 1, destroyed)
}

func TestEntriesKeepTheirOwnEpoch(t *testing.T) {
	bin := NewBin(2, nil)
	var order []string
	bin.Enqueue("a", func(v any) { order = append(order, v.(string)) })
	bin.Tick()
	bin.Enqueue("b", func(v any) { order = append(order, v.(string)) })
	assert.Equal(t, 2, bin.Len())

	bin.Tick()
	assert.Empty(t, order)
	bin.Tick()
	assert.Equal(t, []string{"a"}, order)
	bin.Tick()
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, uint64(4), bin.Epoch())
}

func TestConcurrentEnqueue(t *testing.T) {
	bin := NewBin(3, nil)
	var destroyed atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				bin.Enqueue(i, func(any) { destroyed.Add(1) })
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 800, bin.Len())
	for i := 0; i < 3; i++ {
		bin.Tick()
	}
	assert.Zero(t, destroyed.Load())
	bin.Tick()
	assert.Equal(t, int32(800), destroyed.Load())
}

func TestCloseEmptiesAndDestroysLateEnqueues(t *testing.T) {
	bin := NewBin(3, nil)
	destroyed := 0
	bin.Enqueue(1, func(any) { destroyed++ })
	bin.Enqueue(2, func(any) { destroyed++ })
	bin.Close()
	assert.Equal(t, 2, destroyed)

	bin.Enqueue(3, func(any) { destroyed++ })
	assert.Equal(t, 3, destroyed)
	assert.Zero(t, bin.Len())
}

func TestNilBinDestroysImmediately(t *testing.T) {
	destroyed := false
	Enqueue(nil, "texture", func(any) { destroyed = true })
	assert.True(t, destroyed)
}

func TestPanickingDestructorDoesNotStopTheTick(t *testing.T) {
	bin := NewBin(1, nil)
	ran := false
	bin.Enqueue(nil, func(any) { panic("driver crash") })
	bin.Enqueue(nil, func(any) { ran = true })
	bin.Tick()
	assert.NotPanics(t, bin.Tick)
	assert.True(t, ran)
}

func TestDestructorMayEnqueue(t *testing.T) {
	bin := NewBin(1, nil)
	second := false
	bin.Enqueue("parent", func(any) {
		bin.Enqueue("child", func(any) { second = true })
	})
	bin.Tick()
	bin.Tick()
	assert.False(t, second)
	assert.Equal(t, 1, bin.Len())
	bin.Tick()
	assert.False(t, second)
	bin.Tick()
	assert.True(t, second)
}
