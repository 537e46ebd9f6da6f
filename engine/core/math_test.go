package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	assert.Equal(t, 2, Wrap(-1, 3))
	assert.Equal(t, 0, Wrap(3, 3))
	assert.Equal(t, 1, Wrap(7, 3))
	assert.Equal(t, uint32(1), Wrap(uint32(4), 3))
}

func TestClampAndPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 1, 32))
	assert.Equal(t, 32, Clamp(64, 1, 32))
	assert.Equal(t, 8, Clamp(8, 1, 32))
	assert.True(t, IsPowerOfTwo(16))
	assert.False(t, IsPowerOfTwo(12))
	assert.False(t, IsPowerOfTwo(0))
}

func TestMetricsReportsOncePerSecond(t *testing.T) {
	m := NewMetrics()
	reported := 0
	for i := 0; i < 100; i++ {
		if m.Update(1.0 / 60.0) {
			reported++
		}
	}
	assert.Equal(t, 1, reported)
	assert.InDelta(t, 61, m.FPS(), 1)
	assert.InDelta(t, 1000.0/60.0, m.FrameTime(), 0.001)
	assert.InDelta(t, 60, m.TheoreticalFPS(), 0.01)
}
