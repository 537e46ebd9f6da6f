package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventBusStopsAtFirstHandler(t *testing.T) {
	eb := NewEventBus()
	var calls []string
	first, second := new(int), new(int)

	assert.True(t, eb.Register(EVENT_CODE_RESIZED, first, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "first")
		return data.Data.U32[0] == 0
	}))
	assert.True(t, eb.Register(EVENT_CODE_RESIZED, second, func(code SystemEventCode, sender, listener interface{}, data EventContext) bool {
		calls = append(calls, "second")
		return true
	}))
	assert.False(t, eb.Register(EVENT_CODE_RESIZED, first, nil))

	var ctx EventContext
	ctx.Data.U32[0] = 640
	assert.True(t, eb.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first", "second"}, calls)

	calls = nil
	ctx.Data.U32[0] = 0
	assert.True(t, eb.Fire(EVENT_CODE_RESIZED, nil, ctx))
	assert.Equal(t, []string{"first"}, calls)
}

func TestEventBusUnregister(t *testing.T) {
	eb := NewEventBus()
	listener := new(int)
	fired := 0
	eb.Register(EVENT_CODE_APPLICATION_QUIT, listener, func(SystemEventCode, interface{}, interface{}, EventContext) bool {
		fired++
		return true
	})
	assert.True(t, eb.Unregister(EVENT_CODE_APPLICATION_QUIT, listener))
	assert.False(t, eb.Unregister(EVENT_CODE_APPLICATION_QUIT, listener))
	assert.False(t, eb.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}))
	assert.Zero(t, fired)
}
