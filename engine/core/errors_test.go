package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	assert.Equal(t, "success", ErrorString(Success))
	assert.Equal(t, "unknown", ErrorString(Unknown))
	assert.Equal(t, "device lost", ErrorString(DeviceLost))
	assert.Equal(t, "failure|device lost", ErrorString(Failure|DeviceLost))
}

func TestErrorIsMatchesFlags(t *testing.T) {
	err := Errorf(Failure|DeviceLost, "queue submit")
	assert.True(t, errors.Is(err, DeviceLost))
	assert.True(t, errors.Is(err, Failure))
	assert.False(t, errors.Is(err, OutOfMemory))
	assert.False(t, errors.Is(err, Unknown))
	assert.Equal(t, Failure|DeviceLost, CodeOf(err))
}

func TestErrorfKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Errorf(InitializationFailed, "creating swapchain: %w", cause)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, InitializationFailed))
	assert.Equal(t, "initialization failed: creating swapchain: boom", err.Error())
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Success, CodeOf(nil))
	assert.Equal(t, Unknown, CodeOf(errors.New("plain")))
	assert.Equal(t, InvalidUse, CodeOf(fmt.Errorf("wrapped: %w", InvalidUse)))
}

func TestAssert(t *testing.T) {
	assert.NotPanics(t, func() { Assert(true, "fine") })
	assert.PanicsWithValue(t, "assertion failed: bad 3", func() { Assert(false, "bad %d", 3) })
}
