package engine

import (
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer"
)

// Game holds the callbacks the engine drives. Every callback is optional.
type Game struct {
	State        interface{}
	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnRender     Render
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

type Boot func() error
type Initialize func(app *renderer.GraphicsApplication) error
type Update func(deltaTime float64) error

// Render fills the scene drawn by the next frame.
type Render func(scene *renderer.Scene, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
