/*
This is an example of application that will use the
engine package to test things out
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/kevinpruvost/VenomEngine-sub001/engine"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/testbed"

	_ "github.com/kevinpruvost/VenomEngine-sub001/engine/platform/glfw"
	_ "github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/null"
	_ "github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/vulkan"
)

func init() {
	// GLFW and the frame loop must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", core.DefaultConfigFile, "path to the engine configuration")
	flag.Parse()

	cfg, err := core.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal(err.Error())
	}

	e, err := engine.New(cfg, testbed.NewTestGame().Game)
	if err != nil {
		core.LogFatal(err.Error())
	}

	// signal context to capture system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	code := 0
	if err := e.Initialize(ctx); err != nil {
		core.LogError("engine initialization failed: %s", err)
		code = 1
	} else if err := e.Run(ctx); err != nil {
		core.LogError("engine stopped: %s", err)
		code = 1
	}
	if err := e.Shutdown(); err != nil {
		core.LogError("engine shutdown: %s", err)
		code = 1
	}
	stop()
	os.Exit(code)
}
