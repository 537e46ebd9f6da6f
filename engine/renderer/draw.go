package renderer

import (
	"errors"

	"github.com/kevinpruvost/VenomEngine-sub001/engine/core"
	"github.com/kevinpruvost/VenomEngine-sub001/engine/renderer/queue"
)

// Draw renders one frame:
//
//	wait slot fence -> trash tick -> recreate if needed -> acquire ->
//	record -> reset fence -> queue submits -> queue present ->
//	after-draw callbacks -> clean plugin objects -> advance frame
//
// Errors scoped to the frame are logged and the frame is skipped. Only a
// failed recreation is returned.
func (a *GraphicsApplication) Draw() error {
	if !a.initialized {
		return ErrNotInitialized
	}
	slot := a.env.Clock.CurrentFrameIndex()
	sync := a.backend.FrameSync(slot)

	if err := a.backend.WaitForFence(sync.InFlight, a.FenceTimeout); err != nil {
		if !errors.Is(err, core.DeviceLost) {
			a.frameFailed("wait for in-flight fence", err)
			return nil
		}
		a.deviceLost.Store(true)
		a.logger.Errorf("device lost waiting for frame slot %d, recreating: %s", slot, err)
	}
	a.tickTrash()

	if a.needsRecreate() {
		w, h := a.env.Context.FramebufferSize()
		if w == 0 || h == 0 {
			// Minimized, nothing to present to.
			a.skipped++
			return nil
		}
		a.settings.SetWindowResolution(int(w), int(h))
		if err := a.settings.LoadGfxSettings(); err != nil {
			a.logger.Errorf("swapchain recreation failed: %s", err)
			return err
		}
		slot = a.env.Clock.CurrentFrameIndex()
		sync = a.backend.FrameSync(slot)
	}

	imageIndex, result, err := a.backend.AcquireNextImage(sync)
	if err != nil {
		a.frameFailed("acquire next image", err)
		return nil
	}
	switch result {
	case queue.PresentOutOfDate:
		a.presentStale.Store(true)
		a.skipped++
		return nil
	case queue.PresentSuboptimal:
		a.presentStale.Store(true)
	}

	buffers, err := a.record(slot, imageIndex)
	if err != nil {
		a.acquiredFrameFailed("record", err)
		return nil
	}
	// Reset only once the submission that signals it is certain to be queued.
	if err := a.backend.ResetFence(sync.InFlight); err != nil {
		a.acquiredFrameFailed("reset in-flight fence", err)
		return nil
	}
	if err := a.submit(slot, imageIndex, sync, buffers); err != nil {
		a.acquiredFrameFailed("submit frame", err)
		return nil
	}

	if err := a.settings.LaunchCallbacksAfterDraws(); err != nil {
		a.logger.Errorf("after-draw callbacks: %s", err)
	}
	a.cleanPluginObjects()
	a.env.Clock.AdvanceFrame()
	a.frames++

	a.clock.Update()
	if a.metrics.Update(a.clock.Elapsed()) {
		a.logger.Debugf("fps: %.0f (%.2fms, theoretical %.0f)", a.metrics.FPS(), a.metrics.FrameTime(), a.metrics.TheoreticalFPS())
	}
	a.clock.Start()
	return nil
}

// tickTrash closes a trash epoch once per frame boundary. Skipped frames do
// not advance the clock and must not reclaim anything.
func (a *GraphicsApplication) tickTrash() {
	epoch := a.env.Clock.Epoch() + 1
	if a.trashEpoch == epoch {
		return
	}
	a.trashEpoch = epoch
	a.env.Trash.Tick()
}

func (a *GraphicsApplication) needsRecreate() bool {
	return a.framebufferChanged.Load() || a.presentStale.Load() || a.deviceLost.Load()
}

func (a *GraphicsApplication) record(slot int, imageIndex uint32) ([3]queue.CommandBuffer, error) {
	if a.scene.GUI != nil {
		a.scene.GUI()
	}

	var buffers [3]queue.CommandBuffer
	for i, stage := range []Stage{StageSkybox, StageShadow, StageScene} {
		cmd, err := a.backend.Record(Recording{
			Slot:       slot,
			ImageIndex: imageIndex,
			Stage:      stage,
			Scene:      &a.scene,
			Passes:     a.passes,
			Settings:   a.settings.Data(),
			Color:      a.color,
			Shadow:     a.shadow,
		})
		if err != nil {
			return buffers, core.Errorf(core.Failure, "record %s: %w", stage, err)
		}
		buffers[i] = cmd
	}
	return buffers, nil
}

// submit queues the three stages and the present. The skybox waits for the
// acquired image; the scene waits for skybox and shadows and signals the
// in-flight fence.
func (a *GraphicsApplication) submit(slot int, imageIndex uint32, sync FrameSync, buffers [3]queue.CommandBuffer) error {
	graphics := a.backend.GraphicsQueue()
	orders := []queue.Order{
		&queue.SubmitOrder{
			Queue:            graphics,
			WaitSemaphores:   []queue.Semaphore{sync.ImageAvailable},
			WaitStages:       []queue.PipelineStage{queue.StageColorAttachmentOutput},
			CommandBuffers:   []queue.CommandBuffer{buffers[StageSkybox]},
			SignalSemaphores: []queue.Semaphore{sync.SkyboxDone},
		},
		&queue.SubmitOrder{
			Queue:            graphics,
			CommandBuffers:   []queue.CommandBuffer{buffers[StageShadow]},
			SignalSemaphores: []queue.Semaphore{sync.ShadowDone},
		},
		&queue.SubmitOrder{
			Queue:            graphics,
			Fence:            sync.InFlight,
			WaitSemaphores:   []queue.Semaphore{sync.SkyboxDone, sync.ShadowDone},
			WaitStages:       []queue.PipelineStage{queue.StageColorAttachmentOutput, queue.StageFragmentShader},
			CommandBuffers:   []queue.CommandBuffer{buffers[StageScene]},
			SignalSemaphores: []queue.Semaphore{sync.RenderFinished},
		},
		&queue.PresentOrder{
			Queue:          a.backend.PresentQueue(),
			WaitSemaphores: []queue.Semaphore{sync.RenderFinished},
			Swapchains:     []queue.Swapchain{a.backend.Swapchain()},
			ImageIndices:   []uint32{imageIndex},
			Done:           a.onPresented,
		},
	}
	for _, o := range orders {
		if err := a.pool.AddQueueOrder(slot, o); err != nil {
			return err
		}
	}
	return nil
}

// onPresented runs on the queue worker.
func (a *GraphicsApplication) onPresented(result queue.PresentResult, err error) {
	if err != nil || result.NeedsRecreate() {
		a.presentStale.Store(true)
	}
}

// acquiredFrameFailed skips a frame whose image was acquired but never
// presented. The slot's ImageAvailable semaphore stays signaled, so the sync
// objects are renewed by a recreation before the next acquire.
func (a *GraphicsApplication) acquiredFrameFailed(step string, err error) {
	a.presentStale.Store(true)
	a.frameFailed(step, err)
}

func (a *GraphicsApplication) frameFailed(step string, err error) {
	a.skipped++
	if errors.Is(err, core.DeviceLost) {
		a.deviceLost.Store(true)
		a.logger.Errorf("device lost during %s, recreating: %s", step, err)
		return
	}
	a.logger.Errorf("frame skipped, %s failed: %s", step, err)
}
