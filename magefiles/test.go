//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Test mg.Namespace

// Runs every package test with the race detector.
func (Test) All() error {
	// The race detector needs cgo, which the Vulkan and GLFW bindings use anyway.
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withEnv("CGO_ENABLED=1"), withStream())
	return err
}

// Runs the tests that need no GPU nor window.
func (Test) Headless() error {
	_, err := executeCmd("go", withArgs("test", "./engine/core/...", "./engine/frame/...", "./engine/trash/...",
		"./engine/plugin/...", "./engine/cache/...", "./engine/containers/...", "./engine/renderer",
		"./engine/renderer/null/...", "./engine/renderer/pass/...", "./engine/renderer/queue/...", "./engine/renderer/settings/..."), withStream())
	return err
}
