//go:build mage

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

const shadersDir = "assets/shaders"

// Compiles every shader.vert and shader.frag under assets/shaders into the
// vert.spv and frag.spv modules the engine loads.
func (Build) Shaders() error {
	sources, err := shaderSources(shadersDir)
	if err != nil {
		return err
	}
	for _, src := range sources {
		stage := strings.TrimPrefix(filepath.Ext(src), ".")
		out := filepath.Join(filepath.Dir(src), stage+".spv")
		if _, err := executeCmd("glslc", withArgs(src, "-o", out), withStream()); err != nil {
			return err
		}
	}
	fmt.Printf("compiled %d shader stages\n", len(sources))
	return nil
}

func shaderSources(root string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipDir
			}
			return err
		}
		switch filepath.Base(path) {
		case "shader.vert", "shader.frag":
			sources = append(sources, path)
		}
		return nil
	})
	return sources, err
}
