package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Fixed engine limits. They are compile-time so every frame-indexed array
// in the backends can be sized from them.
const (
	MaxFramesInFlight    = 3
	MaxEntities          = 65536
	MaxBindlessTextures  = 4096
	MaxDynamicTextures   = 32
	MaxLights            = 128
	MaxDirectionalLights = 4
)

// Backend identifiers understood by the plugin manager.
const (
	GraphicsBackendVulkan  = "vulkan"
	GraphicsBackendNull    = "null"
	ContextBackendGLFW     = "glfw"
	ContextBackendHeadless = "headless"
)

const DefaultConfigFile = "venom.toml"

type EngineConfig struct {
	Name      string   `toml:"name"`
	LogLevel  LogLevel `toml:"log_level"`
	PosX      uint32   `toml:"pos_x"`
	PosY      uint32   `toml:"pos_y"`
	Width     uint32   `toml:"width"`
	Height    uint32   `toml:"height"`
	TargetFPS uint32   `toml:"target_fps"` // zero disables the frame limiter
	// AssetDirs are watched for changes invalidating cached resources.
	AssetDirs []string `toml:"asset_dirs"`
}

type PluginsConfig struct {
	Graphics string `toml:"graphics"`
	Context  string `toml:"context"`
}

type GraphicsConfig struct {
	MultiSamplingMode  string `toml:"multisampling_mode"`
	MultiSamplingCount int    `toml:"multisampling_count"`
	HDR                bool   `toml:"hdr"`
	VSync              bool   `toml:"vsync"`
	Validation         bool   `toml:"validation"`
}

// Config is the process-wide configuration. It is read once at startup and
// never reloaded.
type Config struct {
	Engine   EngineConfig   `toml:"engine"`
	Plugins  PluginsConfig  `toml:"plugins"`
	Graphics GraphicsConfig `toml:"graphics"`
}

func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Name:      "Venom Engine",
			LogLevel:  LogLevelDebug,
			PosX:      100,
			PosY:      100,
			Width:     1280,
			Height:    720,
			TargetFPS: 0,
			AssetDirs: []string{"assets"},
		},
		Plugins: PluginsConfig{
			Graphics: GraphicsBackendVulkan,
			Context:  ContextBackendGLFW,
		},
		Graphics: GraphicsConfig{
			MultiSamplingMode:  "msaa",
			MultiSamplingCount: 4,
			HDR:                false,
			VSync:              true,
			Validation:         true,
		},
	}
}

// LoadConfig reads path on top of the defaults. A missing file is not an
// error, the defaults are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			LogInfo("no configuration file at `%s`, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := ParseConfig(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseConfig decodes TOML data into cfg and validates the result.
func ParseConfig(data []byte, cfg *Config) error {
	if err := toml.Unmarshal(data, cfg); err != nil {
		return Errorf(InvalidArgument, "failed to decode configuration: %w", err)
	}
	return cfg.Validate()
}

func (c *Config) Validate() error {
	if c.Plugins.Graphics == "" {
		return Errorf(InvalidArgument, "no graphics backend configured")
	}
	if c.Plugins.Context == "" {
		return Errorf(InvalidArgument, "no context backend configured")
	}
	if c.Engine.Width == 0 || c.Engine.Height == 0 {
		return Errorf(InvalidArgument, "invalid window extent %dx%d", c.Engine.Width, c.Engine.Height)
	}
	return nil
}

// Marshal encodes the configuration, used to write a default file.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}
