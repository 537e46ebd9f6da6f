package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	data := []byte(`
[engine]
name = "testbed"
width = 800

[plugins]
graphics = "null"
context = "headless"

[graphics]
multisampling_count = 8
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "testbed", cfg.Engine.Name)
	assert.Equal(t, uint32(800), cfg.Engine.Width)
	assert.Equal(t, uint32(720), cfg.Engine.Height)
	assert.Equal(t, GraphicsBackendNull, cfg.Plugins.Graphics)
	assert.Equal(t, ContextBackendHeadless, cfg.Plugins.Context)
	assert.Equal(t, 8, cfg.Graphics.MultiSamplingCount)
	assert.Equal(t, "msaa", cfg.Graphics.MultiSamplingMode)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cfg := DefaultConfig()
	err := ParseConfig([]byte("[plugins]\ngraphics = \"\"\n"), cfg)
	assert.ErrorIs(t, err, InvalidArgument)

	err = ParseConfig([]byte("not toml ==="), DefaultConfig())
	assert.ErrorIs(t, err, InvalidArgument)
}

func TestConfigMarshalRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	data, err := cfg.Marshal()
	require.NoError(t, err)

	decoded := &Config{}
	require.NoError(t, ParseConfig(data, decoded))
	assert.Equal(t, cfg, decoded)
}
