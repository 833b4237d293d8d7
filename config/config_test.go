package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	assert.False(t, Default().Renderer.ClusterSort, "cluster sort is opt-in")
}

func TestDecode_OverridesDefaults(t *testing.T) {
	src := `
[renderer]
backend = "software"
render_mode = "deferred"
async_compute = false
cluster_sort = true

[window]
width = 640
height = 360

[log]
level = "debug"
`
	cfg, err := Decode(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, "software", cfg.Renderer.Backend)
	assert.Equal(t, "deferred", cfg.Renderer.RenderMode)
	assert.False(t, cfg.Renderer.AsyncCompute)
	assert.True(t, cfg.Renderer.ClusterSort)
	assert.Equal(t, 640, cfg.Window.Width)
	assert.Equal(t, "oxy-cull", cfg.Window.Title, "unset keys keep defaults")
	assert.Equal(t, float32(60), cfg.Camera.FovY)
}

func TestDecode_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown key", "[renderer]\nbogus = 1\n"},
		{"unknown backend", "[renderer]\nbackend = \"vulkan\"\n"},
		{"bad render mode", "[renderer]\nrender_mode = \"forward\"\n"},
		{"bad window", "[window]\nwidth = 0\n"},
		{"bad depth range", "[camera]\nnear = 10.0\nfar = 1.0\n"},
		{"bad level", "[log]\nlevel = \"loud\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestDecode_TooManyLightsIsCapacityError(t *testing.T) {
	_, err := Decode(strings.NewReader("[scene]\nlights = 5000\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCapacity))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oxycull.toml")
	require.NoError(t, os.WriteFile(path, []byte("[scene]\nprocedural = 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Scene.Procedural)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	l, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, l)
}
