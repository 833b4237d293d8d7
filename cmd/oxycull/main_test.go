package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { common.SetLogger(nil) })

	cmd := newRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoot_RejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nbackend = \"vulkan\"\n"), 0o600))

	_, err := execute(t, "--config", path, "shaders")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "renderer.backend")
}

func TestRoot_RejectsBadLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "shaders")
	assert.Error(t, err)
}

func TestShaders_ReportsEveryStage(t *testing.T) {
	out, _ := execute(t, "shaders")
	for _, key := range []string{"filter", "compact", "light", "shadow", "visibility"} {
		assert.Contains(t, out, key)
	}
}

func TestBench_PrintsSummary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.toml")
	cfg := "[window]\nwidth = 320\nheight = 180\n[shadow]\nmap_size = 256\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, err := execute(t, "--config", path, "bench", "-n", "3", "--grid", "1", "--lights", "2", "--workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "frames")
	assert.Contains(t, out, "3 (0 aborted)")
	assert.Contains(t, out, "procedural-1x1")
}

func TestBench_RejectsZeroFrames(t *testing.T) {
	_, err := execute(t, "bench", "-n", "0")
	assert.Error(t, err)
}
