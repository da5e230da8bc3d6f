package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "localhost:3000", cfg.Server.Addr())
	assert.Equal(t, "./test-data", cfg.Files.Path)
	assert.Equal(t, []string{".det", ".pou", ".prt"}, cfg.Files.Extensions)
	assert.Equal(t, int64(10*1024*1024), cfg.Files.MaxSize)
	assert.True(t, cfg.Files.ScanOnStartup)
	assert.Equal(t, ".metadata", cfg.Metadata.Dir)
	assert.Equal(t, 3, cfg.Queue.Concurrency)
	assert.Equal(t, 500*time.Millisecond, cfg.Watcher.StabilityThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Watcher.PollInterval)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engview.yaml")
	content := `
server:
  port: 8080
files:
  path: /data/engines
  extensions: [".det", ".pou"]
queue:
  concurrency: 5
watcher:
  stability_threshold: 2s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("ENGVIEW_SERVER_HOST", "0.0.0.0")
	t.Setenv("ENGVIEW_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "/data/engines", cfg.Files.Path)
	assert.Equal(t, []string{".det", ".pou"}, cfg.Files.Extensions)
	assert.Equal(t, 5, cfg.Queue.Concurrency)
	assert.Equal(t, 2*time.Second, cfg.Watcher.StabilityThreshold)
	assert.Equal(t, 100*time.Millisecond, cfg.Watcher.PollInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Empty(t, cfg.File)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"empty path", func(c *Config) { c.Files.Path = " " }, "files.path"},
		{"no extensions", func(c *Config) { c.Files.Extensions = nil }, "files.extensions"},
		{"no concurrency", func(c *Config) { c.Queue.Concurrency = 0 }, "queue.concurrency"},
		{"empty metadata dir", func(c *Config) { c.Metadata.Dir = "" }, "metadata.dir"},
		{"zero poll", func(c *Config) { c.Watcher.PollInterval = 0 }, "watcher durations"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestWriteYAMLIsLoadable(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 8081
	cfg.Watcher.StabilityThreshold = 2 * time.Second

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))
	assert.Contains(t, buf.String(), "stability_threshold: 2s")

	path := filepath.Join(t.TempDir(), "engview.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8081, loaded.Server.Port)
	assert.Equal(t, 2*time.Second, loaded.Watcher.StabilityThreshold)
	assert.Equal(t, cfg.Files, loaded.Files)
}
