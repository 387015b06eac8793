package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/session"
	"github.com/ayusman/mudra/internal/store"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, session.DefaultTiming(), cfg.Timing())
	assert.Equal(t, store.MemoryPath, cfg.Store.Path)
}

func TestLoad_EmptyPath(t *testing.T) {
	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[training]
goal = 5
no-hand-timeout-ms = 1500

[camera]
device = 2

[detector]
min-detection-confidence = 0.7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Training.Goal)
	assert.Equal(t, 1500*time.Millisecond, cfg.Timing().NoHandTimeout)
	assert.Equal(t, 2000*time.Millisecond, cfg.Timing().RecognitionCooldown, "unset keys keep defaults")
	assert.Equal(t, 2, cfg.Camera.Device)
	assert.InDelta(t, 0.7, cfg.DetectorOptions().MinConfidence, 1e-9)
	assert.Equal(t, 1, cfg.DetectorOptions().MaxHands)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "[training]\ngoal = 5\n")
	t.Setenv("MUDRA_TRAINING_GOAL", "8")
	t.Setenv("MUDRA_SERVER_ADDR", ":9000")
	t.Setenv("MUDRA_STORE_PATH", "/tmp/mudra.db")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Training.Goal)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "/tmp/mudra.db", cfg.Store.Path)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("MUDRA_CAMERA_FPS", "fast")

	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env")
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeConfig(t, "[training\ngoal = ")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode config")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero goal", func(c *Config) { c.Training.Goal = 0 }},
		{"negative cooldown", func(c *Config) { c.Training.CooldownMs = -1 }},
		{"zero suppression", func(c *Config) { c.Training.SuppressionMs = 0 }},
		{"zero timeout", func(c *Config) { c.Training.NoHandTimeoutMs = 0 }},
		{"zero fps", func(c *Config) { c.Camera.FPS = 0 }},
		{"no hands", func(c *Config) { c.Detector.MaxHands = 0 }},
		{"confidence above one", func(c *Config) { c.Detector.MinDetectionConfidence = 1.5 }},
		{"negative tracking", func(c *Config) { c.Detector.MinTrackingConfidence = -0.1 }},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }},
	}

	require.NoError(t, Default().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, ErrInvalid), "got %v", err)
		})
	}
}

func TestWrite_RoundTrips(t *testing.T) {
	cfg := Default()
	cfg.Training.Goal = 12

	var buf bytes.Buffer
	require.NoError(t, cfg.Write(&buf))

	var decoded Config
	_, err := toml.Decode(buf.String(), &decoded)
	require.NoError(t, err)
	assert.Equal(t, cfg, decoded)
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/cfg")
	t.Setenv("XDG_DATA_HOME", "/data")

	assert.Equal(t, filepath.Join("/cfg", "mudra", "config.toml"), DefaultConfigPath())
	assert.Equal(t, filepath.Join("/data", "mudra", "mudra.db"), DefaultDBPath())
}
