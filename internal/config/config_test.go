package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Detection.Confidence)
	assert.Equal(t, 0.45, cfg.Detection.NMSThreshold)
	assert.Equal(t, 2, cfg.Detection.SkipFrames)
	assert.Equal(t, 10, cfg.Detection.Lookahead)
	assert.Equal(t, 201, cfg.Blur.Strength)
	assert.Equal(t, "ellipse", cfg.Blur.Shape)
	assert.Equal(t, 18, cfg.Blur.Quality)
	assert.Equal(t, 0.05, cfg.Audio.CensorPadding)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NotEmpty(t, cfg.Models.Dir)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 201, cfg.Blur.Strength)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
detection:
  confidence: 0.7
  skip_frames: 3
blur:
  strength: 101
  shape: rect
logging:
  level: debug
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.7, cfg.Detection.Confidence)
	assert.Equal(t, 3, cfg.Detection.SkipFrames)
	assert.Equal(t, 101, cfg.Blur.Strength)
	assert.Equal(t, "rect", cfg.Blur.Shape)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep defaults.
	assert.Equal(t, 10, cfg.Detection.Lookahead)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FG_BLUR_STRENGTH", "51")
	t.Setenv("FG_BLUR_SHAPE", "rect")
	t.Setenv("FG_LOOKAHEAD", "4")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 51, cfg.Blur.Strength)
	assert.Equal(t, "rect", cfg.Blur.Shape)
	assert.Equal(t, 4, cfg.Detection.Lookahead)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
