package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_PopulatesAllAxes(t *testing.T) {
	cfg := Default()
	for i, a := range cfg.Axis {
		assert.Greaterf(t, a.StepsPerUnit, 0.0, "axis %d", i)
		assert.Greaterf(t, a.MaxJerk, 0.0, "axis %d", i)
	}
	assert.Equal(t, 32, cfg.RingSize)
}

func TestLoad_OverridesOnlySpecifiedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "motion.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
ring_size = 16

[[axis]]
steps_per_unit = 800
max_velocity = 600
max_jerk = 50000000
junction_deviation = 0.05
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 16, cfg.RingSize)
	assert.Equal(t, 800.0, cfg.Axis[0].StepsPerUnit)
	// Tolerances were never in the file, so the Default() seed is retained.
	assert.Equal(t, Default().Tolerance, cfg.Tolerance)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
