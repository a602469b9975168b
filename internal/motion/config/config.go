// Package config holds the declarative, load-once configuration for the
// motion core: per-axis kinematic limits and the global planner/executor
// tuning constants named in spec.md §6.
//
// Grounded on the pack's common use of github.com/BurntSushi/toml for
// plain declarative configuration (see SPEC_FULL.md §2.3).
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Axes is the number of Cartesian axes the core plans over (X, Y, Z, A, B, C).
const Axes = 6

// Motors is the number of physical step motors kinematics emits to. This
// build targets direct-drive machines (one motor per axis); CoreXY/delta
// kinematics would change this mapping, not this constant's meaning.
const Motors = 6

// AxisConfig holds the kinematic limits for a single axis.
type AxisConfig struct {
	StepsPerUnit      float64 `toml:"steps_per_unit"`
	MaxVelocity       float64 `toml:"max_velocity"`
	MaxJerk           float64 `toml:"max_jerk"`
	JunctionDeviation float64 `toml:"junction_deviation"`
}

// Tolerances groups the numerical fudge factors used throughout §4.5.
type Tolerances struct {
	Length           float64 `toml:"length"`             // ε
	Velocity         float64 `toml:"velocity"`            // τ_v
	SectionLength    float64 `toml:"section_length"`      // τ_L
	ShortLineFactor  float64 `toml:"short_line_factor"`   // ~1.1
	AsymConvergence  float64 `toml:"asym_convergence"`    // ι, e.g. 0.01
	AsymMaxIteration int     `toml:"asym_max_iterations"` // cap, e.g. 20
	MinSectionLength float64 `toml:"min_section_length"`  // absorbed into neighbors below this
}

// Config is the complete, load-once configuration for the motion core.
type Config struct {
	Axis [Axes]AxisConfig `toml:"axis"`

	JunctionAcceleration   float64    `toml:"junction_acceleration"`
	RingSize               int        `toml:"ring_size"`
	EstimatedSegmentMicros float64    `toml:"estimated_segment_micros"`
	MinLineLength          float64    `toml:"min_line_length"`
	Tolerance              Tolerances `toml:"tolerance"`
}

// Offsets is a settable per-coordinate-system work offset, applied between
// the canonical machine position and the planner's target (SPEC_FULL.md
// §4 supplement 1 — TinyG G54-G59 work offsets).
type Offsets [Axes]float64

// Default returns the configuration pinned by spec.md §8's end-to-end
// scenarios: jerk_max = 5e7, junction_acceleration = 2e5, a 32-slot ring.
func Default() Config {
	var cfg Config
	for i := range cfg.Axis {
		cfg.Axis[i] = AxisConfig{
			StepsPerUnit:      320, // e.g. 1.8deg/step, 1/8 microstep, 5mm/rev leadscrew
			MaxVelocity:       600, // mm/min equivalent caps enforced by callers
			MaxJerk:           5e7,
			JunctionDeviation: 0.05,
		}
	}
	cfg.JunctionAcceleration = 2e5
	cfg.RingSize = 32
	cfg.EstimatedSegmentMicros = 1500
	cfg.MinLineLength = 0.001
	cfg.Tolerance = Tolerances{
		Length:           1e-6,
		Velocity:         1e-3,
		SectionLength:    1e-6,
		ShortLineFactor:  1.1,
		AsymConvergence:  0.01,
		AsymMaxIteration: 20,
		MinSectionLength: 1e-4,
	}
	return cfg
}

// Load reads a TOML configuration file, starting from Default() so a
// partial file only needs to override what differs from the defaults.
// The [[axis]] entries override axes 0, 1, ... in order; axes the file does
// not list keep their Default() values.
func Load(path string) (Config, error) {
	// The outer Axis slice shadows Config.Axis, so a file may list fewer
	// than Axes entries (a TOML array cannot decode into a Go array of a
	// different length).
	var file struct {
		Config
		Axis []AxisConfig `toml:"axis"`
	}
	file.Config = Default()
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	cfg := file.Config
	for i := 0; i < len(file.Axis) && i < Axes; i++ {
		cfg.Axis[i] = file.Axis[i]
	}
	return cfg, nil
}
