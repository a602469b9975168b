// Package kinematics maps a Cartesian travel delta and a duration to
// per-motor signed step counts. It is a pure function with no allocation
// and no I/O, per spec.md §4.1.
package kinematics

import (
	"math"

	"github.com/Leealpha1/TinyG/internal/motion/config"
)

// Machine converts Cartesian travel into per-motor step counts using each
// axis's configured steps_per_unit. This build is direct-drive: motor i
// corresponds to axis i, one-to-one.
type Machine struct {
	stepsPerUnit [config.Axes]float64
}

// New builds a Machine from the given per-axis configuration.
func New(cfg config.Config) *Machine {
	m := &Machine{}
	for i := 0; i < config.Axes; i++ {
		m.stepsPerUnit[i] = cfg.Axis[i].StepsPerUnit
	}
	return m
}

// Steps maps travel (engineering units per axis) and duration (microseconds,
// passed through unused here so axis-local rate limiting can be applied by
// the step driver that consumes the result) to signed per-motor step counts.
//
// The unit vector returned is travel normalized to length 1, or the zero
// vector for zero-length travel.
func (m *Machine) Steps(travel [config.Axes]float64, durationUS float64, out *[config.Motors]int32) (unit [config.Axes]float64) {
	var lenSq float64
	for i := 0; i < config.Axes; i++ {
		lenSq += travel[i] * travel[i]
	}
	length := math.Sqrt(lenSq)
	if length > 0 {
		for i := 0; i < config.Axes; i++ {
			unit[i] = travel[i] / length
		}
	}
	for i := 0; i < config.Motors; i++ {
		out[i] = int32(math.Round(travel[i] * m.stepsPerUnit[i]))
	}
	return unit
}
