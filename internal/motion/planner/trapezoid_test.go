package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func defaultTol() TrapezoidTolerances {
	return TrapezoidTolerances{
		Length:           1e-6,
		Velocity:         1e-3,
		SectionLength:    1e-6,
		ShortLineFactor:  1.1,
		AsymConvergence:  0.01,
		AsymMaxIteration: 20,
		MinSectionLength: 1e-4,
	}
}

const jerk = 5e7

func TestTrapezoid_StraightLongLine(t *testing.T) {
	// spec.md §8 scenario 1: 100mm X move, 600mm/min => 10mm/s cruise,
	// starting and ending at rest.
	tr := ComputeTrapezoid(0, 10, 0, 100, jerk, defaultTol())
	assert.InDelta(t, 100, tr.Head+tr.Body+tr.Tail, 1e-6)
	assert.Greater(t, tr.Body, 0.0)
	assert.Zero(t, tr.Entry)
	assert.Zero(t, tr.Exit)
}

func TestTrapezoid_ShortLineBelowMinTransition(t *testing.T) {
	// spec.md §8 scenario 2: 0.8mm submitted at 400mm/s requested; the
	// achievable cruise is bounded by jerk, so it degrades to symmetric HT.
	tr := ComputeTrapezoid(0, 400, 0, 0.8, jerk, defaultTol())
	assert.InDelta(t, 0.4, tr.Head, 1e-9)
	assert.InDelta(t, 0.4, tr.Tail, 1e-9)
	assert.InDelta(t, 0, tr.Body, 1e-9)
	assert.InDelta(t, 200, tr.Cruise, 2)
}

func TestTrapezoid_ZeroLength(t *testing.T) {
	tr := ComputeTrapezoid(5, 10, 5, 0, jerk, defaultTol())
	assert.Zero(t, tr.Head)
	assert.Zero(t, tr.Body)
	assert.Zero(t, tr.Tail)
}

func TestTrapezoid_BodyOnly(t *testing.T) {
	tr := ComputeTrapezoid(10, 10, 10, 50, jerk, defaultTol())
	assert.InDelta(t, 50, tr.Body, 1e-9)
	assert.Zero(t, tr.Head)
	assert.Zero(t, tr.Tail)
}

func TestTrapezoid_DegradedCaseObservedBehavior(t *testing.T) {
	// SPEC_FULL.md §5 open-question pin: when Ve < Vx and the line is too
	// short to reach Vx, the *exit* (the higher endpoint) is degraded down
	// to what's reachable, not the entry.
	ve, vx := 0.0, 1000.0
	length := 0.05 // much shorter than targetLength(ve, vx, jerk)
	tr := ComputeTrapezoid(ve, 1000, vx, length, jerk, defaultTol())
	assert.InDelta(t, length, tr.Head, 1e-9)
	assert.Zero(t, tr.Tail)
	assert.Less(t, tr.Exit, vx)
	assert.InDelta(t, tr.Cruise, tr.Exit, 1e-9)
}

func TestTrapezoid_HeadBodyTailSumsInvariant(t *testing.T) {
	cases := []struct{ ve, vt, vx, length float64 }{
		{0, 10, 0, 100},
		{0, 400, 0, 0.8},
		{5, 20, 5, 10},
		{0, 1000, 1000, 50},
		{1000, 1000, 0, 50},
		{3, 3.0005, 3, 5},
	}
	tol := defaultTol()
	for _, c := range cases {
		tr := ComputeTrapezoid(c.ve, c.vt, c.vx, c.length, jerk, tol)
		assert.InDelta(t, c.length, tr.Head+tr.Body+tr.Tail, tol.SectionLength*10,
			"ve=%v vt=%v vx=%v length=%v", c.ve, c.vt, c.vx, c.length)
	}
}

func TestTargetLengthTargetVelocityRoundTrip(t *testing.T) {
	for _, vi := range []float64{0, 5, 50} {
		for _, l := range []float64{0.01, 1, 10, 100} {
			vt := targetVelocity(vi, l, jerk)
			gotL := targetLength(vi, vt, jerk)
			assert.InDelta(t, l, gotL, math.Max(l*1e-6, 1e-9))
		}
	}
}
