package planner

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
)

func deviationVector(d float64) (out [config.Axes]float64) {
	for i := range out {
		out[i] = d
	}
	return out
}

func TestJunctionVelocity_Collinear(t *testing.T) {
	var a, b block.Vector
	a[0], b[0] = 1, 1
	v := junctionVelocity(a, b, deviationVector(0.05), 2e5)
	assert.True(t, math.IsInf(v, 1))
}

func TestJunctionVelocity_Reversal(t *testing.T) {
	var a, b block.Vector
	a[0], b[0] = 1, -1
	v := junctionVelocity(a, b, deviationVector(0.05), 2e5)
	assert.Zero(t, v)
}

func TestJunctionVelocity_RightAngleCorner(t *testing.T) {
	// spec.md §8 scenario 4: 10mm X then 10mm Y, delta=0.05, accel=2e5.
	var a, b block.Vector
	a[0] = 1
	b[1] = 1
	v := junctionVelocity(a, b, deviationVector(0.05), 2e5)
	assert.InDelta(t, 155, v, 3)
}

func TestJunctionVelocity_MonotoneInCosTheta(t *testing.T) {
	// as the corner sharpens (cosTheta increases from -0.9 to +0.9), the
	// junction velocity should strictly decrease.
	dev := deviationVector(0.05)
	prev := math.Inf(1)
	for cosTheta := -0.9; cosTheta <= 0.9; cosTheta += 0.1 {
		// construct a,b with a . b = -cosTheta (a=(1,0), b=(cosTheta is dot of a,b))
		theta := math.Acos(-cosTheta)
		var a, b block.Vector
		a[0] = 1
		b[0] = math.Cos(theta)
		b[1] = math.Sin(theta)
		v := junctionVelocity(a, b, dev, 2e5)
		assert.Less(t, v, prev, "cosTheta=%v", cosTheta)
		prev = v
	}
}
