package motion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/metrics"
	"github.com/Leealpha1/TinyG/internal/motion/runtime"
	"github.com/Leealpha1/TinyG/internal/motion/status"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

func newTestMotion(t *testing.T) (*Controller, *timer.SimDriver) {
	t.Helper()
	cfg := config.Default()
	cfg.RingSize = 8
	drv := timer.NewSimDriver()
	c := New(Config{Motion: cfg, Driver: drv, Metrics: metrics.New()})
	return c, drv
}

func TestController_SubmitLineAdvancesPlanPosition(t *testing.T) {
	c, _ := newTestMotion(t)
	var target block.Vector
	target[0] = 50
	require.Equal(t, status.OK, c.SubmitLine(target, 5))
	assert.Equal(t, target, c.GetPlanPosition())
}

func TestController_SubmitAlineThenTickDrainsToIdle(t *testing.T) {
	c, _ := newTestMotion(t)
	var target block.Vector
	target[0] = 20
	require.Equal(t, status.OK, c.SubmitAline(target, 20.0/3000)) // 3000 mm/min feed

	assert.True(t, c.IsBusy())
	for i := 0; i < 100000 && c.IsBusy(); i++ {
		c.Tick()
	}
	assert.False(t, c.IsBusy())
	assert.InDelta(t, target[0], c.GetRuntimePosition(0), 1.0)
}

func TestController_SubmitDwellRejectsNonPositive(t *testing.T) {
	c, _ := newTestMotion(t)
	assert.Equal(t, status.ZeroLengthMove, c.SubmitDwell(0))
}

func TestController_SubmitMCodeRoutesToCallback(t *testing.T) {
	cfg := config.Default()
	cfg.RingSize = 8
	drv := timer.NewSimDriver()
	var stopped bool
	c := New(Config{Motion: cfg, Driver: drv, MCode: runtime.MCodeCallbacks{
		ProgramStop: func() { stopped = true },
	}})
	require.Equal(t, status.OK, c.SubmitMCode(runtime.MCodeProgramStop))
	require.Equal(t, status.OK, c.Tick())
	assert.True(t, stopped)
}

func TestController_SetUnitsScalesInchTargetsToMM(t *testing.T) {
	c, _ := newTestMotion(t)
	c.SetUnits(UnitsInch)
	var target block.Vector
	target[0] = 1 // 1 inch
	require.Equal(t, status.OK, c.SubmitLine(target, 1))
	assert.InDelta(t, mmPerInch, c.GetPlanPosition()[0], 1e-9)
}

func TestController_SetCoordinateSystemOffsetsTargets(t *testing.T) {
	c, _ := newTestMotion(t)
	var offset config.Offsets
	offset[0] = 10
	require.NoError(t, c.SetCoordinateSystem(1, offset))
	require.NoError(t, c.UseCoordinateSystem(1))

	var target block.Vector
	target[0] = 5
	require.Equal(t, status.OK, c.SubmitLine(target, 1))
	assert.InDelta(t, 15, c.GetPlanPosition()[0], 1e-9)
}

func TestController_SetCoordinateSystemRejectsOutOfRange(t *testing.T) {
	c, _ := newTestMotion(t)
	assert.ErrorIs(t, c.SetCoordinateSystem(0, config.Offsets{}), ErrUnknownCoordinateSystem)
	assert.ErrorIs(t, c.SetCoordinateSystem(config.Axes+1, config.Offsets{}), ErrUnknownCoordinateSystem)
}

func TestController_FlushPlannerResetsBusyState(t *testing.T) {
	c, _ := newTestMotion(t)
	var target block.Vector
	target[0] = 20
	require.Equal(t, status.OK, c.SubmitAline(target, 20.0/3000))
	require.True(t, c.IsBusy())

	c.FlushPlanner()
	assert.False(t, c.IsBusy())
}

func TestController_OnBackpressureFiresWhenRingFull(t *testing.T) {
	cfg := config.Default()
	cfg.RingSize = 3
	drv := timer.NewSimDriver()
	var fired int
	c := New(Config{Motion: cfg, Driver: drv, OnBackpressure: func() { fired++ }})

	var target block.Vector
	for i := 0; i < cfg.RingSize-1; i++ {
		target[0] += 1
		require.Equal(t, status.OK, c.SubmitAline(target, 1))
	}
	target[0] += 1
	assert.Equal(t, status.EAgain, c.SubmitAline(target, 1))
	assert.Equal(t, 1, fired)
}

func TestController_StatusDueFiresAfterInterval(t *testing.T) {
	cfg := config.Default()
	cfg.RingSize = 8
	drv := timer.NewSimDriver()
	c := New(Config{Motion: cfg, Driver: drv, StatusInterval: 2})

	var target block.Vector
	target[0] = 30
	require.Equal(t, status.OK, c.SubmitAline(target, 30.0/3000))

	due := 0
	for i := 0; i < 10000 && c.IsBusy(); i++ {
		c.Tick()
		if c.StatusDue() {
			due++
		}
	}
	assert.GreaterOrEqual(t, due, 1)
}

func TestController_FeedholdStopsMotionAndReleasesOnCycleStart(t *testing.T) {
	c, _ := newTestMotion(t)
	var target block.Vector
	target[0] = 100
	require.Equal(t, status.OK, c.SubmitAline(target, 100.0/3000))

	c.Tick() // starts the cycle, enters MotionRun
	c.Feedhold()

	for i := 0; i < 100000 && c.FeedholdState() != 4; i++ { // 4 == HoldHeld
		c.Tick()
	}
	assert.Equal(t, 4, int(c.FeedholdState()))

	c.CycleStart()
	c.Tick()
	assert.Equal(t, 0, int(c.FeedholdState())) // HoldOff
}
