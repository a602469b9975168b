package feedhold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/kinematics"
	"github.com/Leealpha1/TinyG/internal/motion/planner"
	"github.com/Leealpha1/TinyG/internal/motion/runtime"
	"github.com/Leealpha1/TinyG/internal/motion/status"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

type fakeReporter struct{ calls int }

func (f *fakeReporter) OnHoldComplete() { f.calls++ }

func newTestController(t *testing.T) (*Controller, *block.Buffer, *planner.Planner, *runtime.State, *runtime.Preparer, *fakeReporter) {
	t.Helper()
	cfg := config.Default()
	buf := block.NewBuffer(8)
	pl := planner.New(buf, cfg, nil)
	kin := kinematics.New(cfg)
	drv := timer.NewSimDriver()
	st := runtime.NewState()
	prep := runtime.NewPreparer(kin, drv, cfg, st)
	rep := &fakeReporter{}
	return New(buf, pl, st, prep, cfg, rep), buf, pl, st, prep, rep
}

func TestFeedhold_NoopWhenNotRunning(t *testing.T) {
	c, _, _, _, _, _ := newTestController(t)
	c.Feedhold()
	assert.Equal(t, HoldOff, c.State())
}

func TestFeedhold_SyncRequestedWhileRunning(t *testing.T) {
	c, _, _, st, _, _ := newTestController(t)
	st.SetMotion(runtime.MotionRun)
	c.Feedhold()
	assert.Equal(t, HoldSync, c.State())
}

func TestFeedhold_FullSyncPlanDecelHoldSequence(t *testing.T) {
	c, buf, pl, st, prep, rep := newTestController(t)

	var target block.Vector
	target[0] = 100
	require.Equal(t, status.OK, pl.SubmitAline(target, 10))

	blk := buf.GetRun()
	require.NotNil(t, blk)
	prep.LoadBlock(blk)

	st.SetMotion(runtime.MotionRun)
	c.Feedhold()
	require.Equal(t, HoldSync, c.State())

	c.OnSegmentEnd(blk)
	assert.Equal(t, HoldPlan, c.State())

	advanced := c.PlannerTick()
	assert.True(t, advanced)
	assert.Equal(t, HoldDecel, c.State())
	assert.True(t, blk.HoldPoint)

	blk.MoveState = block.MoveStateOff
	c.OnSegmentEnd(blk)
	assert.Equal(t, HoldHeld, c.State())
	assert.Equal(t, runtime.MotionHold, st.Motion())
	assert.Equal(t, 1, rep.calls)

	c.CycleStart()
	assert.Equal(t, HoldEndHold, c.State())

	c.EndHoldCallback()
	assert.Equal(t, HoldOff, c.State())
	assert.False(t, blk.HoldPoint)
	assert.Equal(t, runtime.MotionRun, st.Motion())
}
