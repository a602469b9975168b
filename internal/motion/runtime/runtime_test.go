package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/kinematics"
	"github.com/Leealpha1/TinyG/internal/motion/status"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

func newTestPreparer(t *testing.T) (*Preparer, *timer.SimDriver) {
	t.Helper()
	cfg := config.Default()
	drv := timer.NewSimDriver()
	kin := kinematics.New(cfg)
	st := NewState()
	return NewPreparer(kin, drv, cfg, st), drv
}

func TestPreparer_BodyOnlyBlockDrainsToCompletion(t *testing.T) {
	prep, drv := newTestPreparer(t)

	blk := &block.Block{
		BodyLength:     50,
		CruiseVelocity: 600,
		Target:         block.Vector{0: 50},
	}
	blk.Unit[0] = 1
	blk.MoveState = block.MoveStateNew

	prep.LoadBlock(blk)
	assert.Equal(t, block.MoveStateHead, blk.MoveState)

	code := prep.PrepareSegment(blk) // head_length == 0: falls straight through to body
	require.Equal(t, status.OK, code)

	steps := 1
	for code != status.Complete && steps < 10000 {
		code = prep.PrepareSegment(blk)
		steps++
	}
	require.Equal(t, status.Complete, code)
	assert.InDelta(t, 50, prep.Position[0], 1e-6)
	assert.NotEmpty(t, drv.Programs)
}

func TestPreparer_HeadBodyTailFullTrapezoid(t *testing.T) {
	prep, _ := newTestPreparer(t)

	blk := &block.Block{
		HeadLength:     10,
		BodyLength:     80,
		TailLength:     10,
		EntryVelocity:  0,
		CruiseVelocity: 50,
		ExitVelocity:   0,
		Jerk:           5e7,
		Target:         block.Vector{0: 100},
	}
	blk.Unit[0] = 1
	blk.MoveState = block.MoveStateNew
	prep.LoadBlock(blk)

	code := status.OK
	steps := 0
	for code != status.Complete && steps < 100000 {
		code = prep.PrepareSegment(blk)
		require.NotEqual(t, status.InternalError, code)
		steps++
	}
	require.Equal(t, status.Complete, code)
	// Segment quantization means the emitted path length only approximates
	// the planned 100mm; a generous tolerance accounts for that discretization,
	// not floating-point noise.
	assert.InDelta(t, 100, prep.Position[0], 1.0)
}

func TestDispatcher_ExecMove_NoRunningBlockReturnsNoop(t *testing.T) {
	cfg := config.Default()
	buf := block.NewBuffer(4)
	prep, drv := newTestPreparer(t)
	st := NewState()
	disp := NewDispatcher(buf, prep, drv, st, MCodeCallbacks{})
	_ = cfg

	assert.Equal(t, status.NoOp, disp.ExecMove())
}

func TestDispatcher_ExecMove_DwellCompletesAndFreesSlot(t *testing.T) {
	buf := block.NewBuffer(4)
	prep, drv := newTestPreparer(t)
	st := NewState()
	disp := NewDispatcher(buf, prep, drv, st, MCodeCallbacks{})

	blk := buf.CheckoutWrite()
	require.NotNil(t, blk)
	blk.Time = 0.001
	buf.CommitWrite(blk, block.MoveDwell)

	assert.Equal(t, status.OK, disp.ExecMove())
	assert.True(t, buf.Idle())
	require.Len(t, drv.Programs, 1)
	assert.Equal(t, timer.ProgramDwell, drv.Programs[0].Kind)
}

func TestDispatcher_ExecMove_MCodeInvokesCallbackAndPrimesNull(t *testing.T) {
	buf := block.NewBuffer(4)
	prep, drv := newTestPreparer(t)
	st := NewState()

	var gotEnd bool
	disp := NewDispatcher(buf, prep, drv, st, MCodeCallbacks{
		ProgramEnd: func() { gotEnd = true },
	})

	blk := buf.CheckoutWrite()
	require.NotNil(t, blk)
	blk.MoveCode = int32(MCodeProgramEnd)
	buf.CommitWrite(blk, block.MoveMCode)

	assert.Equal(t, status.OK, disp.ExecMove())
	assert.True(t, gotEnd)
	assert.True(t, buf.Idle())
	require.Len(t, drv.Programs, 1)
	assert.Equal(t, timer.ProgramNull, drv.Programs[0].Kind)
}
