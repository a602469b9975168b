package runtime

import (
	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/status"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

// MCode enumerates the non-motion program directives a queued mcode block
// carries in its MoveCode field, grounded on the original firmware's
// MCODE_* case dispatch in its aline executor.
type MCode int32

const (
	MCodeProgramStop MCode = iota
	MCodeOptionalStop
	MCodeProgramEnd
	MCodeSpindleCW
	MCodeSpindleCCW
	MCodeSpindleOff
	MCodeMistCoolantOn
	MCodeFloodCoolantOn
	MCodeFloodCoolantOff
	MCodeFeedOverrideOn
	MCodeFeedOverrideOff
)

// MCodeCallbacks routes non-motion block payloads to the canonical machine
// state collaborator, spec.md §4.7 "M-code: routes to the appropriate
// callback". Any callback left nil is treated as a no-op.
type MCodeCallbacks struct {
	ProgramStop  func()
	ProgramEnd   func()
	SpindleCW    func()
	SpindleCCW   func()
	SpindleOff   func()
	MistCoolant  func(on bool)
	FloodCoolant func(on bool)
	FeedOverride func(on bool)
}

func (c MCodeCallbacks) dispatch(code int32) {
	switch MCode(code) {
	case MCodeProgramStop, MCodeOptionalStop:
		if c.ProgramStop != nil {
			c.ProgramStop()
		}
	case MCodeProgramEnd:
		if c.ProgramEnd != nil {
			c.ProgramEnd()
		}
	case MCodeSpindleCW:
		if c.SpindleCW != nil {
			c.SpindleCW()
		}
	case MCodeSpindleCCW:
		if c.SpindleCCW != nil {
			c.SpindleCCW()
		}
	case MCodeSpindleOff:
		if c.SpindleOff != nil {
			c.SpindleOff()
		}
	case MCodeMistCoolantOn:
		if c.MistCoolant != nil {
			c.MistCoolant(true)
		}
	case MCodeFloodCoolantOn:
		if c.FloodCoolant != nil {
			c.FloodCoolant(true)
		}
	case MCodeFloodCoolantOff:
		if c.FloodCoolant != nil {
			c.FloodCoolant(false)
		}
	case MCodeFeedOverrideOn:
		if c.FeedOverride != nil {
			c.FeedOverride(true)
		}
	case MCodeFeedOverrideOff:
		if c.FeedOverride != nil {
			c.FeedOverride(false)
		}
	}
}

// Dispatcher is the executor-side driver: it pulls the head block from the
// ring and routes it to the line/aline/dwell/m-code/tool/spindle executor,
// per spec.md §4.7.
type Dispatcher struct {
	buf      *block.Buffer
	prep     *Preparer
	drv      timer.Driver
	state    *State
	mcode    MCodeCallbacks
	toolFn   func(index int32)
	spindle  func(rpm float64)
	dwellRemaining float64 // microseconds remaining in the current dwell
}

// NewDispatcher wires a Dispatcher over buf, sharing the given preparer,
// driver and state with the rest of the runtime.
func NewDispatcher(buf *block.Buffer, prep *Preparer, drv timer.Driver, st *State, mcode MCodeCallbacks) *Dispatcher {
	return &Dispatcher{buf: buf, prep: prep, drv: drv, state: st, mcode: mcode}
}

// SetToolCallback installs the tool-change collaborator for move_type tool.
func (d *Dispatcher) SetToolCallback(fn func(index int32)) { d.toolFn = fn }

// SetSpindleCallback installs the spindle-speed collaborator for move_type
// spindle.
func (d *Dispatcher) SetSpindleCallback(fn func(rpm float64)) { d.spindle = fn }

// ExecMove implements spec.md §4.7's exec_move: one call drives one segment
// (or one dwell tick, or one non-motion block) of work.
func (d *Dispatcher) ExecMove() status.Code {
	blk := d.buf.GetRun()
	if blk == nil {
		// Nothing left to run: a drained ring ends the cycle.
		if d.buf.Idle() && d.state.Motion() == MotionRun {
			d.state.EndCycle()
			d.state.SetMotion(MotionStop)
		}
		return status.NoOp
	}

	if d.state.Cycle() == CycleIdle {
		d.state.TryStartCycle()
	}
	if d.state.Motion() == MotionStop && blk.MoveType == block.MoveAline {
		d.state.SetMotion(MotionRun)
	}

	switch blk.MoveType {
	case block.MoveLineSimple:
		return d.execLineSimple(blk)
	case block.MoveAline:
		return d.execAline(blk)
	case block.MoveDwell:
		return d.execDwell(blk)
	case block.MoveMCode:
		return d.execMCode(blk)
	case block.MoveTool:
		if d.toolFn != nil {
			d.toolFn(blk.MoveCode)
		}
		return d.freeAndPrimeNull()
	case block.MoveSpindle:
		if d.spindle != nil {
			d.spindle(float64(blk.MoveCode))
		}
		return d.freeAndPrimeNull()
	default:
		return status.InternalError
	}
}

// execLineSimple runs an un-planned constant-feedrate line as a single
// segment: no jerk-limited ramp, spec.md §4.3's submit_line counterpart.
func (d *Dispatcher) execLineSimple(blk *block.Block) status.Code {
	durationUS := blk.Time * microsPerMinute
	code := d.prep.emitWholeLine(blk.Target, durationUS)
	if code != status.OK {
		return code
	}
	d.buf.FreeRun()
	return status.OK
}

// execAline drives one segment of the currently-running accelerated line,
// loading it into the preparer's runtime snapshot on first entry.
func (d *Dispatcher) execAline(blk *block.Block) status.Code {
	if blk.MoveState == block.MoveStateNew {
		d.prep.LoadBlock(blk)
	}
	code := d.prep.PrepareSegment(blk)
	if code == status.Complete {
		d.buf.FreeRun()
		return status.OK
	}
	return code
}

// execDwell records a dwell duration and delegates to the timer driver's
// dwell path, freeing the buffer on completion.
func (d *Dispatcher) execDwell(blk *block.Block) status.Code {
	if blk.MoveState == block.MoveStateNew {
		d.dwellRemaining = blk.Time * microsPerMinute
		blk.MoveState = block.MoveStateRun
	}
	if code := d.drv.PrepDwell(d.dwellRemaining); code != status.OK {
		return code
	}
	d.dwellRemaining = 0
	d.buf.FreeRun()
	return status.OK
}

// execMCode routes to the configured callback then primes a null segment to
// keep the pipeline armed, per spec.md §4.7.
func (d *Dispatcher) execMCode(blk *block.Block) status.Code {
	d.mcode.dispatch(blk.MoveCode)
	return d.freeAndPrimeNull()
}

func (d *Dispatcher) freeAndPrimeNull() status.Code {
	if code := d.drv.PrepNull(); code != status.OK {
		return code
	}
	d.buf.FreeRun()
	return status.OK
}
