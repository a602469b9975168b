// Package motion is the public facade over the motion core: it wires the
// block ring, planner, runtime preparer/dispatcher, feedhold controller,
// and metrics collector into the single entry point spec.md §6's "Core
// public API (produced)" names, plus the SPEC_FULL.md §4 supplements
// (coordinate systems, units, status cadence, backpressure, queue flush).
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop/loop.go: one top-level struct gathers every
// collaborator the rest of the package wires separately, exposing a small
// producer-facing surface (submit_*, set_*, get_*) alongside foreground
// control calls (feedhold, cycle_start, flush_planner) — the same shape as
// Loop's Run/Stop/Tick relative to its registry/ingress/timers fields.
package motion

import (
	"errors"
	"time"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/feedhold"
	"github.com/Leealpha1/TinyG/internal/motion/kinematics"
	"github.com/Leealpha1/TinyG/internal/motion/logging"
	"github.com/Leealpha1/TinyG/internal/motion/metrics"
	"github.com/Leealpha1/TinyG/internal/motion/planner"
	"github.com/Leealpha1/TinyG/internal/motion/runtime"
	"github.com/Leealpha1/TinyG/internal/motion/status"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

// backpressureLogWindow/backpressureLogBurst bound how often a sustained
// EAgain condition (a producer hammering submit_* against a full ring) is
// allowed to reach the log sink.
const (
	backpressureLogWindow = time.Second
	backpressureLogBurst  = 1
)

// Units selects the scale factor submit_line/submit_aline targets are
// converted by before reaching the planner, SPEC_FULL.md §4 supplement 2.
type Units uint8

const (
	UnitsMM Units = iota
	UnitsInch
)

const mmPerInch = 25.4

// ErrUnknownCoordinateSystem is returned by SetCoordinateSystem for an
// out-of-range system index.
var ErrUnknownCoordinateSystem = errors.New("motion: unknown coordinate system")

// Controller is the motion core's single entry point: it owns the block
// ring and every collaborator over it, and is the only type a host program
// needs to import.
type Controller struct { // betteralign:ignore
	cfg config.Config
	log     logging.Logger
	warnLog logging.Logger // log, wrapped with a rate limit for noisy recurring conditions

	buf   *block.Buffer
	pl    *planner.Planner
	state *runtime.State
	prep  *runtime.Preparer
	disp  *runtime.Dispatcher
	hold  *feedhold.Controller
	met   *metrics.Collector

	units   Units
	offsets [config.Axes + 1]config.Offsets // index 0 unused; systems are 1-based (G54=1..G59=6)
	system  int

	segmentsSincePoll int
	statusInterval    int
	onBackpressure    func()
}

// Config bundles the collaborators New needs beyond config.Config itself.
// Driver is required; a nil Logger discards every entry; Metrics is optional
// (nil disables instrumentation, matching planner/runtime/feedhold's own
// opt-in wiring).
type Config struct {
	Motion  config.Config
	Driver  timer.Driver
	Logger  logging.Logger
	Metrics *metrics.Collector
	MCode   runtime.MCodeCallbacks

	// StatusInterval is how many dispatched segments elapse between
	// StatusDue() reporting true, SPEC_FULL.md §4 supplement 3. Zero
	// disables the cadence counter (StatusDue always false).
	StatusInterval int

	// OnBackpressure, if set, is invoked the instant a submit_* call would
	// have returned status.EAgain, SPEC_FULL.md §4 supplement 4: a
	// channel-friendly restatement of polling mp_test_write_buffer, so a
	// host can park a goroutine instead of busy-looping on EAgain.
	OnBackpressure func()
}

// New constructs a fully-wired Controller: a block ring sized per cfg,
// a Planner, a Preparer/Dispatcher pair sharing one runtime.State, and a
// feedhold.Controller coordinating all three, matching the read path
// described in spec.md §3's "Data flow".
func New(c Config) *Controller {
	if c.Logger == nil {
		c.Logger = logging.NoOpLogger{}
	}
	rateLimitedLog := logging.NewRateLimitedLogger(c.Logger, backpressureLogWindow, backpressureLogBurst)
	buf := block.NewBuffer(c.Motion.RingSize)
	pl := planner.New(buf, c.Motion, c.Logger)
	st := runtime.NewState()
	kin := kinematics.New(c.Motion)
	prep := runtime.NewPreparer(kin, c.Driver, c.Motion, st)
	disp := runtime.NewDispatcher(buf, prep, c.Driver, st, c.MCode)
	hold := feedhold.New(buf, pl, st, prep, c.Motion, nil)

	if c.Metrics != nil {
		pl.SetMetrics(c.Metrics)
		prep.SetMetrics(c.Metrics)
		hold.SetMetrics(c.Metrics)
	}

	return &Controller{
		cfg:            c.Motion,
		log:            c.Logger,
		warnLog:        rateLimitedLog,
		buf:            buf,
		pl:             pl,
		state:          st,
		prep:           prep,
		disp:           disp,
		hold:           hold,
		met:            c.Metrics,
		statusInterval: c.StatusInterval,
		onBackpressure: c.OnBackpressure,
	}
}

// backpressure invokes the installed OnBackpressure callback, if any, and
// returns its argument unchanged — a thin pass-through so every submit_*
// method can wrap its status.Code return in one line.
func (c *Controller) backpressure(code status.Code) status.Code {
	if code != status.EAgain {
		return code
	}
	if c.warnLog.IsEnabled(logging.LevelWarn) {
		c.warnLog.Log(logging.Entry{Level: logging.LevelWarn, Category: "backpressure", Message: "submit rejected: ring full"})
	}
	if c.onBackpressure != nil {
		c.onBackpressure()
	}
	return code
}

// SetStatusReporter installs the feedhold completion callback, e.g. a host
// that wants to queue a status report the instant a hold completes
// (spec.md §4.9).
func (c *Controller) SetStatusReporter(r feedhold.StatusReporter) {
	c.hold = feedhold.New(c.buf, c.pl, c.state, c.prep, c.cfg, r)
	if c.met != nil {
		c.hold.SetMetrics(c.met)
	}
}

// SetToolCallback installs the tool-change collaborator for submit_tool.
func (c *Controller) SetToolCallback(fn func(index int32)) { c.disp.SetToolCallback(fn) }

// SetSpindleCallback installs the spindle-speed collaborator for
// submit_spindle_speed.
func (c *Controller) SetSpindleCallback(fn func(rpm float64)) { c.disp.SetSpindleCallback(fn) }

// SetUnits selects mm or inch scaling for subsequent submit_line/
// submit_aline target vectors, SPEC_FULL.md §4 supplement 2.
func (c *Controller) SetUnits(u Units) { c.units = u }

func (c *Controller) scale(v block.Vector) block.Vector {
	if c.units != UnitsInch {
		return v
	}
	var out block.Vector
	for i := range v {
		out[i] = v[i] * mmPerInch
	}
	return out
}

// SetCoordinateSystem stores the work-offset vector for one of the 6
// coordinate systems (G54-G59, 1-indexed), SPEC_FULL.md §4 supplement 1.
// system must be in [1, 6]. It does not change the current system;
// UseCoordinateSystem selects which stored offset submit_line/submit_aline
// targets are composed with.
func (c *Controller) SetCoordinateSystem(system int, offset config.Offsets) error {
	if system < 1 || system > config.Axes {
		return ErrUnknownCoordinateSystem
	}
	c.offsets[system] = offset
	return nil
}

// UseCoordinateSystem makes the given previously-set system current.
func (c *Controller) UseCoordinateSystem(system int) error {
	if system < 0 || system > config.Axes {
		return ErrUnknownCoordinateSystem
	}
	c.system = system
	return nil
}

func (c *Controller) resolve(target block.Vector) block.Vector {
	target = c.scale(target)
	if c.system == 0 {
		return target
	}
	off := c.offsets[c.system]
	var out block.Vector
	for i := range target {
		out[i] = target[i] + off[i]
	}
	return out
}

// SubmitLine implements spec.md §4.3's submit_line over the current units
// and coordinate-system offset.
func (c *Controller) SubmitLine(target block.Vector, minutes float64) status.Code {
	return c.backpressure(c.pl.SubmitLine(c.resolve(target), minutes))
}

// SubmitAline implements spec.md §4.3's submit_aline over the current units
// and coordinate-system offset.
func (c *Controller) SubmitAline(target block.Vector, minutes float64) status.Code {
	return c.backpressure(c.pl.SubmitAline(c.resolve(target), minutes))
}

// SubmitDwell queues a dwell block for the given duration, spec.md §6
// "submit_dwell(seconds)".
func (c *Controller) SubmitDwell(seconds float64) status.Code {
	if seconds <= 0 {
		return status.ZeroLengthMove
	}
	blk := c.buf.CheckoutWrite()
	if blk == nil {
		return c.backpressure(status.EAgain)
	}
	blk.Time = seconds / 60 // minutes, matching block.Block.Time's unit
	c.buf.CommitWrite(blk, block.MoveDwell)
	return status.OK
}

// SubmitMCode queues an opaque M-code directive, routed by the installed
// runtime.MCodeCallbacks on dispatch, spec.md §6 "submit_mcode(code)".
func (c *Controller) SubmitMCode(code runtime.MCode) status.Code {
	blk := c.buf.CheckoutWrite()
	if blk == nil {
		return c.backpressure(status.EAgain)
	}
	blk.MoveCode = int32(code)
	c.buf.CommitWrite(blk, block.MoveMCode)
	return status.OK
}

// SubmitTool queues a tool-change directive, spec.md §6 "submit_tool(index)".
// Tool-change semantics beyond invoking the installed callback are a
// spec.md Non-goal.
func (c *Controller) SubmitTool(index int32) status.Code {
	blk := c.buf.CheckoutWrite()
	if blk == nil {
		return c.backpressure(status.EAgain)
	}
	blk.MoveCode = index
	c.buf.CommitWrite(blk, block.MoveTool)
	return status.OK
}

// SubmitSpindleSpeed queues a spindle-speed directive, spec.md §6
// "submit_spindle_speed(rpm)". Spindle control beyond invoking the
// installed callback is a spec.md Non-goal.
func (c *Controller) SubmitSpindleSpeed(rpm float64) status.Code {
	blk := c.buf.CheckoutWrite()
	if blk == nil {
		return c.backpressure(status.EAgain)
	}
	blk.MoveCode = int32(rpm)
	c.buf.CommitWrite(blk, block.MoveSpindle)
	return status.OK
}

// SetPlanPosition implements spec.md §6's set_plan_position(pos[]).
func (c *Controller) SetPlanPosition(pos block.Vector) { c.pl.SetPlanPosition(pos) }

// SetAxisPosition resets both the planning and runtime position, spec.md
// §6 "the latter also resets runtime position; used by coordinate-system
// transforms".
func (c *Controller) SetAxisPosition(pos block.Vector) {
	c.pl.SetPlanPosition(pos)
	c.prep.Position = pos
}

// GetPlanPosition implements spec.md §6's get_plan_position().
func (c *Controller) GetPlanPosition() block.Vector { return c.pl.PlanPosition() }

// GetRuntimePosition implements spec.md §6's get_runtime_position(axis).
func (c *Controller) GetRuntimePosition(axis int) float64 { return c.prep.Position[axis] }

// GetRuntimeVelocity implements spec.md §6's get_runtime_velocity().
func (c *Controller) GetRuntimeVelocity() float64 { return c.prep.SegmentVelocity() }

// GetRuntimeLineNumber implements spec.md §6's get_runtime_line_number().
func (c *Controller) GetRuntimeLineNumber() int32 { return c.prep.CurrentLineNumber() }

// Feedhold implements spec.md §6's feedhold().
func (c *Controller) Feedhold() { c.hold.Feedhold() }

// CycleStart implements spec.md §6's cycle_start().
func (c *Controller) CycleStart() { c.hold.CycleStart() }

// FlushPlanner implements spec.md §4.9's flush_planner: unconditionally
// re-initializes the ring (discarding queued/pending work) and sets motion
// state to stop, SPEC_FULL.md §4 supplement 5.
func (c *Controller) FlushPlanner() {
	*c.buf = *block.NewBuffer(c.cfg.RingSize)
	c.state.EndCycle()
	c.state.SetMotion(runtime.MotionStop)
	if c.log.IsEnabled(logging.LevelInfo) {
		c.log.Log(logging.Entry{Level: logging.LevelInfo, Category: "motion", Message: "flush_planner"})
	}
}

// FeedholdThenFlush requests a feedhold and arranges for FlushPlanner to run
// once the hold completes, SPEC_FULL.md §4 supplement 5, so a host doesn't
// have to sequence the two calls itself. The flush runs from a reporter that
// this call installs through SetStatusReporter in place of any reporter the
// host installed earlier; that earlier reporter is not called on this or any
// later hold completion.
func (c *Controller) FeedholdThenFlush() {
	c.SetStatusReporter(flushOnHold{c})
	c.hold.Feedhold()
}

type flushOnHold struct{ c *Controller }

func (f flushOnHold) OnHoldComplete() { f.c.FlushPlanner() }

// Tick drives exactly one unit of executor work: one dispatched segment (or
// dwell tick, or non-motion block), followed by the feedhold controller's
// plan/end_hold housekeeping, spec.md §4.7/§4.9's foreground+ISR split
// collapsed into a single synchronous call for hosts without a real ISR.
func (c *Controller) Tick() status.Code {
	code := c.disp.ExecMove()
	c.hold.PlannerTick()

	running := c.buf.First()
	c.hold.OnSegmentEnd(running)
	c.hold.EndHoldCallback()

	if c.met != nil {
		c.met.UpdateQueueDepth(c.buf.QueueDepth())
	}
	if code == status.OK && running != nil {
		c.segmentsSincePoll++
	}
	return code
}

// IsBusy implements spec.md §6's is_busy(): true iff a segment is in flight
// or runtime is mid-move.
func (c *Controller) IsBusy() bool {
	return !c.buf.Idle() || c.state.Motion() == runtime.MotionRun
}

// StatusDue implements SPEC_FULL.md §4 supplement 3's status report cadence
// counter: a pure counter advanced once per dispatched segment via Tick,
// returning true (and resetting) once StatusInterval segments have
// elapsed. Always false if StatusInterval is zero.
func (c *Controller) StatusDue() bool {
	if c.statusInterval <= 0 {
		return false
	}
	if c.segmentsSincePoll < c.statusInterval {
		return false
	}
	c.segmentsSincePoll = 0
	return true
}

// FeedholdState reports the feedhold controller's own state, for hosts that
// want finer-grained status than IsBusy.
func (c *Controller) FeedholdState() feedhold.HoldState { return c.hold.State() }
