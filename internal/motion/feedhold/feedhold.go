// Package feedhold implements the feedhold controller state machine,
// spec.md §4.9: coordinated deceleration-to-zero and release, driven
// jointly by the producer (feedhold/cycle_start calls), the executor (on
// segment completion), and the planner (plan_hold replanning).
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop/state.go's CAS state machine, the same
// idiom runtime.State uses: spec.md §5 requires the executor side to never
// block, so every transition here is a non-blocking CAS or store.
package feedhold

import (
	"math"
	"sync/atomic"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/metrics"
	"github.com/Leealpha1/TinyG/internal/motion/planner"
	"github.com/Leealpha1/TinyG/internal/motion/runtime"
)

// HoldState is the feedhold controller's own state, spec.md §4.9.
type HoldState uint32

const (
	HoldOff HoldState = iota
	HoldSync
	HoldPlan
	HoldDecel
	HoldHeld
	HoldEndHold
)

func (s HoldState) String() string {
	switch s {
	case HoldOff:
		return "off"
	case HoldSync:
		return "sync"
	case HoldPlan:
		return "plan"
	case HoldDecel:
		return "decel"
	case HoldHeld:
		return "hold"
	case HoldEndHold:
		return "end_hold"
	default:
		return "unknown"
	}
}

// StatusReporter is an optional collaborator notified when the hold
// completes, so the host can emit a status report (spec.md §4.9 "queue a
// status report"). Out of scope otherwise (spec.md §1 "Host I/O... status
// JSON" are external collaborators).
type StatusReporter interface {
	OnHoldComplete()
}

// Controller coordinates the feedhold state machine across the foreground
// (feedhold/cycle_start calls), executor (segment-end notifications) and
// planner (plan_hold replanning) contexts.
type Controller struct {
	state atomic.Uint32

	buf     *block.Buffer
	pl      *planner.Planner
	rtState *runtime.State
	prep    *runtime.Preparer
	cfg     config.Config
	report  StatusReporter

	releaseBlockIdx int
	haveRelease     bool

	metrics *metrics.Collector
}

// SetMetrics attaches a metrics.Collector; every Feedhold() engagement that
// actually transitions off->sync is counted against it. Optional.
func (c *Controller) SetMetrics(m *metrics.Collector) { c.metrics = m }

// New constructs a Controller wired to the shared buffer, planner, runtime
// state, and segment preparer it must coordinate.
func New(buf *block.Buffer, pl *planner.Planner, rtState *runtime.State, prep *runtime.Preparer, cfg config.Config, report StatusReporter) *Controller {
	return &Controller{buf: buf, pl: pl, rtState: rtState, prep: prep, cfg: cfg, report: report}
}

// State returns the controller's current feedhold state.
func (c *Controller) State() HoldState { return HoldState(c.state.Load()) }

// Feedhold is the external feedhold() entry point: if off and motion is
// running, requests a sync.
func (c *Controller) Feedhold() {
	if c.rtState.Motion() != runtime.MotionRun {
		return
	}
	if c.state.CompareAndSwap(uint32(HoldOff), uint32(HoldSync)) && c.metrics != nil {
		c.metrics.RecordFeedholdEngagement()
	}
}

// CycleStart is the external cycle_start() entry point: releases a held
// cycle by requesting end_hold.
func (c *Controller) CycleStart() {
	c.state.CompareAndSwap(uint32(HoldHeld), uint32(HoldEndHold))
}

// OnSegmentEnd is called by the executor after every completed segment, per
// spec.md §4.9: advances sync -> plan, and completes decel -> hold once the
// hold-point block's tail finishes.
func (c *Controller) OnSegmentEnd(runningBlock *block.Block) {
	if c.state.CompareAndSwap(uint32(HoldSync), uint32(HoldPlan)) {
		return
	}
	if HoldState(c.state.Load()) == HoldDecel &&
		runningBlock != nil && runningBlock.HoldPoint && runningBlock.MoveState == block.MoveStateOff {
		c.state.Store(uint32(HoldHeld))
		c.rtState.SetMotion(runtime.MotionHold)
		if c.report != nil {
			c.report.OnHoldComplete()
		}
	}
}

// PlannerTick is the planner-side callback invoked from foreground context:
// when the controller is in plan, runs plan_hold and advances to decel.
// Returns true if it performed a plan_hold this call.
func (c *Controller) PlannerTick() bool {
	if HoldState(c.state.Load()) != HoldPlan {
		return false
	}
	c.planHold()
	c.state.Store(uint32(HoldDecel))
	return true
}

// EndHoldCallback observes end_hold and releases the cycle: clears
// hold_point on the release block, resumes motion, signals the executor.
func (c *Controller) EndHoldCallback() {
	if HoldState(c.state.Load()) != HoldEndHold {
		return
	}
	if c.haveRelease {
		c.buf.At(c.releaseBlockIdx).HoldPoint = false
		c.haveRelease = false
	}
	c.rtState.SetMotion(runtime.MotionRun)
	c.state.Store(uint32(HoldOff))
}

// planHold implements spec.md §4.9's plan_hold: compute a braking profile
// from the current segment velocity down to zero, and either shrink the
// running block (Case A) or shed velocity across successor blocks (Case B).
func (c *Controller) planHold() {
	brakingVelocity := c.prep.SegmentVelocity()
	jerk := c.prep.CurrentJerk()
	brakingLength := planner.TargetLength(brakingVelocity, 0, jerk)

	running := c.buf.First()
	if running == nil {
		return
	}
	remaining := vecLength(running.Target, c.prep.Position)

	if brakingLength < remaining {
		// Case A: the running block has enough remaining length to absorb
		// the full braking ramp as its tail.
		c.prep.ForceTail(brakingLength, brakingVelocity, 0)
		running.Length = remaining - brakingLength
		running.ExitVmax = 0
		running.ExitVelocity = 0
		running.HoldPoint = true
		c.releaseBlockIdx = c.buf.Index(running)
		c.haveRelease = true
	} else {
		// Case B: decelerate the running block to a non-zero exit velocity
		// across its own remaining length, then walk successors shedding
		// velocity block by block until one can absorb the full stop.
		// The block can shed at most down to the velocity it could still
		// fully stop from within its own remaining length.
		exitV := planner.TargetVelocity(0, remaining, jerk)
		if exitV > brakingVelocity {
			exitV = brakingVelocity
		}
		c.prep.ForceTail(remaining, brakingVelocity, exitV)
		running.Length = remaining
		running.ExitVmax = exitV
		running.ExitVelocity = exitV

		cur := running.Nx
		v := exitV
		for {
			nb := c.buf.At(cur)
			if nb.BufferState == block.BufferEmpty {
				break
			}
			stopLen := planner.TargetLength(v, 0, jerk)
			if stopLen <= nb.Length {
				nb.ExitVmax = 0
				nb.ExitVelocity = 0
				nb.HoldPoint = true
				c.releaseBlockIdx = cur
				c.haveRelease = true
				break
			}
			nextV := planner.TargetVelocity(0, nb.Length, jerk)
			nb.ExitVmax = nextV
			nb.ExitVelocity = nextV
			v = nextV
			cur = nb.Nx
		}
	}

	// Reset replannable flags and replan from the last block, spec.md §4.9.
	last := c.buf.Last()
	if last != nil {
		idx := c.buf.Index(running)
		for i := idx; ; {
			b := c.buf.At(i)
			b.Replannable = true
			if i == c.buf.Index(last) {
				break
			}
			i = b.Nx
		}
		c.pl.Replan(last)
	}
}

func vecLength(target, from block.Vector) float64 {
	var sumSq float64
	for i := 0; i < config.Axes; i++ {
		d := target[i] - from[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}
