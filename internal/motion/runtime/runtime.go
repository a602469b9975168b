package runtime

import (
	"math"
	"time"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/kinematics"
	"github.com/Leealpha1/TinyG/internal/motion/metrics"
	"github.com/Leealpha1/TinyG/internal/motion/status"
	"github.com/Leealpha1/TinyG/internal/motion/timer"
)

// microsPerMinute converts the planner's minutes-based time base to the
// timer driver's microsecond-based one.
const microsPerMinute = 60e6

// Snapshot holds the per-block working set the executor copies out of a
// block.Block on first entry, spec.md §3 "Runtime state". Position persists
// across blocks; every other field is reloaded per block.
type Snapshot struct {
	Target   block.Vector // current segment endpoint
	Endpoint block.Vector // final target of the current block
	Unit     block.Vector

	HeadLength, BodyLength, TailLength          float64
	EntryVelocity, CruiseVelocity, ExitVelocity float64
	Jerk                                        float64

	MoveState block.MoveState

	Segments          int
	SegmentCount      int
	SegmentMoveTime   float64 // minutes, duration of one segment
	SegmentAccelTime  float64 // minutes, duration of one half-ramp segment step
	ElapsedAccelTime  float64 // minutes, reset at the start of each half
	MidpointVelocity  float64
	MidpointAccel     float64
	SegmentVelocity   float64

	LineNumber int32
}

// Preparer is the segment preparer (spec.md §4.8): it subdivides the
// currently-running block's head/body/tail sections into fixed-duration
// segments, converts each to step counts via kinematics, and hands them to
// the timer driver. At most one segment is emitted per PrepareSegment call
// (a call that skips an empty head or body section emits none) — the sole
// synchronization primitive protecting the planner/runtime coupling, per
// spec.md §5.
type Preparer struct {
	Position block.Vector // runtime position, persists across blocks

	mr    Snapshot
	kin   *kinematics.Machine
	drv   timer.Driver
	cfg   config.Config
	state *State

	metrics *metrics.Collector
}

// SetMetrics attaches a metrics.Collector; PrepareSegment calls are timed
// into its segment-prepare latency distribution. Optional: a nil collector
// (the default) disables instrumentation.
func (p *Preparer) SetMetrics(m *metrics.Collector) { p.metrics = m }

// NewPreparer constructs a Preparer over the given kinematics machine and
// timer driver.
func NewPreparer(kin *kinematics.Machine, drv timer.Driver, cfg config.Config, st *State) *Preparer {
	return &Preparer{kin: kin, drv: drv, cfg: cfg, state: st}
}

// LoadBlock snapshots a freshly-running block's fields into the runtime
// state on first entry, clears replannable, and arms move_state = head. Per
// spec.md §4.8 "On first entry the executor snapshots block fields...".
func (p *Preparer) LoadBlock(blk *block.Block) {
	p.mr = Snapshot{
		Target:         blk.Target,
		Endpoint:       blk.Target,
		Unit:           blk.Unit,
		HeadLength:     blk.HeadLength,
		BodyLength:     blk.BodyLength,
		TailLength:     blk.TailLength,
		EntryVelocity:  blk.EntryVelocity,
		CruiseVelocity: blk.CruiseVelocity,
		ExitVelocity:   blk.ExitVelocity,
		Jerk:           blk.Jerk,
		MoveState:      block.MoveStateHead,
		LineNumber:     blk.LineNumber,
	}
	blk.Replannable = false
	blk.MoveState = block.MoveStateHead
}

// SegmentVelocity returns the velocity computed for the most recently
// emitted segment, used by the feedhold controller's plan_hold to compute
// its braking profile (spec.md §4.9).
func (p *Preparer) SegmentVelocity() float64 { return p.mr.SegmentVelocity }

// CurrentJerk returns the composite jerk of the block currently loaded.
func (p *Preparer) CurrentJerk() float64 { return p.mr.Jerk }

// CurrentLineNumber returns the line number of the block currently loaded,
// for motion.Controller.GetRuntimeLineNumber (spec.md §4.1 "get_runtime_line_number").
func (p *Preparer) CurrentLineNumber() int32 { return p.mr.LineNumber }

// ForceTail overrides the runtime snapshot's tail parameters and jumps
// move_state directly to tail, for the feedhold controller's plan_hold
// (spec.md §4.9 Case A/B): the executor resumes from the next
// PrepareSegment call decelerating over length from vFrom to vTo.
func (p *Preparer) ForceTail(length, vFrom, vTo float64) {
	p.mr.TailLength = length
	p.mr.CruiseVelocity = vFrom
	p.mr.ExitVelocity = vTo
	p.mr.MoveState = block.MoveStateTail
	p.mr.Segments = 0
}

// estimatedSegmentMinutes is cfg.EstimatedSegmentMicros converted to minutes.
func (p *Preparer) estimatedSegmentMinutes() float64 {
	return p.cfg.EstimatedSegmentMicros / microsPerMinute
}

// PrepareSegment emits at most one segment of the currently-loaded block (none
// when it only skips an empty head or body section) and reports status.Complete once the block's last section's last segment has
// been submitted, status.OK while segments remain, or status.EAgain if the
// timer driver's program buffer is still full.
func (p *Preparer) PrepareSegment(blk *block.Block) status.Code {
	if p.metrics != nil {
		start := time.Now()
		defer func() { p.metrics.ObserveSegmentPrepare(time.Since(start)) }()
	}
	switch p.mr.MoveState {
	case block.MoveStateHead:
		return p.runSection(blk, p.mr.HeadLength, p.mr.EntryVelocity, p.mr.CruiseVelocity, block.MoveStateBody)
	case block.MoveStateBody:
		return p.runBody(blk)
	case block.MoveStateTail:
		return p.runSection(blk, p.mr.TailLength, p.mr.CruiseVelocity, p.mr.ExitVelocity, block.MoveStateOff)
	default:
		return status.InternalError
	}
}

// runSection drives the head or tail (constant-jerk ramp) sections, spec.md
// §4.8 "Head (accel)"/"Tail (decel)": a mirror of the same math with
// (vi, vt) swapped, parameterized here as (vFrom, vTo).
func (p *Preparer) runSection(blk *block.Block, length, vFrom, vTo float64, next block.MoveState) status.Code {
	if length < p.cfg.Tolerance.Length {
		p.mr.MoveState = next
		blk.MoveState = next
		p.mr.SegmentCount = 0
		return status.OK
	}

	if p.mr.Segments == 0 {
		vMid := (vFrom + vTo) / 2
		totalTime := length / vMid // minutes
		accelTime := 2 * math.Sqrt(math.Abs(vTo-vFrom)/math.Max(p.mr.Jerk, 1e-300))

		segPerHalf := int(math.Ceil((accelTime / 2) / p.estimatedSegmentMinutes()))
		if segPerHalf < 1 {
			segPerHalf = 1
		}
		p.mr.Segments = segPerHalf * 2
		p.mr.SegmentCount = p.mr.Segments
		p.mr.SegmentAccelTime = accelTime / float64(p.mr.Segments)
		p.mr.SegmentMoveTime = totalTime / float64(p.mr.Segments)
		p.mr.MidpointVelocity = vMid
		p.mr.MidpointAccel = 2 * (vTo - vFrom) / math.Max(accelTime, 1e-300)
		p.mr.ElapsedAccelTime = 0
	}

	half := p.mr.Segments / 2
	inFirstHalf := p.mr.Segments-p.mr.SegmentCount < half

	var v float64
	t := p.mr.ElapsedAccelTime
	if vFrom <= vTo {
		// accelerating ramp (head, or a tail degraded into an accel by
		// feedhold replanning): concave first half, convex second half.
		if inFirstHalf {
			v = vFrom + (t*t*p.mr.Jerk)/2
		} else {
			v = p.mr.MidpointVelocity + t*p.mr.MidpointAccel - (t*t*p.mr.Jerk)/2
		}
	} else {
		// decelerating ramp (tail): mirror image.
		if inFirstHalf {
			v = vFrom - (t*t*p.mr.Jerk)/2
		} else {
			v = p.mr.MidpointVelocity - t*p.mr.MidpointAccel + (t*t*p.mr.Jerk)/2
		}
	}
	p.mr.SegmentVelocity = v

	last := p.mr.SegmentCount == 1
	code := p.emitSegment(blk, v, last && next == block.MoveStateOff)
	if code != status.OK {
		return code
	}

	p.mr.ElapsedAccelTime += p.mr.SegmentAccelTime
	p.mr.SegmentCount--
	if p.mr.Segments-p.mr.SegmentCount == half {
		p.mr.ElapsedAccelTime = 0
	}
	if p.mr.SegmentCount <= 0 {
		p.mr.MoveState = next
		blk.MoveState = next
		p.mr.Segments = 0
		if next == block.MoveStateOff {
			return status.Complete
		}
	}
	return status.OK
}

// runBody drives the constant-cruise-velocity section, spec.md §4.8 "Body
// (cruise)".
func (p *Preparer) runBody(blk *block.Block) status.Code {
	if p.mr.BodyLength < p.cfg.Tolerance.Length {
		p.mr.MoveState = block.MoveStateTail
		blk.MoveState = block.MoveStateTail
		p.mr.SegmentCount = 0
		return status.OK
	}
	if p.mr.Segments == 0 {
		totalTime := p.mr.BodyLength / p.mr.CruiseVelocity
		segs := int(math.Ceil(totalTime / p.estimatedSegmentMinutes()))
		if segs < 1 {
			segs = 1
		}
		p.mr.Segments = segs
		p.mr.SegmentCount = segs
		p.mr.SegmentMoveTime = totalTime / float64(segs)
		p.mr.SegmentVelocity = p.mr.CruiseVelocity
	}

	last := p.mr.SegmentCount == 1
	code := p.emitSegment(blk, p.mr.CruiseVelocity, last && p.mr.TailLength < p.cfg.Tolerance.Length)
	if code != status.OK {
		return code
	}

	p.mr.SegmentCount--
	if p.mr.SegmentCount <= 0 {
		p.mr.MoveState = block.MoveStateTail
		blk.MoveState = block.MoveStateTail
		p.mr.Segments = 0
		if p.mr.TailLength < p.cfg.Tolerance.Length {
			return status.Complete
		}
	}
	return status.OK
}

// emitWholeLine submits an un-planned simple line as one whole-block step
// program, the execLineSimple counterpart to the jerk-limited segment path.
func (p *Preparer) emitWholeLine(target block.Vector, durationUS float64) status.Code {
	var travel block.Vector
	for i := 0; i < config.Axes; i++ {
		travel[i] = target[i] - p.Position[i]
	}
	var steps [config.Motors]int32
	p.kin.Steps(travel, durationUS, &steps)

	code := p.drv.PrepLine(steps, durationUS)
	if code != status.OK {
		return code
	}
	p.Position = target
	return status.OK
}

// emitSegment implements spec.md §4.8's "Segment" steps 1-3: compute the
// per-axis target, convert to step counts, and submit to the step driver.
func (p *Preparer) emitSegment(blk *block.Block, v float64, correctionFlag bool) status.Code {
	var target block.Vector
	for i := 0; i < config.Axes; i++ {
		target[i] = p.Position[i] + p.mr.Unit[i]*v*p.mr.SegmentMoveTime
	}
	if correctionFlag && p.state.Motion() == MotionRun && p.state.Cycle() == CycleStarted {
		target = p.mr.Endpoint
	}

	var travel block.Vector
	for i := 0; i < config.Axes; i++ {
		travel[i] = target[i] - p.Position[i]
	}

	var steps [config.Motors]int32
	durationUS := p.mr.SegmentMoveTime * microsPerMinute
	p.kin.Steps(travel, durationUS, &steps)

	code := p.drv.PrepLine(steps, durationUS)
	if code != status.OK {
		return code
	}
	p.Position = target
	return status.OK
}
