package planner

import (
	"math"
	"time"

	"github.com/Leealpha1/TinyG/internal/motion/block"
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/logging"
	"github.com/Leealpha1/TinyG/internal/motion/metrics"
	"github.com/Leealpha1/TinyG/internal/motion/status"
)

// PathMode selects how junction exit velocities are capped, spec.md §4.3
// step 3.
type PathMode uint8

const (
	// PathContinuous leaves the exit cap unconstrained, letting junction
	// velocity and delta_vmax govern cornering speed.
	PathContinuous PathMode = iota
	// PathExactStop forces every block's exit_vmax to zero, so each move
	// independently accelerates from and decelerates to rest.
	PathExactStop
)

// Planner is the look-ahead trajectory planner: move ingress (§4.3) and
// block-list replanning (§4.4) over a shared block.Buffer.
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop's single-goroutine-owns-shared-state
// discipline: Planner is not safe for concurrent use by multiple producer
// goroutines, matching spec.md §5's "foreground is a single cooperative
// context" model.
type Planner struct {
	buf *block.Buffer
	cfg config.Config
	log logging.Logger

	position block.Vector // planning position, foreground-owned per spec.md §5
	pathMode PathMode

	lastUnit block.Vector

	metrics        *metrics.Collector
	nextLineNumber int32
}

// SetMetrics attaches a metrics.Collector; Replan calls are timed into its
// replan-latency distribution. Optional: a nil collector (the default)
// disables instrumentation.
func (p *Planner) SetMetrics(m *metrics.Collector) { p.metrics = m }

// New constructs a Planner over buf using cfg's jerk/deviation/tolerance
// settings.
func New(buf *block.Buffer, cfg config.Config, log logging.Logger) *Planner {
	if log == nil {
		log = logging.NoOpLogger{}
	}
	return &Planner{buf: buf, cfg: cfg, log: log}
}

func (p *Planner) debugf(lineNumber int32, message string, fields map[string]any) {
	if !p.log.IsEnabled(logging.LevelDebug) {
		return
	}
	p.log.Log(logging.Entry{Level: logging.LevelDebug, Category: "planner", Line: lineNumber, Message: message, Fields: fields})
}

// SetPathMode selects exact-stop or continuous cornering for subsequently
// submitted blocks.
func (p *Planner) SetPathMode(m PathMode) { p.pathMode = m }

// PlanPosition returns the current planning-position vector.
func (p *Planner) PlanPosition() block.Vector { return p.position }

// SetPlanPosition overwrites the planning position without affecting the
// ring, used by coordinate-system transforms (SPEC_FULL.md §4 supplement 1).
func (p *Planner) SetPlanPosition(pos block.Vector) { p.position = pos }

func vecLength(target, from block.Vector) float64 {
	var sumSq float64
	for i := 0; i < config.Axes; i++ {
		d := target[i] - from[i]
		sumSq += d * d
	}
	return math.Sqrt(sumSq)
}

// SubmitLine implements spec.md §4.3's submit_line: a simple, unplanned
// line run at a fixed requested feed rate.
func (p *Planner) SubmitLine(target block.Vector, minutes float64) status.Code {
	if minutes <= 0 {
		return status.ZeroLengthMove
	}
	length := vecLength(target, p.position)
	if length < p.cfg.MinLineLength {
		return status.ZeroLengthMove
	}

	blk := p.buf.CheckoutWrite()
	if blk == nil {
		return status.EAgain
	}

	p.nextLineNumber++
	blk.LineNumber = p.nextLineNumber
	blk.Target = target
	blk.Time = minutes
	blk.Length = length
	blk.CruiseVmax = length / minutes
	p.buf.CommitWrite(blk, block.MoveLineSimple)

	p.position = target
	p.debugf(blk.LineNumber, "submit_line", map[string]any{"length": length, "minutes": minutes})
	return status.OK
}

// SubmitAline implements spec.md §4.3's submit_aline: a jerk-limited,
// look-ahead-planned line.
func (p *Planner) SubmitAline(target block.Vector, minutes float64) status.Code {
	if minutes <= 0 {
		return status.ZeroLengthMove
	}
	length := vecLength(target, p.position)
	if length < p.cfg.MinLineLength {
		return status.ZeroLengthMove
	}

	blk := p.buf.CheckoutWrite()
	if blk == nil {
		return status.EAgain
	}

	var unit block.Vector
	for i := 0; i < config.Axes; i++ {
		unit[i] = (target[i] - p.position[i]) / length
	}

	jerk := compositeJerk(unit, p.cfg)
	jerkRecip := 0.0
	jerkCubeRt := 0.0
	if jerk > 0 {
		jerkRecip = 1 / jerk
		jerkCubeRt = math.Cbrt(jerk)
	}

	p.nextLineNumber++
	blk.LineNumber = p.nextLineNumber
	blk.Target = target
	blk.Unit = unit
	blk.Time = minutes
	blk.Length = length
	blk.CruiseVmax = length / minutes
	blk.Jerk = jerk
	blk.JerkRecip = jerkRecip
	blk.JerkCubeRt = jerkCubeRt

	exactStopCap := math.Inf(1)
	replannable := true
	if p.pathMode == PathExactStop {
		exactStopCap = 0
		replannable = false
	}
	blk.Replannable = replannable

	// p.lastUnit is the zero vector until the first aline is submitted,
	// matching a freshly-initialized ring where the predecessor slot's unit
	// vector has never been written: junctionVelocity degrades gracefully
	// (neither the collinear nor reversal shortcut fires on an all-zero a).
	junctionVmax := junctionVelocity(p.lastUnit, unit, p.axisDeviation(), p.cfg.JunctionAcceleration)
	entryVmax := minOf(blk.CruiseVmax, junctionVmax, exactStopCap)
	deltaVmax := deltaVmaxFor(length, jerk)
	exitVmax := minOf(blk.CruiseVmax, entryVmax+deltaVmax, exactStopCap)

	blk.EntryVmax = entryVmax
	blk.DeltaVmax = deltaVmax
	blk.ExitVmax = exitVmax
	// As the new tail of the list, this block can brake to rest from
	// delta_vmax; the backward pass of this and later replans builds its
	// predecessors' braking velocities on top of this seed.
	blk.BrakingVelocity = deltaVmax

	p.buf.CommitWrite(blk, block.MoveAline)

	p.position = target
	p.lastUnit = unit

	p.Replan(blk)
	p.debugf(blk.LineNumber, "submit_aline", map[string]any{"length": length, "entry_vmax": entryVmax, "exit_vmax": exitVmax})
	return status.OK
}

// compositeJerk computes J = sqrt(sum((unit_i * jerk_max_i)^2)), spec.md
// §4.3 step 2.
func compositeJerk(unit block.Vector, cfg config.Config) float64 {
	var sum float64
	for i := 0; i < config.Axes; i++ {
		v := unit[i] * cfg.Axis[i].MaxJerk
		sum += v * v
	}
	return math.Sqrt(sum)
}

// deltaVmaxFor solves L = |Δv|*sqrt(|Δv|/J) for Δv, spec.md §4.3 step 5.
func deltaVmaxFor(length, jerk float64) float64 {
	if jerk <= 0 {
		return 0
	}
	return targetVelocity(0, length, jerk)
}

// axisDeviation returns the per-axis junction-deviation vector from config.
func (p *Planner) axisDeviation() (out [config.Axes]float64) {
	for i := 0; i < config.Axes; i++ {
		out[i] = p.cfg.Axis[i].JunctionDeviation
	}
	return out
}

func minOf(vals ...float64) float64 {
	m := math.Inf(1)
	for _, v := range vals {
		if v < m {
			m = v
		}
	}
	return m
}

// Replan implements spec.md §4.4: backward braking-velocity propagation
// then forward velocity/trapezoid assignment, anchored at tail. Exported so
// the feedhold controller can re-invoke it after plan_hold mutates the
// block list, per spec.md §4.9.
func (p *Planner) Replan(tail *block.Block) {
	if p.metrics != nil {
		start := time.Now()
		defer func() { p.metrics.ObserveReplan(time.Since(start)) }()
	}
	// Backward pass: walk pv links while predecessors are replannable. The
	// loop stops for one of two distinct reasons, and the forward pass
	// below must tell them apart:
	//   - prev.BufferState == Empty: head truly is the first block in the
	//     list (no predecessor at all), so its entry velocity is its own
	//     junction-capped entry_vmax.
	//   - !prev.Replannable: head has a real predecessor that already
	//     settled on a fixed exit velocity (the steady-state case for an
	//     interior block of a long collinear run); head's entry velocity
	//     must be that predecessor's actual exit_velocity, not entry_vmax,
	//     or the commanded velocity is discontinuous across that junction.
	idx := p.buf.Index(tail)
	cur := idx
	stoppedAtFixedPredecessor := false
	for {
		blk := p.buf.At(cur)
		prevIdx := blk.Pv
		prev := p.buf.At(prevIdx)
		if prev.BufferState == block.BufferEmpty {
			break
		}
		if !prev.Replannable {
			stoppedAtFixedPredecessor = true
			break
		}
		braking := minOf(blk.EntryVmax, blk.BrakingVelocity) + prev.DeltaVmax
		prev.BrakingVelocity = braking
		cur = prevIdx
		if cur == idx {
			break // wrapped the whole ring: defensive, should not happen
		}
	}
	head := cur

	headEntry := p.buf.At(head).EntryVmax
	if stoppedAtFixedPredecessor {
		headEntry = p.buf.At(p.buf.At(head).Pv).ExitVelocity
	}

	// Forward pass: walk nx links from head back to tail, inclusive.
	cur = head
	var prevExit float64
	first := true
	for {
		blk := p.buf.At(cur)
		var entry float64
		if first {
			entry = headEntry
		} else {
			entry = prevExit
		}
		cruise := blk.CruiseVmax

		nx := p.buf.At(blk.Nx)
		exit := blk.ExitVmax
		if nx.BufferState != block.BufferEmpty {
			exit = minOf(blk.ExitVmax, nx.BrakingVelocity, nx.EntryVmax, entry+blk.DeltaVmax)
		} else {
			exit = 0 // tail block finalized with exit_velocity = 0, spec.md §4.4
		}

		tr := ComputeTrapezoid(entry, cruise, exit, blk.Length, blk.Jerk, p.trapezoidTolerances())
		blk.EntryVelocity = tr.Entry
		blk.CruiseVelocity = tr.Cruise
		blk.ExitVelocity = tr.Exit
		blk.HeadLength = tr.Head
		blk.BodyLength = tr.Body
		blk.TailLength = tr.Tail

		if exit == blk.ExitVmax {
			blk.Replannable = false
		}

		prevExit = blk.ExitVelocity
		first = false
		if cur == idx {
			break
		}
		cur = blk.Nx
	}
}

func (p *Planner) trapezoidTolerances() TrapezoidTolerances {
	t := p.cfg.Tolerance
	return TrapezoidTolerances{
		Length:           t.Length,
		Velocity:         t.Velocity,
		SectionLength:    t.SectionLength,
		ShortLineFactor:  t.ShortLineFactor,
		AsymConvergence:  t.AsymConvergence,
		AsymMaxIteration: t.AsymMaxIteration,
		MinSectionLength: t.MinSectionLength,
	}
}
