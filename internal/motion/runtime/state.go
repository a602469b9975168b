// Package runtime implements the step-pulse runtime: the segment preparer
// (spec.md §4.8) and the cycle/motion state it and the feedhold controller
// coordinate through (spec.md §4.9, §5).
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop/state.go's FastState: a lock-free CAS state
// machine is the natural idiom for the ISR-class/foreground cooperative
// model spec.md §5 describes, where the executor context is never preempted
// by the foreground and the two sides must still hand off state safely.
package runtime

import "sync/atomic"

// CycleState tracks whether the machine has an active motion cycle,
// spec.md §4.7 "if cycle is idle, signal cycle-start".
type CycleState uint32

const (
	CycleIdle CycleState = iota
	CycleStarted
)

func (s CycleState) String() string {
	if s == CycleStarted {
		return "started"
	}
	return "idle"
}

// MotionState is the coarse run/hold state spec.md §4.8/§4.9 dispatch on.
// This is distinct from the feedhold controller's own off/sync/plan/decel/
// hold/end_hold state machine (package feedhold): MotionState is what the
// dispatcher and segment preparer branch on, feedhold's is what coordinates
// the deceleration-to-zero and release sequencing.
type MotionState uint32

const (
	MotionStop MotionState = iota
	MotionRun
	MotionHold
)

func (s MotionState) String() string {
	switch s {
	case MotionStop:
		return "stop"
	case MotionRun:
		return "run"
	case MotionHold:
		return "hold"
	default:
		return "unknown"
	}
}

// State is the lock-free cycle/motion state pair shared between the
// dispatcher (executor context) and the feedhold controller (foreground
// context, entering only through the documented hold entry points).
//
// PERFORMANCE: pure atomic CAS, no mutex, mirroring _examples/joeycumines-go-utilpkg/eventloop's
// FastState rationale — this sits on the segment-preparer hot path.
type State struct {
	cycle  atomic.Uint32
	motion atomic.Uint32
}

// NewState returns a state pair initialized to idle/stop.
func NewState() *State {
	s := &State{}
	s.cycle.Store(uint32(CycleIdle))
	s.motion.Store(uint32(MotionStop))
	return s
}

func (s *State) Cycle() CycleState   { return CycleState(s.cycle.Load()) }
func (s *State) Motion() MotionState { return MotionState(s.motion.Load()) }

// TryStartCycle transitions idle -> started; false if already started.
func (s *State) TryStartCycle() bool {
	return s.cycle.CompareAndSwap(uint32(CycleIdle), uint32(CycleStarted))
}

// EndCycle forces the cycle state back to idle, e.g. on flush_planner.
func (s *State) EndCycle() { s.cycle.Store(uint32(CycleIdle)) }

// SetMotion stores a new motion state unconditionally. Irreversible or
// externally-triggered transitions (stop, hold) use Store; see
// TryMotionTransition for CAS-guarded ones.
func (s *State) SetMotion(v MotionState) { s.motion.Store(uint32(v)) }

// TryMotionTransition attempts a CAS transition from one motion state to
// another, so a caller can't overwrite a state it read earlier and that a
// concurrent call has since changed.
func (s *State) TryMotionTransition(from, to MotionState) bool {
	return s.motion.CompareAndSwap(uint32(from), uint32(to))
}
