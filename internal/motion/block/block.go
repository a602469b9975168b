// Package block implements the move-block ring buffer: spec.md §3 "Move
// block" / "Block buffer" and §4.2 block buffer operations.
//
// Grounded on _examples/joeycumines-go-utilpkg/catrate/ring.go for ring-index arithmetic, adapted per
// spec.md §9's design note: a fixed-size array with index-based pv/nx
// neighbor fields rather than raw pointers, so slot ownership is the array
// and no pointer chase crosses the planner/executor boundary.
package block

import "github.com/Leealpha1/TinyG/internal/motion/config"

// MoveType is the tagged variant of what a block's payload represents,
// dispatched exhaustively in runtime.Dispatcher (spec.md §4.7, §9).
type MoveType uint8

const (
	MoveNone MoveType = iota
	MoveLineSimple
	MoveAline
	MoveDwell
	MoveMCode
	MoveTool
	MoveSpindle
)

func (t MoveType) String() string {
	switch t {
	case MoveNone:
		return "none"
	case MoveLineSimple:
		return "line-simple"
	case MoveAline:
		return "aline"
	case MoveDwell:
		return "dwell"
	case MoveMCode:
		return "mcode"
	case MoveTool:
		return "tool"
	case MoveSpindle:
		return "spindle"
	default:
		return "unknown"
	}
}

// BufferState is a block's position in the producer/executor handshake,
// spec.md §3 "Buffer buffer_state".
type BufferState uint8

const (
	BufferEmpty BufferState = iota
	BufferLoading
	BufferQueued
	BufferPending
	BufferRunning
)

func (s BufferState) String() string {
	switch s {
	case BufferEmpty:
		return "empty"
	case BufferLoading:
		return "loading"
	case BufferQueued:
		return "queued"
	case BufferPending:
		return "pending"
	case BufferRunning:
		return "running"
	default:
		return "unknown"
	}
}

// MoveState is where a running aline is within its trapezoid, spec.md §3
// "move_state".
type MoveState uint8

const (
	MoveStateOff MoveState = iota
	MoveStateNew
	MoveStateRun
	MoveStateRun1
	MoveStateRun2
	MoveStateHead
	MoveStateBody
	MoveStateTail
)

func (s MoveState) String() string {
	switch s {
	case MoveStateOff:
		return "off"
	case MoveStateNew:
		return "new"
	case MoveStateRun:
		return "run"
	case MoveStateRun1:
		return "run1"
	case MoveStateRun2:
		return "run2"
	case MoveStateHead:
		return "head"
	case MoveStateBody:
		return "body"
	case MoveStateTail:
		return "tail"
	default:
		return "unknown"
	}
}

// Vector is a fixed-size per-axis value, used for targets, unit vectors and
// offsets throughout the planner.
type Vector = [config.Axes]float64

// Block is one planned Cartesian move, spec.md §3 "Move block".
type Block struct {
	LineNumber int32
	MoveType   MoveType
	MoveCode   int32

	BufferState BufferState
	MoveState   MoveState

	Replannable bool
	HoldPoint   bool

	Target Vector
	Unit   Vector
	Length float64
	Time   float64// requested duration, minutes

	HeadLength float64
	BodyLength float64
	TailLength float64

	EntryVelocity  float64
	CruiseVelocity float64
	ExitVelocity   float64

	EntryVmax   float64
	CruiseVmax  float64
	ExitVmax    float64
	DeltaVmax   float64
	BrakingVelocity float64

	Jerk        float64
	JerkRecip   float64 // 1/jerk
	JerkCubeRt  float64 // jerk^(1/3)

	// Pv/Nx are the ring-neighbor indices into Buffer.slots. They are fixed
	// at ring construction time (the ring never resizes) and preserved by
	// every clear/copy, per spec.md §4.2's invariant.
	Pv int
	Nx int
}

// reset zero-fills the payload fields while preserving Pv/Nx, mirroring
// spec.md §4.2 checkout_write / free_run behavior.
func (b *Block) reset() {
	pv, nx := b.Pv, b.Nx
	*b = Block{}
	b.Pv, b.Nx = pv, nx
}
