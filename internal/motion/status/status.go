// Package status defines the closed set of status codes and sentinel
// errors that cross the motion core's module boundary, per spec.md §6
// "Status codes" and §7 "Error handling design".
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop/errors.go: stdlib errors.New sentinels,
// wrapped with fmt.Errorf("%w", ...) where extra context is needed, no
// external error library — that package reaches for the same stdlib-only
// approach (see DESIGN.md for why no pack library improves on this here).
package status

import "errors"

// Code is one of the values spec.md §6 allows to cross the module
// boundary.
type Code uint8

const (
	OK Code = iota
	EAgain
	NoOp
	Complete
	BufferFullFatal
	ZeroLengthMove
	InternalError
)

func (c Code) String() string {
	switch c {
	case OK:
		return "ok"
	case EAgain:
		return "eagain"
	case NoOp:
		return "noop"
	case Complete:
		return "complete"
	case BufferFullFatal:
		return "buffer_full_fatal"
	case ZeroLengthMove:
		return "zero_length_move"
	case InternalError:
		return "internal_error"
	default:
		return "unknown"
	}
}

// Sentinel errors naming the same failure modes as the Code values, so
// callers that wrap a Code into an error can use errors.Is. The submit_*
// calls themselves return Code values, not these errors.
var (
	// ErrZeroLengthMove names a move whose length is below tolerance
	// (status.ZeroLengthMove). No block is created; no state is mutated.
	ErrZeroLengthMove = errors.New("motion: zero-length move rejected")

	// ErrZeroDurationMove names a move with a non-positive requested
	// duration; submit_line/submit_aline report that case as
	// status.ZeroLengthMove.
	ErrZeroDurationMove = errors.New("motion: zero-duration move rejected")

	// ErrBufferFull names the ring having no free slot (status.EAgain,
	// spec.md §7 "transient back-pressure"). This is not fatal: callers
	// loop or yield.
	ErrBufferFull = errors.New("motion: block buffer full")

	// ErrInternal wraps spec.md §7's "fatal internal invariant violation"
	// class: unknown move_type, a negative trapezoid section, ring cursor
	// divergence. These should be impossible and abort the active cycle.
	ErrInternal = errors.New("motion: internal invariant violation")
)
