package motion

import (
	"fmt"
	"math"
	"math/big"
)

// FormatAxisValue renders a position/velocity value to its shortest exact
// decimal representation, for status reports and logging where the
// trailing-zero noise of fmt's %v/%g float formatting is undesirable.
//
// Adapted from _examples/joeycumines-go-utilpkg/floater/fmt.go's
// FormatDecimalRat (fmt.go:10-42): a float64 is itself an exact binary
// fraction, so round-tripping it through a big.Float at its own precision
// and formatting with -1 (shortest round-trip) digits is exact, the same
// guarantee FormatDecimalRat makes for an arbitrary big.Rat. floater is its
// own Go module (a separate go.mod) and isn't importable as a dependency of
// this one; big.Float.Text('f', -1) gives the same "minimum exact decimal
// digits" result this call site needs without the general big.Rat-to-decimal
// machinery FormatDecimalRat provides for inputs that aren't already
// float64s.
func FormatAxisValue(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Sprintf("%v", v)
	}
	return new(big.Float).SetFloat64(v).Text('f', -1)
}
