package planner

import "math"

// targetLength is the constant-jerk ramp length for moving between
// velocities vi and vt under jerk j: L = |Vt-Vi| * sqrt(|Vt-Vi|/J).
func targetLength(vi, vt, j float64) float64 {
	dv := math.Abs(vt - vi)
	if dv <= 0 || j <= 0 {
		return 0
	}
	return dv * math.Sqrt(dv/j)
}

// targetVelocity is the inverse of targetLength, solved for the velocity
// reached after covering length l starting from vi under jerk j:
// Vt = L^(2/3) * J^(1/3) + Vi.
func targetVelocity(vi, l, j float64) float64 {
	if l <= 0 {
		return vi
	}
	return math.Cbrt(l*l)*math.Cbrt(j) + vi
}

// TargetLength exports targetLength for collaborators outside this package
// that need the same constant-jerk ramp-length formula, e.g. the feedhold
// controller's plan_hold (spec.md §4.9).
func TargetLength(vi, vt, j float64) float64 { return targetLength(vi, vt, j) }

// TargetVelocity exports targetVelocity, see TargetLength.
func TargetVelocity(vi, l, j float64) float64 { return targetVelocity(vi, l, j) }

// Trapezoid is the (head, body, tail) length split and the (possibly
// adjusted) velocities for one planned block, spec.md §4.5.
type Trapezoid struct {
	Head, Body, Tail float64
	Entry, Cruise, Exit float64
}

// TrapezoidTolerances bundles the numerical fudge factors §4.5 depends on.
type TrapezoidTolerances struct {
	Length           float64 // ε
	Velocity         float64 // τ_v
	SectionLength    float64 // τ_L
	ShortLineFactor  float64 // ~1.1
	AsymConvergence  float64 // ι
	AsymMaxIteration int
	MinSectionLength float64
}

// ComputeTrapezoid implements spec.md §4.5's ordered case analysis, given
// entry/cruise/exit velocities (Ve ≤ Vt ≥ Vx is assumed by the caller, the
// planner's forward pass), the section length L, and the composite jerk J.
func ComputeTrapezoid(ve, vt, vx, length, jerk float64, tol TrapezoidTolerances) Trapezoid {
	// Case 1: zero.
	if length < tol.Length {
		return Trapezoid{Entry: ve, Cruise: vt, Exit: vx}
	}

	// Case 2: body only.
	if math.Abs(vt-ve) < tol.Velocity && math.Abs(vt-vx) < tol.Velocity {
		return finalize(Trapezoid{Body: length, Entry: ve, Cruise: vt, Exit: vx}, length, tol)
	}

	// Case 3: HBT (trapezoid with cruise).
	head := targetLength(ve, vt, jerk)
	tail := targetLength(vx, vt, jerk)
	if head < length && length-head-tail > tol.Length {
		body := length - head - tail
		return finalize(Trapezoid{Head: head, Body: body, Tail: tail, Entry: ve, Cruise: vt, Exit: vx}, length, tol)
	}

	// Case 4: symmetric HT (Ve ≈ Vx).
	if math.Abs(ve-vx) < tol.Velocity {
		half := length / 2
		newVt := targetVelocity(ve, half, jerk)
		return finalize(Trapezoid{Head: half, Tail: half, Entry: ve, Cruise: newVt, Exit: vx}, length, tol)
	}

	minLen := targetLength(ve, vx, jerk)

	// Case 5: degraded H'/T'.
	if length < minLen-tol.SectionLength {
		if ve < vx {
			// SPEC_FULL.md §5: observed behavior degrades the exit (the
			// higher endpoint) rather than the entry. Pinned, not "fixed".
			newVx := targetVelocity(ve, length, jerk)
			return finalize(Trapezoid{Head: length, Entry: ve, Cruise: newVx, Exit: newVx}, length, tol)
		}
		newVe := targetVelocity(vx, length, jerk)
		return finalize(Trapezoid{Tail: length, Entry: newVe, Cruise: newVe, Exit: vx}, length, tol)
	}

	// Case 6: short two-section HB / BT.
	if length < minLen*tol.ShortLineFactor {
		if ve < vx {
			newVt := vx
			h := targetLength(ve, newVt, jerk)
			body := length - h
			return finalize(Trapezoid{Head: h, Body: body, Entry: ve, Cruise: newVt, Exit: vx}, length, tol)
		}
		newVt := ve
		tl := targetLength(vx, newVt, jerk)
		body := length - tl
		return finalize(Trapezoid{Body: body, Tail: tl, Entry: ve, Cruise: newVt, Exit: vx}, length, tol)
	}

	// Case 7: asymmetric HT, iterate to convergence.
	newVt := vt
	h, tl := head, tail
	for i := 0; i < tol.AsymMaxIteration; i++ {
		h = targetLength(ve, newVt, jerk)
		tl = targetLength(vx, newVt, jerk)
		total := h + tl
		if total <= 0 {
			break
		}
		h = h / total * length
		tl = length - h
		prevVt := newVt
		if h >= tl {
			newVt = targetVelocity(ve, h, jerk)
		} else {
			newVt = targetVelocity(vx, tl, jerk)
		}
		if newVt != 0 && math.Abs(newVt-prevVt)/newVt < tol.AsymConvergence {
			break
		}
		// non-convergence after AsymMaxIteration iterations: accept the last
		// computed Vt per spec.md §7 "Asymmetric-HT non-convergence".
	}
	return finalize(Trapezoid{Head: h, Tail: tl, Entry: ve, Cruise: newVt, Exit: vx}, length, tol)
}

// finalize absorbs any section shorter than MinSectionLength into the body,
// preserving head+body+tail == length exactly, per spec.md §4.5
// "Finalization".
func finalize(t Trapezoid, length float64, tol TrapezoidTolerances) Trapezoid {
	if t.Head > 0 && t.Head < tol.MinSectionLength {
		t.Body += t.Head
		t.Head = 0
	}
	if t.Tail > 0 && t.Tail < tol.MinSectionLength {
		t.Body += t.Tail
		t.Tail = 0
	}
	return t
}
