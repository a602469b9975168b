// Package timer defines the motion core's consumed contract with the
// hardware step-timer/GPIO front-end, spec.md §6 "Planner-to-timer API
// (consumed)", plus a simulated reference implementation for tests and the
// demo harness.
//
// Grounded on _examples/joeycumines-go-utilpkg/eventloop's poller.go pattern: a small interface the
// core depends on, with platform-specific or simulated implementations kept
// out of the core's import graph.
package timer

import (
	"github.com/Leealpha1/TinyG/internal/motion/config"
	"github.com/Leealpha1/TinyG/internal/motion/status"
)

// Driver is the step-pulse front-end the segment preparer hands prepared
// step programs to. Implementations own actual timer/GPIO hardware; this
// package only documents and simulates the contract.
type Driver interface {
	// PrepLine loads the next step program: per-motor signed step counts to
	// be pulsed evenly over duration_us. Returns status.EAgain if the
	// front-end's double-buffer is still draining the previous program.
	PrepLine(steps [config.Motors]int32, durationMicros float64) status.Code

	// PrepDwell loads a dwell program: no step pulses for durationMicros.
	PrepDwell(durationMicros float64) status.Code

	// PrepNull arms a no-op program, keeping the pipeline primed after
	// non-motion blocks (M-codes), per spec.md §4.7.
	PrepNull() status.Code
}

// SimDriver is an in-memory Driver used by tests and cmd/motionsim: it
// always accepts immediately and records the programs it was given.
type SimDriver struct {
	Programs []Program
}

// Program is one recorded call to the driver, tagged by kind.
type Program struct {
	Kind           ProgramKind
	Steps          [config.Motors]int32
	DurationMicros float64
}

// ProgramKind distinguishes the three program shapes a Driver accepts.
type ProgramKind uint8

const (
	ProgramLine ProgramKind = iota
	ProgramDwell
	ProgramNull
)

func NewSimDriver() *SimDriver { return &SimDriver{} }

func (d *SimDriver) PrepLine(steps [config.Motors]int32, durationMicros float64) status.Code {
	d.Programs = append(d.Programs, Program{Kind: ProgramLine, Steps: steps, DurationMicros: durationMicros})
	return status.OK
}

func (d *SimDriver) PrepDwell(durationMicros float64) status.Code {
	d.Programs = append(d.Programs, Program{Kind: ProgramDwell, DurationMicros: durationMicros})
	return status.OK
}

func (d *SimDriver) PrepNull() status.Code {
	d.Programs = append(d.Programs, Program{Kind: ProgramNull})
	return status.OK
}

// Reset discards recorded programs, for reuse across test cases.
func (d *SimDriver) Reset() { d.Programs = d.Programs[:0] }
