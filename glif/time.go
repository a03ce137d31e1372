// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import "github.com/goki/mat32"

// glif.Time contains the global simulation timing state shared by the
// kernel and the neuron models: everything runs on a fixed grid of
// Res-sized steps, and models convert between steps and milliseconds
// through it.
type Time struct {

	// accumulated amount of simulation time, in ms
	Time float32

	// current step within the current update block
	Step int

	// total step count, incrementing continuously from last reset
	StepTot int

	// simulation time resolution: duration of one step, in ms
	Res float32 `def:"0.1"`
}

// NewTime returns a new Time struct with default parameters
func NewTime() *Time {
	tm := &Time{}
	tm.Defaults()
	return tm
}

// Defaults sets default values
func (tm *Time) Defaults() {
	tm.Res = 0.1
}

// Reset resets the counters all back to zero
func (tm *Time) Reset() {
	tm.Time = 0
	tm.Step = 0
	tm.StepTot = 0
	if tm.Res == 0 {
		tm.Defaults()
	}
}

// StepInc increments the step counters and advances simulation time
func (tm *Time) StepInc() {
	tm.Step++
	tm.StepTot++
	tm.Time += tm.Res
}

// BlockStart resets the within-block step counter at the start of an
// update block
func (tm *Time) BlockStart() {
	tm.Step = 0
}

// StepsFmMilli returns the number of whole steps for the given duration in
// ms, rounding to nearest to keep durations reproducible across
// resolutions that do not divide them exactly.
func (tm *Time) StepsFmMilli(milli float32) int {
	return int(mat32.Round(milli / tm.Res))
}
