// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package odeint provides an adaptive-step Runge-Kutta-Fehlberg 4(5) solver
for the nonlinear neuron models that have no closed-form propagator.
The right-hand side is a plain closure capturing whatever parameter and
state data it needs -- there is no opaque context pointer.

The solver is invoked repeatedly within one simulation step until the full
step interval is covered; any failure to converge is reported as an error
and must abort the run, since continuing would produce physically
meaningless trajectories.
*/
package odeint

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
)

// Func is the ODE right-hand side: given time t and state y, it writes
// dy/dt into dydt.  len(dydt) == len(y) always.
type Func func(t float32, y, dydt []float32)

// Sentinel solver failures.
var (
	// ErrStepTooSmall indicates the error-controlled step size fell below
	// Config.MinStep without meeting the tolerance.
	ErrStepTooSmall = errors.New("odeint: adaptive step size below minimum")

	// ErrMaxSteps indicates the solver exceeded Config.MaxSteps before
	// covering the requested interval.
	ErrMaxSteps = errors.New("odeint: maximum step count exceeded")
)

// Config holds the error-control parameters for the adaptive stepper.
type Config struct {

	// initial trial step size -- if 0, the full interval is tried first
	InitStep float32

	// minimum allowed step size -- going below this aborts with ErrStepTooSmall
	MinStep float32 `def:"1e-6"`

	// maximum allowed step size -- 0 means no cap beyond the interval itself
	MaxStep float32

	// absolute error tolerance per step
	AbsTol float32 `def:"1e-6"`

	// relative error tolerance per step
	RelTol float32 `def:"1e-6"`

	// maximum number of accepted+rejected steps per Integrate call
	MaxSteps int `def:"10000"`
}

// Defaults sets default error-control parameters.
func (cf *Config) Defaults() {
	cf.MinStep = 1e-6
	cf.AbsTol = 1e-6
	cf.RelTol = 1e-6
	cf.MaxSteps = 10000
}

// Stats accumulates diagnostics across Integrate calls, for tuning
// tolerances and spotting stiff parameter regimes.
type Stats struct {

	// number of accepted steps
	Steps int

	// number of rejected (repeated) steps
	Rejected int

	// number of right-hand-side evaluations
	Evals int

	// size of the last accepted step
	LastStep float32

	// proposed size for the next step
	NextStep float32
}

// Reset zeroes the statistics.
func (st *Stats) Reset() {
	*st = Stats{}
}

// Stepper integrates a Func with RKF45 adaptive stepping.
// A Stepper is reused across simulation steps to amortize the
// stage-buffer allocations; it is not safe for concurrent use.
type Stepper struct {

	// error-control configuration
	Config Config

	// run diagnostics
	Stats Stats

	// the right-hand side being integrated
	Fcn Func

	// stage buffers, sized to the system on first use
	k1, k2, k3, k4, k5, k6, ytmp, yerr, y4 []float32
}

// NewStepper returns a stepper for the given right-hand side with
// default error-control configuration.
func NewStepper(fcn Func) *Stepper {
	st := &Stepper{Fcn: fcn}
	st.Config.Defaults()
	return st
}

// alloc sizes the stage buffers for an n-dimensional system.
func (st *Stepper) alloc(n int) {
	if len(st.k1) == n {
		return
	}
	st.k1 = make([]float32, n)
	st.k2 = make([]float32, n)
	st.k3 = make([]float32, n)
	st.k4 = make([]float32, n)
	st.k5 = make([]float32, n)
	st.k6 = make([]float32, n)
	st.ytmp = make([]float32, n)
	st.yerr = make([]float32, n)
	st.y4 = make([]float32, n)
}

// Fehlberg 4(5) tableau.
var (
	rkfA = [6]float32{0, 1.0 / 4.0, 3.0 / 8.0, 12.0 / 13.0, 1, 1.0 / 2.0}
	rkfB = [6][5]float32{
		{},
		{1.0 / 4.0},
		{3.0 / 32.0, 9.0 / 32.0},
		{1932.0 / 2197.0, -7200.0 / 2197.0, 7296.0 / 2197.0},
		{439.0 / 216.0, -8, 3680.0 / 513.0, -845.0 / 4104.0},
		{-8.0 / 27.0, 2, -3544.0 / 2565.0, 1859.0 / 4104.0, -11.0 / 40.0},
	}
	rkfC4 = [6]float32{25.0 / 216.0, 0, 1408.0 / 2565.0, 2197.0 / 4104.0, -1.0 / 5.0, 0}
	rkfC5 = [6]float32{16.0 / 135.0, 0, 6656.0 / 12825.0, 28561.0 / 56430.0, -9.0 / 50.0, 2.0 / 55.0}
)

// Integrate advances y from t0 to t1 in place, taking as many
// error-controlled sub-steps as needed.  On failure y is left at the last
// accepted sub-step and a typed error is returned.
func (st *Stepper) Integrate(t0, t1 float32, y []float32) error {
	if t1 <= t0 {
		return nil
	}
	n := len(y)
	st.alloc(n)
	t := t0
	h := st.Config.InitStep
	if h <= 0 || h > t1-t0 {
		h = t1 - t0
	}
	if st.Config.MaxStep > 0 && h > st.Config.MaxStep {
		h = st.Config.MaxStep
	}
	nstep := 0
	for t < t1 {
		if nstep >= st.Config.MaxSteps {
			return fmt.Errorf("%w: %d steps from t=%g", ErrMaxSteps, nstep, t0)
		}
		nstep++
		if t+h > t1 {
			h = t1 - t
		}
		errMax := st.step(t, h, y)
		if errMax <= 1 {
			// accepted
			t += h
			copy(y, st.y4)
			st.Stats.Steps++
			st.Stats.LastStep = h
			h *= stepGrow(errMax)
			if st.Config.MaxStep > 0 && h > st.Config.MaxStep {
				h = st.Config.MaxStep
			}
			st.Stats.NextStep = h
			continue
		}
		// rejected: shrink and retry
		st.Stats.Rejected++
		h *= stepShrink(errMax)
		if h < st.Config.MinStep {
			return fmt.Errorf("%w: h=%g at t=%g", ErrStepTooSmall, h, t)
		}
	}
	return nil
}

// step takes one trial RKF45 step of size h from t, leaving the 4th-order
// solution in y4 and returning the max error ratio (<= 1 means accept).
func (st *Stepper) step(t, h float32, y []float32) float32 {
	n := len(y)
	st.Fcn(t, y, st.k1)
	ks := [6][]float32{st.k1, st.k2, st.k3, st.k4, st.k5, st.k6}
	for s := 1; s < 6; s++ {
		for i := 0; i < n; i++ {
			sum := float32(0)
			for j := 0; j < s; j++ {
				sum += rkfB[s][j] * ks[j][i]
			}
			st.ytmp[i] = y[i] + h*sum
		}
		st.Fcn(t+rkfA[s]*h, st.ytmp, ks[s])
	}
	st.Stats.Evals += 6
	errMax := float32(0)
	for i := 0; i < n; i++ {
		var s4, s5 float32
		for s := 0; s < 6; s++ {
			s4 += rkfC4[s] * ks[s][i]
			s5 += rkfC5[s] * ks[s][i]
		}
		st.y4[i] = y[i] + h*s4
		st.yerr[i] = h * (s5 - s4)
		tol := st.Config.AbsTol + st.Config.RelTol*math32.Abs(st.y4[i])
		er := math32.Abs(st.yerr[i]) / tol
		if er > errMax {
			errMax = er
		}
	}
	return errMax
}

// stepGrow returns the step-size growth factor after an accepted step,
// capped at 5x.
func stepGrow(errMax float32) float32 {
	if errMax <= 0 {
		return 5
	}
	f := 0.9 * math32.Pow(errMax, -0.2)
	if f > 5 {
		f = 5
	}
	return f
}

// stepShrink returns the step-size reduction factor after a rejected step,
// bounded to [0.1, 0.9].
func stepShrink(errMax float32) float32 {
	f := 0.9 * math32.Pow(errMax, -0.25)
	if f < 0.1 {
		f = 0.1
	}
	if f > 0.9 {
		f = 0.9
	}
	return f
}
