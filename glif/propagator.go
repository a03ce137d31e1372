// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"github.com/chewxy/math32"
)

// Props holds the exact state-transition coefficients for the linear part
// of the dynamics: closed-form solutions of the membrane and synapse ODEs
// over one step of size h.  These are derived-only values, recomputed by
// Calibrate whenever the time resolution or any time constant changes,
// and never serialized as model state.  Stale propagators are a
// correctness bug, not merely a performance one: Update refuses to run
// when Calibrated reports false.
type Props struct {

	// resolution h in ms the coefficients were computed for; 0 = not calibrated
	Res float32

	// membrane decay over one step: exp(-h/tau_m)
	P33 float32

	// constant-current coupling into Vm: (1 - P33) / g_L, in mV per pA
	P30 float32

	// per-receptor alpha-kernel state decay: exp(-h/tau_syn)
	P11 []float32

	// per-receptor cross term: h * exp(-h/tau_syn)
	P21 []float32

	// per-receptor coupling of the kernel rise state into Vm
	P31 []float32

	// per-receptor coupling of the kernel current state into Vm
	P32 []float32

	// per-receptor input normalization e/tau_syn: a unit-weight spike
	// produces a current peaking at 1 pA at tau_syn after arrival
	NFact []float32

	// per-ASC decay over one step: exp(-h/tau_j)
	AscProp []float32

	// per-ASC decay across the full refractory duration: exp(-t_ref/tau_j)
	AscRef []float32

	// spike-threshold component decay over one step: exp(-h/tau_s)
	ThSpikeProp float32

	// spike-threshold component decay across the refractory duration
	ThSpikeRef float32

	// voltage-threshold component decay over one step: exp(-b_v*h)
	ThVoltProp float32

	// refractory duration in whole steps: round(t_ref/h)
	RefStepsTot int
}

// Calibrate recomputes all coefficients from the given Params and the
// global simulation time resolution.  Call it once before a run and after
// any parameter change that touches a time constant.
func (pp *Props) Calibrate(pr *Params, tm *Time) {
	h := tm.Res
	taum := pr.Membrane.TauM()
	pp.Res = h
	pp.P33 = math32.Exp(-h / taum)
	pp.P30 = (1 - pp.P33) / pr.Membrane.GL

	nr := pr.Syn.NReceptors()
	pp.alloc(nr, pr.ASC.NAsc())
	for i, tau := range pr.Syn.TauSyn {
		pp.P11[i] = math32.Exp(-h / tau)
		pp.P21[i] = h * pp.P11[i]
		pp.P31[i], pp.P32[i] = propagator3(tau, taum, pr.Membrane.CM, h)
		pp.NFact[i] = math32.E / tau
	}
	for j := range pr.ASC.Amps {
		pp.AscProp[j] = math32.Exp(-h / pr.ASC.Tau[j])
		pp.AscRef[j] = math32.Exp(-pr.Reset.TRef / pr.ASC.Tau[j])
	}
	if pr.Thresh.Spike.On {
		pp.ThSpikeProp = math32.Exp(-h / pr.Thresh.Spike.Tau)
		pp.ThSpikeRef = math32.Exp(-pr.Reset.TRef / pr.Thresh.Spike.Tau)
	} else {
		pp.ThSpikeProp = 0
		pp.ThSpikeRef = 0
	}
	if pr.Thresh.Volt.On {
		pp.ThVoltProp = math32.Exp(-pr.Thresh.Volt.BV * h)
	} else {
		pp.ThVoltProp = 0
	}
	pp.RefStepsTot = tm.StepsFmMilli(pr.Reset.TRef)
}

// Calibrated returns true if the propagators are current for the given
// simulation time resolution.
func (pp *Props) Calibrated(tm *Time) bool {
	return pp.Res > 0 && pp.Res == tm.Res
}

// alloc sizes the per-receptor and per-ASC coefficient slices.
func (pp *Props) alloc(nr, na int) {
	if len(pp.P11) != nr {
		pp.P11 = make([]float32, nr)
		pp.P21 = make([]float32, nr)
		pp.P31 = make([]float32, nr)
		pp.P32 = make([]float32, nr)
		pp.NFact = make([]float32, nr)
	}
	if len(pp.AscProp) != na {
		pp.AscProp = make([]float32, na)
		pp.AscRef = make([]float32, na)
	}
}

// propagator3 returns the exact coefficients coupling the alpha-kernel
// rise state (P31) and current state (P32) into the membrane potential
// over one step of size h.  The naive closed form divides by
// 1/tau_m - 1/tau_syn, which loses all precision as the time constants
// approach each other; this formulation keeps the difference inside
// expm1 and switches to the series expansion in the singular limit.
func propagator3(tauSyn, tauM, cm, h float32) (p31, p32 float32) {
	dlt := 1/tauM - 1/tauSyn
	em := math32.Exp(-h / tauM)
	x := h * dlt
	if math32.Abs(x) < 1e-4 {
		// series about tau_syn == tau_m
		p31 = em / cm * (h*h/2 + dlt*h*h*h/3)
		p32 = em / cm * h * (1 + x/2)
		return
	}
	e1 := math32.Expm1(x)
	p32 = em / cm * e1 / dlt
	p31 = em / cm * (h*math32.Exp(x) - e1/dlt) / dlt
	return
}
