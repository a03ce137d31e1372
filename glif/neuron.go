// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"github.com/chewxy/math32"
)

// glif.Neuron is one generalized leaky integrate-and-fire neuron: it
// exclusively owns one Params / State / Buffers / Props quadruple and
// orchestrates the per-step update over its lifetime.  The surrounding
// kernel guarantees each neuron's step-range update is invoked
// synchronously from a single worker, and that event reception never
// overlaps an update, so the neuron performs no internal locking.
type Neuron struct {

	// neuron identity, used to tag errors and emitted spikes
	ID int

	// configuration parameters, immutable during a run except via SetParams
	Params Params

	// mutable state variables evolved every step
	State State

	// derived propagator coefficients, recomputed by Calibrate
	Props Props

	// per-receptor spike and current delay lines
	Bufs Buffers

	// external spike scheduler collaborator -- may be nil if the neuron's
	// spikes are not routed anywhere
	Sched SpikeScheduler

	// optional state recorder -- may be nil
	Rec *Recorder

	// fixed voltage clamp: when on, Vm is held at ClampVm while all other
	// channel state keeps evolving
	Clamp bool

	// clamp holding potential in mV (absolute)
	ClampVm float32

	// scratch per-receptor drained inputs for the current step
	drained []float32
}

// NewNeuron returns a new neuron with default parameters for the given
// variant, initialized state, and buffers sized for the given maximum
// synaptic delay in steps.
func NewNeuron(id int, vr Variants, maxDelay int) *Neuron {
	nrn := &Neuron{ID: id}
	nrn.Params.Defaults()
	nrn.Params.Variant = vr
	nrn.Params.Update()
	nrn.State.Init(&nrn.Params)
	nrn.InitBuffers(maxDelay)
	return nrn
}

// InitBuffers clears and (re)sizes the delay lines for the configured
// receptor count; called at the start of a run.
func (nrn *Neuron) InitBuffers(maxDelay int) {
	nrn.Bufs.Init(nrn.Params.Syn.NReceptors(), maxDelay)
	nrn.drained = make([]float32, nrn.Params.Syn.NReceptors())
}

// Calibrate recomputes the propagator coefficients from the current
// Params and the global simulation time resolution.  Must be called once
// before a run and after any parameter change affecting time constants.
func (nrn *Neuron) Calibrate(tm *Time) {
	nrn.Props.Calibrate(&nrn.Params, tm)
}

// SetParams applies a key-value parameter update through the validated
// stage-then-commit path, shifting state potentials if EL changed, and
// invalidating the propagators so a fresh Calibrate is required.
func (nrn *Neuron) SetParams(kv map[string]any) error {
	delEL, err := nrn.Params.SetKeys(kv)
	if err != nil {
		return err
	}
	if delEL != 0 {
		nrn.State.ShiftEL(delEL)
	}
	nrn.Props.Res = 0 // force recalibration before next Update
	if len(nrn.drained) != nrn.Params.Syn.NReceptors() {
		nrn.InitBuffers(nrn.Bufs.Currents.Size())
		nrn.State.Init(&nrn.Params)
	} else if len(nrn.State.ASC) != nrn.Params.ASC.NAsc() {
		nrn.State.Init(&nrn.Params)
	}
	return nil
}

// SetState applies a key-value state update ("V_m", "thr_spike",
// "thr_volt", "ref_steps", "asc") with the same stage-then-commit
// semantics as SetParams: validation failures leave committed state
// untouched.
func (nrn *Neuron) SetState(kv map[string]any) error {
	stage := nrn.State.Clone()
	for key, val := range kv {
		switch key {
		case "V_m":
			fv, ok := toFloat32(val)
			if !ok {
				return &ValidationError{Key: key, Value: val, Reason: "value must be numeric"}
			}
			stage.Vm = fv
		case "thr_spike":
			fv, ok := toFloat32(val)
			if !ok {
				return &ValidationError{Key: key, Value: val, Reason: "value must be numeric"}
			}
			stage.ThrSpike = fv
		case "thr_volt":
			fv, ok := toFloat32(val)
			if !ok {
				return &ValidationError{Key: key, Value: val, Reason: "value must be numeric"}
			}
			stage.ThrVolt = fv
		case "ref_steps":
			iv, ok := toInt(val)
			if !ok {
				return &ValidationError{Key: key, Value: val, Reason: "value must be an integer"}
			}
			stage.RefSteps = int32(iv)
		case "asc":
			sv, ok := val.([]float32)
			if !ok || len(sv) != len(stage.ASC) {
				return &ValidationError{Key: key, Value: val, Reason: "value must be a []float32 matching the configured after-spike currents"}
			}
			copy(stage.ASC, sv)
		default:
			return &ValidationError{Key: key, Value: val, Reason: "unknown state key"}
		}
	}
	if err := stage.Validate(); err != nil {
		return err
	}
	nrn.State = *stage
	return nil
}

// RecvSpike accumulates an incoming spike event into the addressed
// receptor's delay line.  Port 0 is the current-event port: spikes
// addressed there are incompatible; ports outside 1..NReceptors are
// unknown.  Called by the kernel outside the step loop.
func (nrn *Neuron) RecvSpike(ev *SpikeEvent) error {
	nr := nrn.Params.Syn.NReceptors()
	if ev.RPort == 0 {
		return &ReceptorError{Port: ev.RPort, NPorts: nr, Kind: ReceptorIncompatible}
	}
	if ev.RPort < 1 || ev.RPort > nr {
		return &ReceptorError{Port: ev.RPort, NPorts: nr, Kind: ReceptorUnknown}
	}
	nrn.Bufs.Spikes[ev.RPort-1].AddValue(ev.Step, ev.Weight*float32(ev.Multiplicity))
	return nil
}

// RecvCurrent accumulates an incoming current event into the current
// delay line.  Called by the kernel outside the step loop.
func (nrn *Neuron) RecvCurrent(ev *CurrentEvent) {
	nrn.Bufs.Currents.AddValue(ev.Step, ev.Current)
}

// ClampVmAt holds the membrane potential at the given absolute level
// while all other channel state keeps evolving; ClampOff releases it.
func (nrn *Neuron) ClampVmAt(vm float32) {
	nrn.Clamp = true
	nrn.ClampVm = vm
	nrn.State.Vm = vm
}

// ClampOff releases the voltage clamp.
func (nrn *Neuron) ClampOff() {
	nrn.Clamp = false
}

// Update advances the neuron over the half-open step range [from, to):
// for each step it drains the receptor buffers, advances the membrane and
// channel state, evaluates the threshold crossing, applies the reset
// protocol and emits a spike on crossing, and records public state.
// tm supplies the global resolution and absolute step count at `from`.
func (nrn *Neuron) Update(from, to int, tm *Time) error {
	if !nrn.Props.Calibrated(tm) {
		return ErrNotCalibrated
	}
	for s := from; s < to; s++ {
		lag := s - from
		if err := nrn.stepOnce(lag, tm.StepTot+lag, tm); err != nil {
			return err
		}
	}
	nrn.Bufs.Advance(to - from)
	return nil
}

// stepOnce performs one full simulation step at buffer lag and absolute
// step index.
func (nrn *Neuron) stepOnce(lag, step int, tm *Time) error {
	pr := &nrn.Params
	pp := &nrn.Props
	st := &nrn.State

	for i := range nrn.drained {
		nrn.drained[i] = nrn.Bufs.Spikes[i].ReadClear(lag)
	}
	cur := nrn.Bufs.Currents.ReadClear(lag)

	st.Spike = 0
	if pr.Noise.Type == CurrentNoise {
		st.Noise = float32(pr.Noise.Gen(-1))
	} else {
		st.Noise = 0
	}

	vmPrev := st.Vm
	inRef := st.RefSteps > 0
	switch {
	case nrn.Clamp:
		st.Vm = nrn.ClampVm
	case inRef:
		// potential held at its reset value through the refractory window
	default:
		itot := pr.Membrane.IE + cur + st.IAsc() + st.Noise
		pr.VmFmInputs(st, pp, itot)
	}

	pr.AscFmPrev(st, pp)
	pr.ThrFmVm(st, pp, vmPrev, inRef)

	if inRef {
		pr.RefStep(st, pp)
	} else if !nrn.Clamp && pr.Crossed(st) {
		if err := pr.ApplyReset(st, pp); err != nil {
			return err
		}
		st.Spike = 1
		st.ISI = 0
		if nrn.Sched != nil {
			nrn.Sched.SendSpike(OutSpike{NeuronID: nrn.ID, Step: step + 1})
		}
	}
	if st.Spike == 0 && st.ISI >= 0 {
		st.ISI++
	}

	pr.SynFmInputs(st, pp, nrn.drained)

	if nrn.Rec != nil {
		nrn.Rec.Record(st, step, float32(step)*tm.Res)
	}
	return nil
}

// RestVm returns the analytic resting potential for the current constant
// bias current: EL + IE / g_L, in mV.
func (nrn *Neuron) RestVm() float32 {
	return nrn.Params.Membrane.EL + nrn.Params.Membrane.IE/nrn.Params.Membrane.GL
}

// StepsToThresh returns the analytic number of steps for the membrane to
// first reach the baseline threshold from rest under constant current ie
// (pA), or -1 if it never reaches it.  Used for validating first-spike
// timing against theory.
func (nrn *Neuron) StepsToThresh(ie float32, tm *Time) int {
	pr := &nrn.Params
	vinf := ie / pr.Membrane.GL // relative to EL
	if vinf <= pr.Thresh.Base {
		return -1
	}
	tms := pr.Membrane.TauM() * math32.Log(vinf/(vinf-pr.Thresh.Base))
	return int(math32.Ceil(tms / tm.Res))
}
