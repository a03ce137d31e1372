// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcomp

import (
	"github.com/cnrlab/glif/chans"
	"github.com/cnrlab/glif/glif"
	"github.com/cnrlab/glif/odeint"
)

// State holds the mutable variables of one multi-compartment neuron.
// Receptor conductances are kept as their rise / decay exponential pair;
// the observable conductance is the normalized difference.
type State struct {

	// per-compartment membrane potential in mV
	Vm []float32 `desc:"per-compartment membrane potential in mV"`

	// rising exponential of each receptor conductance, [comp][receptor]
	Rise [][]float32 `desc:"rising exponential of each receptor conductance"`

	// decaying exponential of each receptor conductance, [comp][receptor]
	Decay [][]float32 `desc:"decaying exponential of each receptor conductance"`

	// remaining refractory steps on the soma
	RefSteps int32 `desc:"remaining refractory steps on the soma"`

	// 1 if the soma spiked on the last step, else 0
	Spike float32 `desc:"1 if the soma spiked on the last step, else 0"`

	// steps since the last spike, -1 before the first
	ISI float32 `desc:"steps since the last spike, -1 before the first"`
}

// Init allocates and resets the state to each compartment's leak
// reversal potential with silent receptors.
func (st *State) Init(pr *Params) {
	nc := pr.NComps()
	st.Vm = make([]float32, nc)
	st.Rise = make([][]float32, nc)
	st.Decay = make([][]float32, nc)
	for i := range pr.Comps {
		st.Vm[i] = pr.Comps[i].Erev.L
		st.Rise[i] = make([]float32, len(pr.Comps[i].Receptors))
		st.Decay[i] = make([]float32, len(pr.Comps[i].Receptors))
	}
	st.RefSteps = 0
	st.Spike = 0
	st.ISI = -1
}

// GSyn returns the observable synaptic conductance of the given receptor
// in nS.
func (st *State) GSyn(pr *Params, ci, ri int) float32 {
	return pr.Comps[ci].Receptors[ri].NFact * (st.Decay[ci][ri] - st.Rise[ci][ri])
}

// GSynTot returns the summed receptor conductance on a compartment in nS.
func (st *State) GSynTot(pr *Params, ci int) float32 {
	tot := float32(0)
	for ri := range st.Rise[ci] {
		tot += st.GSyn(pr, ci, ri)
	}
	return tot
}

// Neuron is one multi-compartment conductance-based neuron.  Like
// glif.Neuron it exclusively owns its state and buffers, is updated
// synchronously over step ranges, and hands emitted spikes to an external
// scheduler.  The soma is compartment 0.
type Neuron struct {

	// neuron identity, used to tag errors and emitted spikes
	ID int

	// configuration parameters
	Params Params

	// mutable state variables
	State State

	// per-receptor spike and current delay lines
	Bufs glif.Buffers

	// external spike scheduler collaborator -- may be nil
	Sched glif.SpikeScheduler

	// optional state recorder -- may be nil
	Rec *Recorder

	// voltage clamp: when on, compartment ClampComp is held at ClampVm
	// while everything else keeps evolving
	Clamp bool

	// clamped compartment index
	ClampComp int

	// clamp holding potential in mV
	ClampVm float32

	// adaptive solver, reused across steps
	stepper *odeint.Stepper

	// calibrated step resolution in ms -- 0 means not calibrated
	res float32

	// refractory window length in steps at the calibrated resolution
	refTot int32

	// packed ODE state vector and per-compartment offsets into it
	y    []float32
	offs []int

	// previous-step potentials used for explicit coupling
	vmPrev []float32

	// injected current from drained current events, applied to the soma
	// for the duration of the current step
	inj float32

	// soma held at reset through the current step's integration
	refHold bool
}

// NewNeuron returns a neuron with default two-compartment parameters and
// buffers sized for the given maximum synaptic delay in steps.
func NewNeuron(id int, maxDelay int) *Neuron {
	nrn := &Neuron{ID: id}
	nrn.Params.Defaults()
	nrn.State.Init(&nrn.Params)
	nrn.InitBuffers(maxDelay)
	nrn.stepper = odeint.NewStepper(nrn.deriv)
	return nrn
}

// InitBuffers clears and (re)sizes the delay lines for the configured
// receptor count.
func (nrn *Neuron) InitBuffers(maxDelay int) {
	nrn.Bufs.Init(nrn.Params.NReceptors(), maxDelay)
}

// Calibrate validates the parameters, recomputes derived values, sizes
// the packed state vector, and locks in the step resolution.  Must be
// called before a run and after any parameter change.
func (nrn *Neuron) Calibrate(tm *glif.Time) error {
	nrn.Params.Update()
	if err := nrn.Params.Validate(); err != nil {
		return err
	}
	n := 0
	nrn.offs = make([]int, nrn.Params.NComps())
	for i := range nrn.Params.Comps {
		nrn.offs[i] = n
		n += 1 + 2*len(nrn.Params.Comps[i].Receptors)
	}
	nrn.y = make([]float32, n)
	nrn.vmPrev = make([]float32, nrn.Params.NComps())
	if nrn.stepper == nil {
		nrn.stepper = odeint.NewStepper(nrn.deriv)
	}
	nrn.stepper.Config = nrn.Params.Solver
	nrn.refTot = int32(tm.StepsFmMilli(nrn.Params.Spike.TRef))
	nrn.res = tm.Res
	return nil
}

// Calibrated returns true if Calibrate has run at the given resolution.
func (nrn *Neuron) Calibrated(tm *glif.Time) bool {
	return nrn.res > 0 && nrn.res == tm.Res
}

// RecvSpike accumulates an incoming spike event into the addressed
// receptor's delay line.  Ports are 1-based across all compartments in
// declaration order; port 0 is the current-event port.
func (nrn *Neuron) RecvSpike(ev *glif.SpikeEvent) error {
	nr := nrn.Params.NReceptors()
	if ev.RPort == 0 {
		return &glif.ReceptorError{Port: ev.RPort, NPorts: nr, Kind: glif.ReceptorIncompatible}
	}
	if ev.RPort < 1 || ev.RPort > nr {
		return &glif.ReceptorError{Port: ev.RPort, NPorts: nr, Kind: glif.ReceptorUnknown}
	}
	nrn.Bufs.Spikes[ev.RPort-1].AddValue(ev.Step, ev.Weight*float32(ev.Multiplicity))
	return nil
}

// RecvCurrent accumulates an incoming current event into the current
// delay line; drained currents are injected into the soma.
func (nrn *Neuron) RecvCurrent(ev *glif.CurrentEvent) {
	nrn.Bufs.Currents.AddValue(ev.Step, ev.Current)
}

// ClampVmAt holds the given compartment at the given potential while all
// other state keeps evolving; ClampOff releases it.  Spike detection is
// suppressed while the soma is clamped.
func (nrn *Neuron) ClampVmAt(comp int, vm float32) {
	nrn.Clamp = true
	nrn.ClampComp = comp
	nrn.ClampVm = vm
	nrn.State.Vm[comp] = vm
}

// ClampOff releases the voltage clamp.
func (nrn *Neuron) ClampOff() {
	nrn.Clamp = false
}

// Update advances the neuron over the half-open step range [from, to),
// draining the delay lines, integrating each step interval with the
// adaptive solver, and applying threshold / reset / refractory dynamics
// on the soma.  Solver failures abort the run with an IntegrationError.
func (nrn *Neuron) Update(from, to int, tm *glif.Time) error {
	if !nrn.Calibrated(tm) {
		return glif.ErrNotCalibrated
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
func (nrn *Neuron) stepOnce(lag, step int, tm *glif.Time) error {
	pr := &nrn.Params
	st := &nrn.State

	for p := 0; p < pr.NReceptors(); p++ {
		w := nrn.Bufs.Spikes[p].ReadClear(lag)
		if w == 0 {
			continue
		}
		ci, ri, _ := pr.RecvComp(p + 1)
		inc := w * pr.Comps[ci].Receptors[ri].GPeak
		st.Rise[ci][ri] += inc
		st.Decay[ci][ri] += inc
	}
	nrn.inj = nrn.Bufs.Currents.ReadClear(lag)

	st.Spike = 0
	inRef := st.RefSteps > 0
	nrn.refHold = inRef
	copy(nrn.vmPrev, st.Vm)
	somaPre := st.Vm[0]

	nrn.pack()
	if err := nrn.stepper.Integrate(0, tm.Res, nrn.y); err != nil {
		return &glif.IntegrationError{NeuronID: nrn.ID, Time: float32(step) * tm.Res, Err: err}
	}
	nrn.unpack()

	// integration holds the derivative at zero for held compartments;
	// pin the values against drift anyway
	if nrn.Clamp {
		st.Vm[nrn.ClampComp] = nrn.ClampVm
	}
	if inRef {
		st.Vm[0] = pr.Spike.VReset
		st.RefSteps--
	} else if !(nrn.Clamp && nrn.ClampComp == 0) && st.Vm[0] >= pr.Spike.Thr {
		off := float32(0)
		if st.Vm[0] > somaPre {
			frac := (pr.Spike.Thr - somaPre) / (st.Vm[0] - somaPre)
			off = tm.Res * (1 - frac)
		}
		st.Vm[0] = pr.Spike.VReset
		st.RefSteps = nrn.refTot
		st.Spike = 1
		st.ISI = 0
		if nrn.Sched != nil {
			nrn.Sched.SendSpike(glif.OutSpike{NeuronID: nrn.ID, Step: step + 1, Offset: off})
		}
	}
	if st.Spike == 0 && st.ISI >= 0 {
		st.ISI++
	}

	if nrn.Rec != nil {
		nrn.Rec.Record(pr, st, step, float32(step)*tm.Res)
	}
	return nil
}

// deriv is the ODE right-hand side over the packed state vector.
// Coupling currents use the frozen previous-step neighbor potentials, so
// each compartment's equations depend only on its own live state.
func (nrn *Neuron) deriv(t float32, y, dydt []float32) {
	pr := &nrn.Params
	for i := range pr.Comps {
		cp := &pr.Comps[i]
		o := nrn.offs[i]
		v := y[o]
		icur := chans.Current(&cp.Gbar, &cp.Erev, v) + cp.IE
		if i == 0 {
			icur += nrn.inj
		}
		for r := range cp.Receptors {
			rp := &cp.Receptors[r]
			gr := y[o+1+2*r]
			gd := y[o+2+2*r]
			g := rp.NFact * (gd - gr)
			icur += g * (rp.Erev - v)
			dydt[o+1+2*r] = -gr / rp.TauRise
			dydt[o+2+2*r] = -gd / rp.TauDecay
		}
		for j := range pr.Comps {
			if j == i {
				continue
			}
			gc := pr.Coupling[i][j]
			if gc > 0 {
				icur += gc * (nrn.vmPrev[j] - v)
			}
		}
		held := (nrn.Clamp && nrn.ClampComp == i) || (nrn.refHold && i == 0)
		if held {
			dydt[o] = 0
		} else {
			dydt[o] = icur / cp.CM
		}
	}
}

// pack copies the state into the solver vector.
func (nrn *Neuron) pack() {
	for i := range nrn.offs {
		o := nrn.offs[i]
		nrn.y[o] = nrn.State.Vm[i]
		for r := range nrn.State.Rise[i] {
			nrn.y[o+1+2*r] = nrn.State.Rise[i][r]
			nrn.y[o+2+2*r] = nrn.State.Decay[i][r]
		}
	}
}

// unpack copies the solver vector back into the state.
func (nrn *Neuron) unpack() {
	for i := range nrn.offs {
		o := nrn.offs[i]
		nrn.State.Vm[i] = nrn.y[o]
		for r := range nrn.State.Rise[i] {
			nrn.State.Rise[i][r] = nrn.y[o+1+2*r]
			nrn.State.Decay[i][r] = nrn.y[o+2+2*r]
		}
	}
}

// SolverStats returns the accumulated adaptive solver diagnostics.
func (nrn *Neuron) SolverStats() odeint.Stats {
	if nrn.stepper == nil {
		return odeint.Stats{}
	}
	return nrn.stepper.Stats
}
