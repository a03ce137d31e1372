// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"fmt"

	"github.com/chewxy/math32"
)

// glif.State holds all the mutable per-neuron variables evolved every
// step.  It is constructed from Params at neuron creation, mutated once
// per step by the integrator, and optionally overwritten by external
// set-state calls through the same stage-then-commit path as Params.
type State struct {

	// membrane potential in mV (absolute)
	Vm float32

	// total threshold in mV (absolute): EL + baseline + active components,
	// refreshed every step for recording
	Thr float32

	// spike-adaptive threshold component in mV (relative contribution)
	ThrSpike float32

	// voltage-adaptive threshold component in mV (relative contribution)
	ThrVolt float32

	// after-spike current values in pA, one per configured current
	ASC []float32

	// per-receptor alpha-kernel rise states (pA/ms scaled)
	SynY1 []float32

	// per-receptor synaptic currents in pA
	SynY2 []float32

	// refractory countdown in steps -- no spike while positive
	RefSteps int32

	// whether the neuron spiked on the current step (0 or 1)
	Spike float32

	// steps since last spike -- starts at -1 when initialized
	ISI float32

	// last noise value added to the membrane current, in pA
	Noise float32
}

// Init sets the state to its configured initial values for the given
// Params: equilibrium (or explicit VInit) potential, zeroed synaptic and
// adaptive components, no refractoriness.
func (st *State) Init(pr *Params) {
	nr := pr.Syn.NReceptors()
	na := pr.ASC.NAsc()
	if len(st.SynY1) != nr {
		st.SynY1 = make([]float32, nr)
		st.SynY2 = make([]float32, nr)
	}
	if len(st.ASC) != na {
		st.ASC = make([]float32, na)
	}
	for i := range st.SynY1 {
		st.SynY1[i] = 0
		st.SynY2[i] = 0
	}
	for j := range st.ASC {
		st.ASC[j] = 0
	}
	st.Vm = pr.Membrane.EL + pr.Membrane.VInit
	st.ThrSpike = 0
	st.ThrVolt = 0
	st.Thr = pr.Membrane.EL + pr.Thresh.Base
	st.RefSteps = 0
	st.Spike = 0
	st.ISI = -1
	st.Noise = 0
}

// Clone returns a deep copy, including the per-receptor and per-ASC
// slices, suitable for stage-then-commit validation.
func (st *State) Clone() *State {
	ns := *st
	ns.ASC = append([]float32(nil), st.ASC...)
	ns.SynY1 = append([]float32(nil), st.SynY1...)
	ns.SynY2 = append([]float32(nil), st.SynY2...)
	return &ns
}

// Validate checks state invariants: finite potentials and a non-negative
// refractory countdown.
func (st *State) Validate() error {
	if math32.IsNaN(st.Vm) || math32.IsInf(st.Vm, 0) {
		return &ValidationError{Key: "V_m", Value: st.Vm, Reason: "membrane potential must be finite"}
	}
	if st.RefSteps < 0 {
		return &ValidationError{Key: "ref_steps", Value: st.RefSteps, Reason: "refractory countdown cannot be negative"}
	}
	return nil
}

// ShiftEL shifts all potentials defined relative to the leak reversal by
// the given delta, as returned from Params.SetKeys when EL changes.
func (st *State) ShiftEL(del float32) {
	st.Vm += del
	st.Thr += del
}

// ISyn returns the total synaptic current in pA, summed over receptors.
func (st *State) ISyn() float32 {
	var sum float32
	for _, y2 := range st.SynY2 {
		sum += y2
	}
	return sum
}

// IAsc returns the total after-spike current in pA.
func (st *State) IAsc() float32 {
	var sum float32
	for _, a := range st.ASC {
		sum += a
	}
	return sum
}

///////////////////////////////////////////////////////////////////////
//  Recordable state

// StateVars is the fixed table of publicly recordable state variable
// names, queried by the external data logger through VarByName.
var StateVars = []string{"Vm", "Thr", "ThrSpike", "ThrVolt", "ISyn", "IAsc", "RefSteps", "Spike", "ISI", "Noise"}

var StateVarsMap map[string]int

func init() {
	StateVarsMap = make(map[string]int, len(StateVars))
	for i, v := range StateVars {
		StateVarsMap[v] = i
	}
}

func (st *State) VarNames() []string {
	return StateVars
}

// StateVarByName returns the index of the variable in the StateVars list, or error
func StateVarByName(varNm string) (int, error) {
	i, ok := StateVarsMap[varNm]
	if !ok {
		return -1, fmt.Errorf("State VarByName: variable name: %v not valid", varNm)
	}
	return i, nil
}

// VarByIndex returns variable using index (0 = first variable in StateVars list)
func (st *State) VarByIndex(idx int) float32 {
	switch StateVars[idx] {
	case "Vm":
		return st.Vm
	case "Thr":
		return st.Thr
	case "ThrSpike":
		return st.ThrSpike
	case "ThrVolt":
		return st.ThrVolt
	case "ISyn":
		return st.ISyn()
	case "IAsc":
		return st.IAsc()
	case "RefSteps":
		return float32(st.RefSteps)
	case "Spike":
		return st.Spike
	case "ISI":
		return st.ISI
	case "Noise":
		return st.Noise
	}
	return math32.NaN()
}

// VarByName returns variable by name, or error
func (st *State) VarByName(varNm string) (float32, error) {
	i, err := StateVarByName(varNm)
	if err != nil {
		return math32.NaN(), err
	}
	return st.VarByIndex(i), nil
}
