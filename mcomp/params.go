// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package mcomp implements coupled multi-compartment conductance-based
neurons.  Unlike the closed-form point models in glif, the compartment
equations are nonlinear in general, so each simulation step is integrated
with the adaptive odeint solver.  Inter-compartment coupling currents use
the neighbor's potential from the previous step boundary, which decouples
the compartments within a step and keeps the per-compartment systems
small.

Biological units throughout: capacitance in pF, conductances in nS,
potentials in mV, currents in pA, time in ms.
*/
package mcomp

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/cnrlab/glif/chans"
	"github.com/cnrlab/glif/glif"
	"github.com/cnrlab/glif/odeint"
)

// ReceptorParams describes one double-exponential synaptic conductance on
// a compartment.  An incoming spike of weight w raises the conductance
// along a difference of exponentials normalized so its peak equals
// w * GPeak.
type ReceptorParams struct {

	// reversal potential of the receptor channel in mV
	Erev float32 `desc:"reversal potential of the receptor channel in mV"`

	// conductance rise time constant in ms -- must be strictly positive
	// and below TauDecay
	TauRise float32 `def:"0.5" desc:"conductance rise time constant in ms"`

	// conductance decay time constant in ms
	TauDecay float32 `def:"5" desc:"conductance decay time constant in ms"`

	// peak conductance in nS reached by a unit-weight spike
	GPeak float32 `def:"1" desc:"peak conductance in nS reached by a unit-weight spike"`

	// peak normalization factor 1 / (exp(-tp/TauDecay) - exp(-tp/TauRise))
	// at the analytic peak time tp -- computed by Update
	NFact float32 `inactive:"+" desc:"peak normalization factor -- computed"`
}

// Defaults sets an AMPA-like excitatory receptor.
func (rp *ReceptorParams) Defaults() {
	rp.Erev = 0
	rp.TauRise = 0.5
	rp.TauDecay = 5
	rp.GPeak = 1
	rp.Update()
}

// Update recomputes the peak normalization from the time constants.
func (rp *ReceptorParams) Update() {
	if rp.TauRise <= 0 || rp.TauDecay <= rp.TauRise {
		rp.NFact = 0
		return
	}
	tp := rp.TauRise * rp.TauDecay / (rp.TauDecay - rp.TauRise) *
		math32.Log(rp.TauDecay/rp.TauRise)
	rp.NFact = 1 / (math32.Exp(-tp/rp.TauDecay) - math32.Exp(-tp/rp.TauRise))
}

// CompParams describes one compartment: its passive membrane, its fixed
// channel conductances, and its synaptic receptors.
type CompParams struct {

	// compartment name, addressable through the neuron's CompIndex
	Name string `desc:"compartment name"`

	// membrane capacitance in pF
	CM float32 `def:"150" min:"0" desc:"membrane capacitance in pF"`

	// fixed channel conductances in nS -- L determines the passive leak
	Gbar chans.Chans `desc:"fixed channel conductances in nS"`

	// channel reversal potentials in mV
	Erev chans.Chans `desc:"channel reversal potentials in mV"`

	// constant injected bias current in pA
	IE float32 `desc:"constant injected bias current in pA"`

	// synaptic receptors on this compartment
	Receptors []ReceptorParams `desc:"synaptic receptors on this compartment"`
}

// Defaults sets a passive leaky compartment with one excitatory receptor.
func (cp *CompParams) Defaults() {
	cp.CM = 150
	cp.Gbar.SetAll(0, 10, 0, 0)
	cp.Erev.SetAll(0, -70, -75, -90)
	cp.IE = 0
	cp.Receptors = []ReceptorParams{{}}
	cp.Receptors[0].Defaults()
}

// Update recomputes receptor normalization factors.
func (cp *CompParams) Update() {
	for i := range cp.Receptors {
		cp.Receptors[i].Update()
	}
}

// SpikeParams holds the soma threshold, reset, and refractory
// configuration.  The soma is always compartment 0.
type SpikeParams struct {

	// spike threshold on the soma potential in mV
	Thr float32 `def:"-50" desc:"spike threshold on the soma potential in mV"`

	// post-spike soma reset potential in mV -- must be below Thr
	VReset float32 `def:"-65" desc:"post-spike soma reset potential in mV"`

	// absolute refractory period in ms during which the soma is held at
	// VReset while the dendrites keep evolving
	TRef float32 `def:"2" min:"0" desc:"absolute refractory period in ms"`
}

// Defaults sets standard spiking parameters.
func (sp *SpikeParams) Defaults() {
	sp.Thr = -50
	sp.VReset = -65
	sp.TRef = 2
}

// Params is the full parameter set for one multi-compartment neuron.
type Params struct {

	// per-compartment parameters -- compartment 0 is the soma
	Comps []CompParams `desc:"per-compartment parameters -- compartment 0 is the soma"`

	// symmetric coupling conductances in nS: Coupling[i][j] joins
	// compartments i and j -- diagonal entries are ignored
	Coupling [][]float32 `desc:"symmetric coupling conductances in nS"`

	// soma spiking configuration
	Spike SpikeParams `view:"inline" desc:"soma spiking configuration"`

	// adaptive solver error control
	Solver odeint.Config `view:"inline" desc:"adaptive solver error control"`

	// name to compartment index lookup -- rebuilt by Update
	Index CompIndex `view:"-" desc:"name to compartment index lookup"`
}

// Defaults configures a two-compartment soma + dendrite neuron.
func (pr *Params) Defaults() {
	pr.Comps = make([]CompParams, 2)
	pr.Comps[0].Defaults()
	pr.Comps[0].Name = "soma"
	pr.Comps[1].Defaults()
	pr.Comps[1].Name = "dend"
	pr.Coupling = [][]float32{{0, 5}, {5, 0}}
	pr.Spike.Defaults()
	pr.Solver.Defaults()
	pr.Update()
}

// Update recomputes all derived values after a parameter change.
func (pr *Params) Update() {
	for i := range pr.Comps {
		pr.Comps[i].Update()
	}
	pr.Index.Build(pr.Comps)
}

// NComps returns the number of compartments.
func (pr *Params) NComps() int {
	return len(pr.Comps)
}

// NReceptors returns the total receptor count across all compartments,
// which is the number of valid spike ports (1-based).
func (pr *Params) NReceptors() int {
	n := 0
	for i := range pr.Comps {
		n += len(pr.Comps[i].Receptors)
	}
	return n
}

// RecvComp maps a 1-based spike port to its (compartment, receptor)
// indices, returning ok=false for out-of-range ports.
func (pr *Params) RecvComp(port int) (ci, ri int, ok bool) {
	p := port - 1
	for i := range pr.Comps {
		nr := len(pr.Comps[i].Receptors)
		if p < nr {
			return i, p, p >= 0
		}
		p -= nr
	}
	return 0, 0, false
}

// Validate checks all structural invariants, returning a typed
// ValidationError naming the first violated one.
func (pr *Params) Validate() error {
	if len(pr.Comps) == 0 {
		return &glif.ValidationError{Key: "comps", Value: 0, Reason: "at least one compartment is required"}
	}
	for i := range pr.Comps {
		cp := &pr.Comps[i]
		if cp.CM <= 0 {
			return &glif.ValidationError{Key: fmt.Sprintf("comps[%d].C_m", i), Value: cp.CM, Reason: "membrane capacitance must be strictly positive"}
		}
		for j := range cp.Receptors {
			rp := &cp.Receptors[j]
			if rp.TauRise <= 0 {
				return &glif.ValidationError{Key: fmt.Sprintf("comps[%d].receptors[%d].tau_rise", i, j), Value: rp.TauRise, Reason: "rise time constant must be strictly positive"}
			}
			if rp.TauDecay <= rp.TauRise {
				return &glif.ValidationError{Key: fmt.Sprintf("comps[%d].receptors[%d].tau_decay", i, j), Value: rp.TauDecay, Reason: "decay time constant must exceed the rise time constant"}
			}
			if rp.GPeak < 0 {
				return &glif.ValidationError{Key: fmt.Sprintf("comps[%d].receptors[%d].g_peak", i, j), Value: rp.GPeak, Reason: "peak conductance must be non-negative"}
			}
		}
	}
	nc := len(pr.Comps)
	if len(pr.Coupling) != nc {
		return &glif.ValidationError{Key: "coupling", Value: len(pr.Coupling), Reason: "coupling matrix must be square over the compartments"}
	}
	for i := range pr.Coupling {
		if len(pr.Coupling[i]) != nc {
			return &glif.ValidationError{Key: fmt.Sprintf("coupling[%d]", i), Value: len(pr.Coupling[i]), Reason: "coupling matrix must be square over the compartments"}
		}
		for j := range pr.Coupling[i] {
			if pr.Coupling[i][j] < 0 {
				return &glif.ValidationError{Key: fmt.Sprintf("coupling[%d][%d]", i, j), Value: pr.Coupling[i][j], Reason: "coupling conductance must be non-negative"}
			}
			if pr.Coupling[i][j] != pr.Coupling[j][i] {
				return &glif.ValidationError{Key: fmt.Sprintf("coupling[%d][%d]", i, j), Value: pr.Coupling[i][j], Reason: "coupling conductances must be symmetric"}
			}
		}
	}
	if pr.Spike.VReset >= pr.Spike.Thr {
		return &glif.ValidationError{Key: "V_reset", Value: pr.Spike.VReset, Reason: "reset potential must be below the soma threshold"}
	}
	if pr.Spike.TRef < 0 {
		return &glif.ValidationError{Key: "t_ref", Value: pr.Spike.TRef, Reason: "refractory period must be non-negative"}
	}
	return nil
}

// CompIndex is a name to compartment index lookup owned by one neuron's
// parameter set.  Each neuron carries its own table, so differently
// structured neurons can coexist in one process.
type CompIndex struct {

	// compartment names in index order
	Names []string `desc:"compartment names in index order"`

	// name to index map
	ByName map[string]int `desc:"name to index map"`
}

// Build populates the index from the given compartments.  Unnamed
// compartments get positional names ("comp_2").
func (ci *CompIndex) Build(comps []CompParams) {
	ci.Names = make([]string, len(comps))
	ci.ByName = make(map[string]int, len(comps))
	for i := range comps {
		nm := comps[i].Name
		if nm == "" {
			nm = fmt.Sprintf("comp_%d", i)
		}
		ci.Names[i] = nm
		ci.ByName[nm] = i
	}
}

// Idx returns the index of the named compartment, with ok=false if the
// name is not present.
func (ci *CompIndex) Idx(name string) (int, bool) {
	i, ok := ci.ByName[name]
	return i, ok
}
