// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package chans provides standard neural conductance channels for computing
a point-compartment approximation based on the standard equivalent RC
circuit model (basic Ohms law equations), in biological units:
conductances in nS, potentials in mV, currents in pA.
Includes excitatory, leak, inhibition, and active potassium channels.
*/
package chans

// Chans are ion channels used in computing compartment membrane currents
type Chans struct {
	E float32 `desc:"excitatory sodium (Na) AMPA channels activated by synaptic glutamate"`
	L float32 `desc:"constant leak (potassium, K+) channels -- determines resting potential"`
	I float32 `desc:"inhibitory chloride (Cl-) channels activated by synaptic GABA"`
	K float32 `desc:"gated / active potassium channels -- typically hyperpolarizing relative to leak / rest"`
}

// SetAll sets all the values
func (ch *Chans) SetAll(e, l, i, k float32) {
	ch.E, ch.L, ch.I, ch.K = e, l, i, k
}

// Current returns the total membrane current in pA for the given channel
// conductances g (nS) and reversal potentials erev (mV) at membrane
// potential vm (mV).  Positive values depolarize.
func Current(g, erev *Chans, vm float32) float32 {
	return g.E*(erev.E-vm) + g.L*(erev.L-vm) + g.I*(erev.I-vm) + g.K*(erev.K-vm)
}
