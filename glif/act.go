// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

///////////////////////////////////////////////////////////////////////
//  act.go contains the per-step state-update functions for the
//  generalized leaky integrate-and-fire dynamics, driven by the exact
//  propagator coefficients in Props

// VmFmInputs advances the membrane potential by one step using the exact
// propagators, from the start-of-step synaptic kernel states and the
// total constant current itot (pA: bias + drained current events +
// after-spike currents + noise), and clamps to the configured range.
func (pr *Params) VmFmInputs(st *State, pp *Props, itot float32) {
	el := pr.Membrane.EL
	vm := el + (st.Vm-el)*pp.P33 + itot*pp.P30
	for i := range st.SynY1 {
		vm += pp.P31[i]*st.SynY1[i] + pp.P32[i]*st.SynY2[i]
	}
	st.Vm = pr.Membrane.VmRange.ClipVal(vm)
}

// SynFmInputs rolls the per-receptor alpha-kernel states forward one step
// and folds in the newly drained inputs xs (weight sums per receptor) so
// they take effect from the next step on, keeping PSP timing consistent
// across all model variants.
func (pr *Params) SynFmInputs(st *State, pp *Props, xs []float32) {
	for i := range st.SynY1 {
		st.SynY2[i] = pp.P21[i]*st.SynY1[i] + pp.P11[i]*st.SynY2[i]
		st.SynY1[i] *= pp.P11[i]
		st.SynY1[i] += xs[i] * pp.NFact[i]
	}
}

// AscFmPrev decays the after-spike currents by one step, with their own
// rate constants, independent of the membrane time constant.
func (pr *Params) AscFmPrev(st *State, pp *Props) {
	if !pr.ASC.On {
		return
	}
	for j := range st.ASC {
		st.ASC[j] *= pp.AscProp[j]
	}
}

// ThrFmVm updates the adaptive threshold components and the total
// threshold.  The voltage-tracking component integrates against the
// previous step's membrane potential vmPrev (explicit coupling).
// Disabled components stay exactly zero.
func (pr *Params) ThrFmVm(st *State, pp *Props, vmPrev float32, inRef bool) {
	if pr.Thresh.Spike.On {
		if pr.Thresh.Spike.DecayAtExit {
			// held during refractory, full decay applied at exit (see RefStep)
			if !inRef {
				st.ThrSpike *= pp.ThSpikeProp
			}
		} else {
			st.ThrSpike *= pp.ThSpikeProp
		}
	}
	if pr.Thresh.Volt.On {
		bv := pr.Thresh.Volt.BV
		av := pr.Thresh.Volt.AV
		st.ThrVolt = st.ThrVolt*pp.ThVoltProp + (av/bv)*(vmPrev-pr.Membrane.EL)*(1-pp.ThVoltProp)
	}
	st.Thr = pr.Membrane.EL + pr.Thresh.Base + st.ThrSpike + st.ThrVolt
}

// Crossed returns the threshold crossing decision: potential at or above
// the total threshold, and not within the absolute refractory window.
func (pr *Params) Crossed(st *State) bool {
	return st.RefSteps == 0 && st.Vm >= st.Thr
}

// ApplyReset performs the model-specific post-spike reset: potential
// reset (hard or linear-fraction-plus-offset), spike-threshold jump,
// after-spike current injection, and refractory countdown set.  It
// returns a ValidationError if the post-reset potential is not strictly
// below the post-reset threshold -- an inconsistency in user-supplied
// reset parameters that must not be silently simulated through.
func (pr *Params) ApplyReset(st *State, pp *Props) error {
	el := pr.Membrane.EL
	if pr.Variant.HardReset() {
		st.Vm = el + pr.Reset.VReset
	} else {
		st.Vm = el + pr.Reset.Frac*(st.Vm-el) + pr.Reset.Offset
	}
	if pr.Thresh.Spike.On {
		st.ThrSpike += pr.Thresh.Spike.Amp
	}
	if pr.ASC.On {
		// inject amps scaled by the reset fractions on top of the carried
		// current, optionally decayed across the refractory duration
		for j := range st.ASC {
			carry := st.ASC[j]
			if pr.ASC.RefDecay {
				carry *= pp.AscRef[j]
			}
			st.ASC[j] = pr.ASC.RFrac[j]*pr.ASC.Amps[j] + carry
		}
	}
	st.RefSteps = int32(pp.RefStepsTot)
	st.Thr = el + pr.Thresh.Base + st.ThrSpike + st.ThrVolt
	if st.Vm >= st.Thr {
		return &ValidationError{Key: "V_reset", Value: st.Vm - el,
			Reason: "post-reset potential at or above post-reset threshold -- inconsistent reset parameters"}
	}
	return nil
}

// RefStep counts down the refractory window by one step, holding the
// membrane potential at its reset value, and applies the deferred
// spike-threshold decay at the transition back to the active state for
// variants configured that way.
func (pr *Params) RefStep(st *State, pp *Props) {
	st.RefSteps--
	if st.RefSteps == 0 && pr.Thresh.Spike.On && pr.Thresh.Spike.DecayAtExit {
		st.ThrSpike *= pp.ThSpikeRef
	}
}
