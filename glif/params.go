// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"fmt"

	"github.com/emer/emergent/v2/erand"
	"github.com/emer/etable/v2/minmax"
	"github.com/goki/ki/bitflag"
	"github.com/goki/ki/kit"
)

///////////////////////////////////////////////////////////////////////
//  params.go contains all neuron-level configuration parameters and
//  their validated, stage-then-commit update path

// MembraneParams are passive membrane properties, in biological units
// (pF, nS, mV, pA).  All relative potentials are defined against EL.
type MembraneParams struct {
	CM      float32    `def:"250" min:"0" desc:"membrane capacitance in pF -- must be strictly positive"`
	GL      float32    `def:"25" min:"0" desc:"leak conductance in nS -- membrane time constant tau_m = CM / GL"`
	EL      float32    `def:"-70" desc:"leak reversal (resting) potential in mV -- changing it shifts every potential defined relative to it"`
	VInit   float32    `def:"0" desc:"initial membrane potential relative to EL, in mV"`
	VmRange minmax.F32 `desc:"absolute range for Vm in mV -- set Min to impose a V_min floor clamp; defaults are wide open"`
	IE      float32    `def:"0" desc:"constant bias current in pA"`
}

func (mp *MembraneParams) Defaults() {
	mp.CM = 250
	mp.GL = 25
	mp.EL = -70
	mp.VInit = 0
	mp.VmRange.Set(-1e6, 1e6)
	mp.IE = 0
}

// TauM returns the membrane time constant CM / GL in ms
func (mp *MembraneParams) TauM() float32 {
	return mp.CM / mp.GL
}

// SynParams configure the per-receptor alpha-kernel synaptic currents.
// One receptor channel exists per entry in TauSyn; incoming spike events
// address receptors by 1-based port index.
type SynParams struct {
	TauSyn []float32 `def:"2" desc:"per-receptor synaptic alpha-kernel time constants in ms -- all strictly positive -- a unit-weight spike produces a current peaking at the event weight (in pA) at tau_syn after arrival"`
}

func (sp *SynParams) Defaults() {
	sp.TauSyn = []float32{2}
}

// NReceptors returns the number of configured receptor channels
func (sp *SynParams) NReceptors() int {
	return len(sp.TauSyn)
}

// SpikeThreshParams is the spike-adaptive threshold component: jumps by
// Amp on each own spike, decays exponentially with time constant Tau.
type SpikeThreshParams struct {
	On          bool    `desc:"include this component -- derived from the variant mechanism set"`
	Amp         float32 `viewif:"On" def:"5" desc:"threshold jump on each own spike, in mV"`
	Tau         float32 `viewif:"On" def:"30" min:"0" desc:"decay time constant in ms"`
	DecayAtExit bool    `viewif:"On" desc:"hold the component during the refractory period and apply the whole refractory-duration decay at exit, instead of decaying every step"`
}

func (st *SpikeThreshParams) Defaults() {
	st.Amp = 5
	st.Tau = 30
	st.DecayAtExit = false
}

// VoltThreshParams is the voltage-adaptive threshold component,
// integrated alongside the membrane potential:
// theta_v' = AV * (Vm - EL) - BV * theta_v
type VoltThreshParams struct {
	On bool    `desc:"include this component -- derived from the variant mechanism set"`
	AV float32 `viewif:"On" def:"0.005" desc:"coupling rate from membrane potential (relative to EL), in 1/ms"`
	BV float32 `viewif:"On" def:"0.09" min:"0" desc:"decay rate of the component, in 1/ms -- must be strictly positive when On"`
}

func (vt *VoltThreshParams) Defaults() {
	vt.AV = 0.005
	vt.BV = 0.09
}

// ThreshParams configure the total threshold: a fixed baseline plus the
// optional adaptive components enabled by the variant's mechanism set.
// Disabled components contribute exactly zero.
type ThreshParams struct {
	Base  float32           `def:"15" desc:"fixed baseline threshold relative to EL, in mV"`
	Spike SpikeThreshParams `view:"inline" desc:"spike-adaptive step-and-decay component"`
	Volt  VoltThreshParams  `view:"inline" desc:"voltage-tracking component"`
}

func (tp *ThreshParams) Defaults() {
	tp.Base = 15
	tp.Spike.Defaults()
	tp.Volt.Defaults()
}

// ResetParams configure the post-spike reset protocol and refractory
// duration.  Hard-reset variants set Vm to VReset; linear-reset variants
// apply Vm = EL + Frac*(Vm-EL) + Offset.
type ResetParams struct {
	VReset float32 `def:"0" desc:"hard reset potential relative to EL, in mV -- must be strictly below the baseline threshold"`
	Frac   float32 `def:"0" desc:"linear reset fraction a in Vm = EL + a*(Vm_old-EL) + b"`
	Offset float32 `def:"0" desc:"linear reset offset b in mV"`
	TRef   float32 `def:"2" min:"0" desc:"absolute refractory duration in ms -- no spike can be emitted while the refractory countdown is positive"`
}

func (rp *ResetParams) Defaults() {
	rp.VReset = 0
	rp.Frac = 0
	rp.Offset = 0
	rp.TRef = 2
}

// ASCParams configure the after-spike currents: parallel ordered arrays,
// one entry per current, all the same length.  Each own spike injects
// Amps scaled by the RFrac reset fractions; each current decays with its
// own Tau, independent of the membrane time constant.
type ASCParams struct {
	On       bool      `desc:"include after-spike currents -- derived from the variant mechanism set"`
	Amps     []float32 `viewif:"On" desc:"injection amplitudes in pA"`
	Tau      []float32 `viewif:"On" desc:"decay time constants in ms -- all strictly positive"`
	RFrac    []float32 `viewif:"On" desc:"injection reset fractions r in I = r*amp + I_old at each spike"`
	RefDecay bool      `viewif:"On" desc:"additionally decay the carried-over current across the refractory duration at reset: I = r*amp + I_old * exp(-t_ref/tau)"`
}

func (ap *ASCParams) Defaults() {
	ap.Amps = []float32{-10, -100}
	ap.Tau = []float32{100, 10}
	ap.RFrac = []float32{1, 1}
	ap.RefDecay = true
}

// NAsc returns the number of configured after-spike currents
func (ap *ASCParams) NAsc() int {
	return len(ap.Amps)
}

//////////////////////////////////////////////////////////////////////////////////////
//  Noise

// NoiseType are different types / locations of random noise
type NoiseType int

//go:generate stringer -type=NoiseType

var KiT_NoiseType = kit.Enums.AddEnum(NoiseTypeN, kit.NotBitFlag, nil)

func (ev NoiseType) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *NoiseType) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// NoNoise means no noise added
	NoNoise NoiseType = iota

	// CurrentNoise means noise is added to the total membrane current (pA)
	CurrentNoise

	NoiseTypeN
)

// NoiseParams contains parameters for membrane-current noise
type NoiseParams struct {
	erand.RndParams
	Type NoiseType `desc:"where and how to add processing noise"`
}

func (np *NoiseParams) Defaults() {
	np.Type = NoNoise
	np.Dist = erand.Gaussian
	np.Var = 1
}

///////////////////////////////////////////////////////////////////////
//  Params

// glif.Params contains all the configuration parameters for one neuron,
// immutable during a run except through the validated SetKeys path.
type Params struct {
	Variant  Variants       `desc:"which model variant this neuron runs -- determines the mechanism set and reset semantics"`
	Mechs    int32          `inactive:"+" view:"-" json:"-" xml:"-" desc:"mechanism bitflags, derived from Variant in Update"`
	Membrane MembraneParams `view:"inline" desc:"passive membrane properties"`
	Syn      SynParams      `view:"inline" desc:"per-receptor synaptic kernels"`
	Thresh   ThreshParams   `view:"inline" desc:"threshold baseline and adaptive components"`
	Reset    ResetParams    `view:"inline" desc:"post-spike reset and refractory"`
	ASC      ASCParams      `view:"inline" desc:"after-spike currents"`
	Noise    NoiseParams    `view:"inline" desc:"optional membrane current noise"`
}

func (pr *Params) Defaults() {
	pr.Variant = Glif1
	pr.Membrane.Defaults()
	pr.Syn.Defaults()
	pr.Thresh.Defaults()
	pr.Reset.Defaults()
	pr.ASC.Defaults()
	pr.Noise.Defaults()
	pr.Update()
}

// Update must be called after any changes to parameters: it re-derives
// the mechanism flags from the variant and propagates them to the
// component On switches so disabled components contribute exactly zero.
func (pr *Params) Update() {
	pr.Mechs = pr.Variant.MechSet()
	pr.Thresh.Spike.On = bitflag.Has32(pr.Mechs, int(MechSpikeThresh))
	pr.ASC.On = bitflag.Has32(pr.Mechs, int(MechASC))
	pr.Thresh.Volt.On = bitflag.Has32(pr.Mechs, int(MechVoltThresh))
}

// Clone returns a deep copy, including the per-receptor and per-ASC
// slices, suitable for stage-then-commit validation.
func (pr *Params) Clone() *Params {
	np := *pr
	np.Syn.TauSyn = append([]float32(nil), pr.Syn.TauSyn...)
	np.ASC.Amps = append([]float32(nil), pr.ASC.Amps...)
	np.ASC.Tau = append([]float32(nil), pr.ASC.Tau...)
	np.ASC.RFrac = append([]float32(nil), pr.ASC.RFrac...)
	return &np
}

// Validate checks every parameter invariant and returns a typed
// ValidationError for the first violation found.  It never mutates.
func (pr *Params) Validate() error {
	if pr.Variant < Glif1 || pr.Variant >= VariantsN {
		return &ValidationError{Key: "Variant", Value: int(pr.Variant), Reason: "not a supported model variant"}
	}
	if _, ok := VariantFmMechs(pr.Mechs); !ok {
		return &ValidationError{Key: "Mechs", Value: pr.Mechs, Reason: "mechanism flag combination not among the supported set"}
	}
	if pr.Membrane.CM <= 0 {
		return &ValidationError{Key: "C_m", Value: pr.Membrane.CM, Reason: "capacitance must be strictly positive"}
	}
	if pr.Membrane.GL <= 0 {
		return &ValidationError{Key: "g_L", Value: pr.Membrane.GL, Reason: "leak conductance must be strictly positive"}
	}
	if len(pr.Syn.TauSyn) == 0 {
		return &ValidationError{Key: "tau_syn", Value: pr.Syn.TauSyn, Reason: "at least one receptor channel required"}
	}
	for i, tau := range pr.Syn.TauSyn {
		if tau <= 0 {
			return &ValidationError{Key: "tau_syn", Value: tau, Reason: fmt.Sprintf("synaptic time constants must be strictly positive (receptor %d)", i+1)}
		}
	}
	if pr.Reset.TRef < 0 {
		return &ValidationError{Key: "t_ref", Value: pr.Reset.TRef, Reason: "refractory duration cannot be negative"}
	}
	if pr.Thresh.Spike.On && pr.Thresh.Spike.Tau <= 0 {
		return &ValidationError{Key: "th_spike_tau", Value: pr.Thresh.Spike.Tau, Reason: "spike-threshold time constant must be strictly positive"}
	}
	if pr.Thresh.Volt.On && pr.Thresh.Volt.BV <= 0 {
		return &ValidationError{Key: "th_volt_b", Value: pr.Thresh.Volt.BV, Reason: "voltage-threshold decay rate must be strictly positive"}
	}
	if pr.ASC.On {
		n := len(pr.ASC.Amps)
		if n == 0 {
			return &ValidationError{Key: "asc_amps", Value: pr.ASC.Amps, Reason: "after-spike currents enabled but no amplitudes configured"}
		}
		if len(pr.ASC.Tau) != n || len(pr.ASC.RFrac) != n {
			return &ValidationError{Key: "asc_tau", Value: len(pr.ASC.Tau), Reason: "after-spike current arrays must all have equal length"}
		}
		for i, tau := range pr.ASC.Tau {
			if tau <= 0 {
				return &ValidationError{Key: "asc_tau", Value: tau, Reason: fmt.Sprintf("after-spike current time constants must be strictly positive (index %d)", i)}
			}
		}
	}
	return pr.validateReset()
}

// validateReset checks post-reset consistency at commit time: the
// membrane potential immediately after a reset must lie strictly below
// the post-reset threshold, otherwise the model would re-fire forever.
// Catching this here, rather than asserting at spike time, surfaces the
// inconsistency before it can affect simulation results.
func (pr *Params) validateReset() error {
	postThr := pr.Thresh.Base
	if pr.Thresh.Spike.On {
		postThr += pr.Thresh.Spike.Amp
	}
	if pr.Variant.HardReset() {
		if pr.Reset.VReset >= postThr {
			return &ValidationError{Key: "V_reset", Value: pr.Reset.VReset, Reason: "reset potential must be strictly below the post-reset threshold"}
		}
		return nil
	}
	// linear reset: worst case is spiking exactly at the pre-spike threshold
	preThr := pr.Thresh.Base
	if pr.Thresh.Spike.On {
		preThr += pr.Thresh.Spike.Amp // carried-over component can be at most re-summed
	}
	if pr.Reset.Frac*preThr+pr.Reset.Offset >= postThr {
		return &ValidationError{Key: "reset_frac", Value: pr.Reset.Frac, Reason: "linear reset can place the potential at or above the post-reset threshold"}
	}
	return nil
}
