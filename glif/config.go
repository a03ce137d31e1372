// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

// config.go implements the key-value parameter configuration contract the
// simulation kernel reads and writes: KeyMap is the `get` side, SetKeys is
// the validate-then-commit `set` side.

// Parameter key names used by KeyMap and SetKeys.
const (
	KeyVariant     = "variant"
	KeyCM          = "C_m"
	KeyGL          = "g_L"
	KeyEL          = "E_L"
	KeyVInit       = "V_init"
	KeyVMin        = "V_min"
	KeyIE          = "I_e"
	KeyTauSyn      = "tau_syn"
	KeyThBase      = "V_th"
	KeyThSpikeAmp  = "th_spike_amp"
	KeyThSpikeTau  = "th_spike_tau"
	KeyThVoltA     = "th_volt_a"
	KeyThVoltB     = "th_volt_b"
	KeyVReset      = "V_reset"
	KeyResetFrac   = "reset_frac"
	KeyResetOffset = "reset_offset"
	KeyTRef        = "t_ref"
	KeyAscAmps     = "asc_amps"
	KeyAscTau      = "asc_tau"
	KeyAscRFrac    = "asc_r"
)

// KeyMap returns the current parameter values as a key-value map.
// Slice values are copies: mutating them does not affect the Params.
func (pr *Params) KeyMap() map[string]any {
	return map[string]any{
		KeyVariant:     int(pr.Variant),
		KeyCM:          pr.Membrane.CM,
		KeyGL:          pr.Membrane.GL,
		KeyEL:          pr.Membrane.EL,
		KeyVInit:       pr.Membrane.VInit,
		KeyVMin:        pr.Membrane.VmRange.Min,
		KeyIE:          pr.Membrane.IE,
		KeyTauSyn:      append([]float32(nil), pr.Syn.TauSyn...),
		KeyThBase:      pr.Thresh.Base,
		KeyThSpikeAmp:  pr.Thresh.Spike.Amp,
		KeyThSpikeTau:  pr.Thresh.Spike.Tau,
		KeyThVoltA:     pr.Thresh.Volt.AV,
		KeyThVoltB:     pr.Thresh.Volt.BV,
		KeyVReset:      pr.Reset.VReset,
		KeyResetFrac:   pr.Reset.Frac,
		KeyResetOffset: pr.Reset.Offset,
		KeyTRef:        pr.Reset.TRef,
		KeyAscAmps:     append([]float32(nil), pr.ASC.Amps...),
		KeyAscTau:      append([]float32(nil), pr.ASC.Tau...),
		KeyAscRFrac:    append([]float32(nil), pr.ASC.RFrac...),
	}
}

// SetKeys stages the given key-value updates into a temporary copy,
// validates every invariant there, and only commits atomically if all of
// them hold -- on any error the committed Params are left untouched.
// It returns the change in EL, which the caller must apply to all State
// potentials defined relative to the resting potential (see
// State.ShiftEL), keeping them consistent with the new resting level.
func (pr *Params) SetKeys(kv map[string]any) (delEL float32, err error) {
	stage := pr.Clone()
	for key, val := range kv {
		if err = stage.applyKey(key, val); err != nil {
			return 0, err
		}
	}
	stage.Update()
	if err = stage.Validate(); err != nil {
		return 0, err
	}
	delEL = stage.Membrane.EL - pr.Membrane.EL
	*pr = *stage
	return delEL, nil
}

// applyKey sets a single staged value, converting the accepted numeric
// types; unknown keys and wrong-typed values are validation errors.
func (pr *Params) applyKey(key string, val any) error {
	if key == KeyVariant {
		iv, ok := toInt(val)
		if !ok {
			return &ValidationError{Key: key, Value: val, Reason: "variant must be an integer"}
		}
		pr.Variant = Variants(iv)
		return nil
	}
	if fp := pr.scalarKey(key); fp != nil {
		fv, ok := toFloat32(val)
		if !ok {
			return &ValidationError{Key: key, Value: val, Reason: "value must be numeric"}
		}
		*fp = fv
		return nil
	}
	if sp := pr.sliceKey(key); sp != nil {
		sv, ok := val.([]float32)
		if !ok {
			return &ValidationError{Key: key, Value: val, Reason: "value must be a []float32"}
		}
		*sp = append([]float32(nil), sv...)
		return nil
	}
	return &ValidationError{Key: key, Value: val, Reason: "unknown parameter key"}
}

// scalarKey returns a pointer to the scalar field for the key, or nil.
func (pr *Params) scalarKey(key string) *float32 {
	switch key {
	case KeyCM:
		return &pr.Membrane.CM
	case KeyGL:
		return &pr.Membrane.GL
	case KeyEL:
		return &pr.Membrane.EL
	case KeyVInit:
		return &pr.Membrane.VInit
	case KeyVMin:
		return &pr.Membrane.VmRange.Min
	case KeyIE:
		return &pr.Membrane.IE
	case KeyThBase:
		return &pr.Thresh.Base
	case KeyThSpikeAmp:
		return &pr.Thresh.Spike.Amp
	case KeyThSpikeTau:
		return &pr.Thresh.Spike.Tau
	case KeyThVoltA:
		return &pr.Thresh.Volt.AV
	case KeyThVoltB:
		return &pr.Thresh.Volt.BV
	case KeyVReset:
		return &pr.Reset.VReset
	case KeyResetFrac:
		return &pr.Reset.Frac
	case KeyResetOffset:
		return &pr.Reset.Offset
	case KeyTRef:
		return &pr.Reset.TRef
	}
	return nil
}

// sliceKey returns a pointer to the slice field for the key, or nil.
func (pr *Params) sliceKey(key string) *[]float32 {
	switch key {
	case KeyTauSyn:
		return &pr.Syn.TauSyn
	case KeyAscAmps:
		return &pr.ASC.Amps
	case KeyAscTau:
		return &pr.ASC.Tau
	case KeyAscRFrac:
		return &pr.ASC.RFrac
	}
	return nil
}

func toFloat32(val any) (float32, bool) {
	switch v := val.(type) {
	case float32:
		return v, true
	case float64:
		return float32(v), true
	case int:
		return float32(v), true
	}
	return 0, false
}

func toInt(val any) (int, bool) {
	switch v := val.(type) {
	case int:
		return v, true
	case Variants:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
