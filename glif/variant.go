// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"github.com/goki/ki/bitflag"
	"github.com/goki/ki/kit"
)

// Mechs are bit-flags for the optional dynamics a model variant enables.
// Disabled mechanisms contribute exactly zero to the dynamics, not merely
// default values, so amplitude semantics are variant-independent.
type Mechs int32

//go:generate stringer -type=Mechs

var KiT_Mechs = kit.Enums.AddEnum(MechsN, kit.BitFlag, nil)

const (
	// MechSpikeThresh enables the spike-adaptive threshold component:
	// jumps by a fixed amount on each own spike, decays exponentially
	MechSpikeThresh Mechs = iota

	// MechASC enables after-spike currents injected at each own spike,
	// decaying with their own rate constants
	MechASC

	// MechVoltThresh enables the voltage-adaptive threshold component,
	// integrated alongside the membrane potential
	MechVoltThresh

	MechsN
)

// Variants enumerates the supported generalized leaky integrate-and-fire
// model variants.  Each variant is a fixed combination of mechanism flags
// and reset semantics; combinations outside this set are rejected at
// parameter commit time.
type Variants int

//go:generate stringer -type=Variants

var KiT_Variants = kit.Enums.AddEnum(VariantsN, kit.NotBitFlag, nil)

func (ev Variants) MarshalJSON() ([]byte, error)  { return kit.EnumMarshalJSON(ev) }
func (ev *Variants) UnmarshalJSON(b []byte) error { return kit.EnumUnmarshalJSON(ev, b) }

const (
	// Glif1 is the plain leaky integrate-and-fire: fixed threshold, hard reset
	Glif1 Variants = iota

	// Glif2 adds the spike-adaptive threshold component and the
	// linear-fraction-plus-offset reset rule
	Glif2

	// Glif3 adds after-spike currents to the plain model (hard reset,
	// fixed threshold)
	Glif3

	// Glif4 combines after-spike currents with the spike-adaptive
	// threshold and linear reset
	Glif4

	// Glif5 additionally tracks the membrane potential with a
	// voltage-adaptive threshold component
	Glif5

	VariantsN
)

// MechSet returns the mechanism flag set for this variant.
func (vr Variants) MechSet() int32 {
	var f int32
	switch vr {
	case Glif2:
		bitflag.Set32(&f, int(MechSpikeThresh))
	case Glif3:
		bitflag.Set32(&f, int(MechASC))
	case Glif4:
		bitflag.Set32(&f, int(MechSpikeThresh), int(MechASC))
	case Glif5:
		bitflag.Set32(&f, int(MechSpikeThresh), int(MechASC), int(MechVoltThresh))
	}
	return f
}

// HardReset returns true if this variant uses the fixed hard reset rule
// (vs. the linear-fraction-plus-offset rule).
func (vr Variants) HardReset() bool {
	return vr == Glif1 || vr == Glif3
}

// VariantFmMechs returns the variant matching the given mechanism flag
// set, or false if the combination is not among the supported ones.
func VariantFmMechs(f int32) (Variants, bool) {
	for vr := Glif1; vr < VariantsN; vr++ {
		if vr.MechSet() == f {
			return vr, true
		}
	}
	return Glif1, false
}
