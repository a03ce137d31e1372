// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"errors"
	"testing"
)

func TestSetKeysRejectsInvariantViolations(t *testing.T) {
	tests := []struct {
		name string
		kv   map[string]any
	}{
		{"non-positive capacitance", map[string]any{KeyCM: float32(0)}},
		{"non-positive leak", map[string]any{KeyGL: float32(-1)}},
		{"non-positive tau_syn", map[string]any{KeyTauSyn: []float32{2, 0}}},
		{"negative t_ref", map[string]any{KeyTRef: float32(-0.5)}},
		{"reset at threshold", map[string]any{KeyVReset: float32(15)}},
		{"reset above threshold", map[string]any{KeyVReset: float32(20)}},
		{"unknown key", map[string]any{"bogus": float32(1)}},
		{"wrong type", map[string]any{KeyCM: "250"}},
		{"unsupported variant", map[string]any{KeyVariant: 17}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pr := Params{}
			pr.Defaults()
			before := pr.KeyMap()
			_, err := pr.SetKeys(tt.kv)
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
			// all-or-nothing: committed params untouched
			after := pr.KeyMap()
			for key := range before {
				if !keyEqual(before[key], after[key]) {
					t.Errorf("committed param %s mutated by rejected set: %v -> %v", key, before[key], after[key])
				}
			}
		})
	}
}

func TestSetKeysMismatchedAscArrays(t *testing.T) {
	pr := Params{}
	pr.Defaults()
	pr.Variant = Glif3
	pr.Update()
	if err := pr.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	_, err := pr.SetKeys(map[string]any{KeyAscAmps: []float32{-10, -100, -5}})
	if err == nil {
		t.Fatalf("mismatched parallel array lengths accepted")
	}
	if len(pr.ASC.Amps) != 2 {
		t.Errorf("committed asc_amps mutated on rejected set")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	pr := Params{}
	pr.Defaults()
	pr.Variant = Glif4
	pr.Update()
	got := pr.KeyMap()
	if _, err := pr.SetKeys(got); err != nil {
		t.Fatalf("round-trip set failed: %v", err)
	}
	again := pr.KeyMap()
	for key := range got {
		if !keyEqual(got[key], again[key]) {
			t.Errorf("round trip changed %s: %v -> %v", key, got[key], again[key])
		}
	}
}

func TestSetELReturnsDelta(t *testing.T) {
	pr := Params{}
	pr.Defaults()
	del, err := pr.SetKeys(map[string]any{KeyEL: float32(-65)})
	if err != nil {
		t.Fatalf("set E_L: %v", err)
	}
	if del != 5 {
		t.Errorf("E_L delta: got %v, want 5", del)
	}
}

func TestVariantMechSets(t *testing.T) {
	wantHard := map[Variants]bool{Glif1: true, Glif2: false, Glif3: true, Glif4: false, Glif5: false}
	for vr := Glif1; vr < VariantsN; vr++ {
		got, ok := VariantFmMechs(vr.MechSet())
		if !ok || got != vr {
			t.Errorf("variant %v: mech set did not round-trip (got %v, ok=%v)", vr, got, ok)
		}
		if vr.HardReset() != wantHard[vr] {
			t.Errorf("variant %v: HardReset = %v", vr, vr.HardReset())
		}
	}
	if _, ok := VariantFmMechs(1 << 30); ok {
		t.Errorf("unsupported mechanism combination accepted")
	}
}

func TestLinearResetConsistencyChecked(t *testing.T) {
	pr := Params{}
	pr.Defaults()
	pr.Variant = Glif2
	pr.Update()
	// fraction 1 with positive offset can exceed the post-reset threshold
	_, err := pr.SetKeys(map[string]any{KeyResetFrac: float32(1), KeyResetOffset: float32(10)})
	if err == nil {
		t.Fatalf("inconsistent linear reset accepted at commit time")
	}
}

// keyEqual compares KeyMap values, handling the slice-valued keys
func keyEqual(a, b any) bool {
	as, aok := a.([]float32)
	bs, bok := b.([]float32)
	if aok != bok {
		return false
	}
	if aok {
		if len(as) != len(bs) {
			return false
		}
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return a == b
}
