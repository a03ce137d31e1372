// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"errors"
	"testing"

	"github.com/chewxy/math32"
)

// spikeRec is a test SpikeScheduler collecting emitted spikes
type spikeRec struct {
	spikes []OutSpike
}

func (sr *spikeRec) SendSpike(sp OutSpike) {
	sr.spikes = append(sr.spikes, sp)
}

// runSteps advances the neuron n steps, returning the step index of the
// first spike (relative to the start of the run) or -1.
func runSteps(t *testing.T, nrn *Neuron, tm *Time, n int) int {
	t.Helper()
	first := -1
	for s := 0; s < n; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update step %d: %v", s, err)
		}
		if first < 0 && nrn.State.Spike > 0 {
			first = s
		}
		tm.StepInc()
	}
	return first
}

// runUntilSpike advances the neuron until its first spike, stopping on
// the spiking step, or fails after max steps.
func runUntilSpike(t *testing.T, nrn *Neuron, tm *Time, max int) int {
	t.Helper()
	for s := 0; s < max; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update step %d: %v", s, err)
		}
		tm.StepInc()
		if nrn.State.Spike > 0 {
			return s
		}
	}
	t.Fatalf("no spike within %d steps", max)
	return -1
}

// newLeaky returns the standard test neuron: C_m=250 pF, tau_m=10 ms,
// E_L=0 mV, V_th=15 mV relative, t_ref=2 ms, at h=0.1 ms.
func newLeaky(t *testing.T, ie float32) (*Neuron, *Time) {
	t.Helper()
	tm := NewTime()
	nrn := NewNeuron(1, Glif1, 16)
	err := nrn.SetParams(map[string]any{
		KeyCM: float32(250), KeyGL: float32(25), KeyEL: float32(0),
		KeyThBase: float32(15), KeyTRef: float32(2), KeyIE: ie,
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn.State.Init(&nrn.Params)
	nrn.Calibrate(tm)
	return nrn, tm
}

func TestFirstSpikeTiming(t *testing.T) {
	nrn, tm := newLeaky(t, 450) // V_inf = 18 mV > 15 mV threshold
	sr := &spikeRec{}
	nrn.Sched = sr

	cor := nrn.StepsToThresh(450, tm) // analytic: tau_m * ln(18/3) / h
	if cor < 0 {
		t.Fatalf("analytic prediction should be finite")
	}
	first := runSteps(t, nrn, tm, 400)
	if first < 0 {
		t.Fatalf("no spike emitted")
	}
	if d := first + 1 - cor; d < -1 || d > 1 {
		t.Errorf("first spike at step %d, analytic %d (dif %d > 1)", first+1, cor, d)
	}
	if len(sr.spikes) == 0 {
		t.Fatalf("no spike handed to scheduler")
	}
	if sr.spikes[0].Step != first+1 {
		t.Errorf("spike delivery step: got %d, want next boundary %d", sr.spikes[0].Step, first+1)
	}
}

func TestSubThresholdNeverSpikes(t *testing.T) {
	// I_e=300 pA gives V_inf = 12 mV, below the 15 mV threshold: the
	// analytic prediction is that threshold is never reached
	nrn, tm := newLeaky(t, 300)
	if cor := nrn.StepsToThresh(300, tm); cor != -1 {
		t.Fatalf("analytic steps: got %d, want -1 (unreachable)", cor)
	}
	if first := runSteps(t, nrn, tm, 3000); first >= 0 {
		t.Errorf("sub-threshold drive spiked at step %d", first)
	}
	vinf := float32(12)
	if dif := math32.Abs(nrn.State.Vm - vinf); dif > 0.01 {
		t.Errorf("asymptotic Vm: got %v, want %v", nrn.State.Vm, vinf)
	}
}

func TestRefractoryHold(t *testing.T) {
	nrn, tm := newLeaky(t, 450)
	runUntilSpike(t, nrn, tm, 400)
	refSteps := int(nrn.Props.RefStepsTot) // t_ref/h = 20
	if refSteps != 20 {
		t.Fatalf("refractory steps: got %d, want 20", refSteps)
	}
	// potential held at V_reset for exactly t_ref/h steps, no spikes
	for s := 0; s < refSteps; s++ {
		if nrn.State.Vm != 0 {
			t.Fatalf("Vm not held at reset during refractory step %d: %v", s, nrn.State.Vm)
		}
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if nrn.State.Spike > 0 {
			t.Fatalf("spike emitted during refractory step %d", s)
		}
		tm.StepInc()
	}
	if nrn.State.RefSteps != 0 {
		t.Fatalf("refractory countdown not finished: %d", nrn.State.RefSteps)
	}
	// integration resumes on the next step
	if err := nrn.Update(0, 1, tm); err != nil {
		t.Fatalf("Update: %v", err)
	}
	tm.StepInc()
	if nrn.State.Vm <= 0 {
		t.Errorf("integration did not resume after refractory: Vm=%v", nrn.State.Vm)
	}
}

func TestRefractoryEnforcementUnderStrongInput(t *testing.T) {
	// once refractory, no spike regardless of how far the potential
	// nominally exceeds threshold
	nrn, tm := newLeaky(t, 450)
	runUntilSpike(t, nrn, tm, 400)
	nrn.RecvCurrent(&CurrentEvent{Step: 0, Current: 1e5})
	refN := int(nrn.State.RefSteps)
	for s := 0; s < refN; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		if nrn.State.Spike > 0 {
			t.Fatalf("spike during absolute refractory window (step %d)", s)
		}
		tm.StepInc()
	}
}

func TestTwoReceptorTraces(t *testing.T) {
	tm := NewTime()
	nrn := NewNeuron(2, Glif1, 16)
	if err := nrn.SetParams(map[string]any{KeyTauSyn: []float32{0.5, 2.0}}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn.InitBuffers(16)
	nrn.State.Init(&nrn.Params)
	nrn.Calibrate(tm)

	for p := 1; p <= 2; p++ {
		if err := nrn.RecvSpike(&SpikeEvent{Step: 0, Weight: 1, Multiplicity: 1, RPort: p}); err != nil {
			t.Fatalf("RecvSpike port %d: %v", p, err)
		}
	}
	var tr0, tr1 []float32
	for s := 0; s < 400; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		tm.StepInc()
		tr0 = append(tr0, nrn.State.SynY2[0])
		tr1 = append(tr1, nrn.State.SynY2[1])
	}
	pk0, at0 := traceMax(tr0)
	pk1, at1 := traceMax(tr1)
	// alpha kernels peak at tau_syn after arrival, at the event weight
	if dif := math32.Abs(pk0 - 1); dif > 0.01 {
		t.Errorf("receptor 1 peak: got %v, want 1", pk0)
	}
	if dif := math32.Abs(pk1 - 1); dif > 0.01 {
		t.Errorf("receptor 2 peak: got %v, want 1", pk1)
	}
	if at1 <= at0 {
		t.Errorf("peaks not ordered by tau_syn: %d vs %d", at0, at1)
	}
	for s := range tr0 {
		if tr0[s] < 0 || tr1[s] < 0 {
			t.Fatalf("negative synaptic current at step %d", s)
		}
	}
	// monotone decay to zero after the peak
	for s := at1 + 1; s < len(tr1); s++ {
		if tr1[s] > tr1[s-1]+difTol {
			t.Fatalf("non-monotone decay at step %d", s)
		}
	}
	if tr1[len(tr1)-1] > 1e-4 {
		t.Errorf("trace did not decay to zero: %v", tr1[len(tr1)-1])
	}
}

func traceMax(tr []float32) (pk float32, at int) {
	for i, v := range tr {
		if v > pk {
			pk = v
			at = i
		}
	}
	return
}

func TestAfterSpikeCurrents(t *testing.T) {
	tm := NewTime()
	nrn := NewNeuron(3, Glif3, 16)
	err := nrn.SetParams(map[string]any{
		KeyEL: float32(0), KeyIE: float32(500),
		KeyAscAmps: []float32{-10, -100}, KeyAscTau: []float32{100, 10},
		KeyAscRFrac: []float32{0.5, 0.25},
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn.State.Init(&nrn.Params)
	nrn.Calibrate(tm)
	runUntilSpike(t, nrn, tm, 1000)
	// first spike injects exactly amps scaled by the reset fractions
	// (carried current is zero)
	want := []float32{-5, -25}
	for j, w := range want {
		if dif := math32.Abs(nrn.State.ASC[j] - w); dif > difTol {
			t.Errorf("ASC[%d] after spike: got %v, want %v", j, nrn.State.ASC[j], w)
		}
	}
	// currents decay with their own rates, independent of tau_m
	n := 10
	for s := 0; s < n; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		tm.StepInc()
	}
	for j, w := range want {
		cor := w * math32.Exp(-float32(n)*tm.Res/nrn.Params.ASC.Tau[j])
		if dif := math32.Abs(nrn.State.ASC[j] - cor); dif > 1e-4 {
			t.Errorf("ASC[%d] decay: got %v, want %v", j, nrn.State.ASC[j], cor)
		}
	}
}

func TestVoltageClamp(t *testing.T) {
	tm := NewTime()
	nrn := NewNeuron(4, Glif1, 16)
	nrn.Calibrate(tm)
	nrn.ClampVmAt(-50)
	if err := nrn.RecvSpike(&SpikeEvent{Step: 0, Weight: 2, Multiplicity: 1, RPort: 1}); err != nil {
		t.Fatalf("RecvSpike: %v", err)
	}
	for s := 0; s < 25; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		tm.StepInc()
		if nrn.State.Vm != -50 {
			t.Fatalf("clamp not held at step %d: Vm=%v", s, nrn.State.Vm)
		}
	}
	// channel state keeps evolving under clamp
	if nrn.State.ISyn() <= 0 {
		t.Errorf("synaptic state frozen under clamp: ISyn=%v", nrn.State.ISyn())
	}
}

func TestReceptorPortValidation(t *testing.T) {
	nrn := NewNeuron(5, Glif1, 16)
	var re *ReceptorError
	err := nrn.RecvSpike(&SpikeEvent{Step: 0, Weight: 1, Multiplicity: 1, RPort: 0})
	if !errors.As(err, &re) || re.Kind != ReceptorIncompatible {
		t.Errorf("port 0: expected incompatible receptor error, got %v", err)
	}
	err = nrn.RecvSpike(&SpikeEvent{Step: 0, Weight: 1, Multiplicity: 1, RPort: 3})
	if !errors.As(err, &re) || re.Kind != ReceptorUnknown {
		t.Errorf("port 3: expected unknown receptor error, got %v", err)
	}
}

func TestUpdateRequiresCalibration(t *testing.T) {
	tm := NewTime()
	nrn := NewNeuron(6, Glif1, 16)
	if err := nrn.Update(0, 1, tm); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("expected ErrNotCalibrated, got %v", err)
	}
	nrn.Calibrate(tm)
	if err := nrn.Update(0, 1, tm); err != nil {
		t.Errorf("calibrated update failed: %v", err)
	}
	// parameter changes invalidate the propagators
	if err := nrn.SetParams(map[string]any{KeyTRef: float32(3)}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if err := nrn.Update(1, 2, tm); !errors.Is(err, ErrNotCalibrated) {
		t.Errorf("expected ErrNotCalibrated after param change, got %v", err)
	}
}

func TestSetStateStageCommit(t *testing.T) {
	nrn := NewNeuron(7, Glif1, 16)
	vm := nrn.State.Vm
	err := nrn.SetState(map[string]any{"V_m": float32(-60), "ref_steps": -3})
	if err == nil {
		t.Fatalf("negative ref_steps accepted")
	}
	if nrn.State.Vm != vm {
		t.Errorf("rejected set mutated committed state: Vm=%v", nrn.State.Vm)
	}
	if err = nrn.SetState(map[string]any{"V_m": float32(-60)}); err != nil {
		t.Fatalf("valid SetState: %v", err)
	}
	if nrn.State.Vm != -60 {
		t.Errorf("SetState did not commit: Vm=%v", nrn.State.Vm)
	}
}

func TestRecorder(t *testing.T) {
	tm := NewTime()
	nrn := NewNeuron(8, Glif1, 16)
	nrn.Calibrate(tm)
	rec, err := NewRecorder("Vm", "Thr", "ISyn")
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}
	nrn.Rec = rec
	for s := 0; s < 10; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		tm.StepInc()
	}
	if rec.Table.Rows != 10 {
		t.Fatalf("recorded rows: got %d, want 10", rec.Table.Rows)
	}
	if v := rec.Table.CellFloat("Vm", 9); float32(v) != nrn.State.Vm {
		t.Errorf("recorded Vm: got %v, want %v", v, nrn.State.Vm)
	}
	if _, err := NewRecorder("NoSuchVar"); err == nil {
		t.Errorf("unknown recordable accepted")
	}
}

func TestSetParamsResizesAscState(t *testing.T) {
	// changing the number of after-spike currents must resize the state
	// arrays together with the propagator coefficients
	tm := NewTime()
	nrn := NewNeuron(10, Glif3, 16)
	nrn.State.Init(&nrn.Params)
	nrn.Calibrate(tm)
	runSteps(t, nrn, tm, 5)

	err := nrn.SetParams(map[string]any{
		KeyAscAmps: []float32{-20}, KeyAscTau: []float32{50}, KeyAscRFrac: []float32{1},
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if len(nrn.State.ASC) != 1 {
		t.Fatalf("ASC state after shrink: len %d, want 1", len(nrn.State.ASC))
	}
	nrn.Calibrate(tm)
	runSteps(t, nrn, tm, 10)

	err = nrn.SetParams(map[string]any{
		KeyAscAmps: []float32{-10, -100, -1}, KeyAscTau: []float32{100, 10, 5},
		KeyAscRFrac: []float32{1, 1, 1},
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	if len(nrn.State.ASC) != 3 {
		t.Fatalf("ASC state after grow: len %d, want 3", len(nrn.State.ASC))
	}
	nrn.Calibrate(tm)
	runSteps(t, nrn, tm, 10)
}

func TestSpikeThresholdDecayAtExit(t *testing.T) {
	tm := NewTime()
	nrn := NewNeuron(11, Glif2, 16)
	err := nrn.SetParams(map[string]any{
		KeyCM: float32(250), KeyGL: float32(25), KeyEL: float32(0),
		KeyThBase: float32(15), KeyTRef: float32(2), KeyIE: float32(450),
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn.Params.Thresh.Spike.DecayAtExit = true
	nrn.State.Init(&nrn.Params)
	nrn.Calibrate(tm)
	runUntilSpike(t, nrn, tm, 400)
	amp := nrn.Params.Thresh.Spike.Amp
	if nrn.State.ThrSpike != amp {
		t.Fatalf("spike component after first spike: got %v, want %v", nrn.State.ThrSpike, amp)
	}
	// component held constant through the refractory window, with the
	// full refractory-duration decay applied once at exit
	refN := int(nrn.State.RefSteps)
	for s := 0; s < refN; s++ {
		if nrn.State.ThrSpike != amp {
			t.Fatalf("spike component decayed during refractory step %d: %v", s, nrn.State.ThrSpike)
		}
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		tm.StepInc()
	}
	cor := amp * math32.Exp(-nrn.Params.Reset.TRef/nrn.Params.Thresh.Spike.Tau)
	if dif := math32.Abs(nrn.State.ThrSpike - cor); dif > difTol {
		t.Errorf("spike component at refractory exit: got %v, want %v", nrn.State.ThrSpike, cor)
	}

	// without the deferred mode the component decays every step instead
	nrn2 := NewNeuron(12, Glif2, 16)
	tm2 := NewTime()
	err = nrn2.SetParams(map[string]any{
		KeyCM: float32(250), KeyGL: float32(25), KeyEL: float32(0),
		KeyThBase: float32(15), KeyTRef: float32(2), KeyIE: float32(450),
	})
	if err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn2.State.Init(&nrn2.Params)
	nrn2.Calibrate(tm2)
	runUntilSpike(t, nrn2, tm2, 400)
	if err := nrn2.Update(0, 1, tm2); err != nil {
		t.Fatalf("Update: %v", err)
	}
	tm2.StepInc()
	if nrn2.State.ThrSpike >= amp {
		t.Errorf("per-step decay not applied during refractory: %v", nrn2.State.ThrSpike)
	}
}

func TestVmFloorClamp(t *testing.T) {
	// strong hyperpolarizing bias drives the potential toward -40 mV;
	// the configured floor pins it at -5 mV exactly
	nrn, tm := newLeaky(t, -1000)
	if err := nrn.SetParams(map[string]any{KeyVMin: float32(-5)}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn.Calibrate(tm)
	for s := 0; s < 200; s++ {
		if err := nrn.Update(0, 1, tm); err != nil {
			t.Fatalf("Update: %v", err)
		}
		tm.StepInc()
		if nrn.State.Vm < -5 {
			t.Fatalf("Vm below floor at step %d: %v", s, nrn.State.Vm)
		}
	}
	if nrn.State.Vm != -5 {
		t.Errorf("Vm not pinned at floor: got %v, want -5", nrn.State.Vm)
	}
}

func TestThresholdComponentsSum(t *testing.T) {
	// disabled components contribute exactly zero; enabled ones sum
	tm := NewTime()
	nrn := NewNeuron(9, Glif5, 16)
	if err := nrn.SetParams(map[string]any{KeyEL: float32(0), KeyIE: float32(600), KeyThVoltA: float32(0.005)}); err != nil {
		t.Fatalf("SetParams: %v", err)
	}
	nrn.State.Init(&nrn.Params)
	nrn.Calibrate(tm)
	runUntilSpike(t, nrn, tm, 2000)
	st := &nrn.State
	pr := &nrn.Params
	wantThr := pr.Membrane.EL + pr.Thresh.Base + st.ThrSpike + st.ThrVolt
	if dif := math32.Abs(st.Thr - wantThr); dif > difTol {
		t.Errorf("total threshold: got %v, want %v", st.Thr, wantThr)
	}
	if st.ThrSpike <= 0 {
		t.Errorf("spike component not raised after spike: %v", st.ThrSpike)
	}
	// a Glif1 neuron driven identically never accumulates components
	nrn1, tm1 := newLeaky(t, 600)
	runSteps(t, nrn1, tm1, 2000)
	if nrn1.State.ThrSpike != 0 || nrn1.State.ThrVolt != 0 {
		t.Errorf("disabled components nonzero: %v, %v", nrn1.State.ThrSpike, nrn1.State.ThrVolt)
	}
}
