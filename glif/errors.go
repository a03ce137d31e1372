// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"errors"
	"fmt"
)

// Sentinel errors for run-level conditions.
var (
	// ErrNotCalibrated indicates Update was called before Calibrate, or after
	// a parameter change invalidated the propagators for the current resolution.
	ErrNotCalibrated = errors.New("glif: neuron not calibrated for current time resolution")
)

// ValidationError is returned from parameter or state set calls when an
// invariant is violated.  Committed values are never touched: validation
// happens on a staged copy before commit.
type ValidationError struct {
	Key    string
	Value  any
	Reason string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("glif: invalid %s = %v: %s", ve.Key, ve.Value, ve.Reason)
}

// ReceptorErrKind distinguishes ports that are never valid from ports that
// are valid for a different event type.
type ReceptorErrKind int

const (
	// ReceptorUnknown means the port index is outside any configured range
	ReceptorUnknown ReceptorErrKind = iota

	// ReceptorIncompatible means the port exists but does not accept this event type
	ReceptorIncompatible

	ReceptorErrKindN
)

//go:generate stringer -type=ReceptorErrKind

// ReceptorError is returned when an incoming event addresses a receptor
// port outside the configured or supported range.
type ReceptorError struct {
	Port   int
	NPorts int
	Kind   ReceptorErrKind
}

func (re *ReceptorError) Error() string {
	if re.Kind == ReceptorIncompatible {
		return fmt.Sprintf("glif: receptor port %d incompatible with event type (valid spike ports: 1..%d)", re.Port, re.NPorts)
	}
	return fmt.Sprintf("glif: unknown receptor port %d (valid: 1..%d)", re.Port, re.NPorts)
}

// IntegrationError reports a fatal numerical integration failure, tagged
// with the neuron's identity and the simulation time at which it occurred.
// It is propagated up to the run driver and aborts the run: these failures
// are never transient, so there is no retry.
type IntegrationError struct {
	NeuronID int
	Time     float32
	Err      error
}

func (ie *IntegrationError) Error() string {
	return fmt.Sprintf("glif: numerical integration failure in neuron %d at t=%g ms: %v", ie.NeuronID, ie.Time, ie.Err)
}

func (ie *IntegrationError) Unwrap() error {
	return ie.Err
}
