// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package glif is the overall repository for the generalized leaky
integrate-and-fire neuron integration engine, implemented in the Go
language (golang).

This top-level of the repository has no functional code -- everything is
organized into the following sub-packages:

* glif: the core point-neuron models (variants 1..5), integrated with
exact exponential propagators on a fixed time grid: membrane and alpha
synapse dynamics, spike-dependent and voltage-dependent threshold
components, after-spike currents, refractoriness, and the reset
protocols, plus staged / validated parameter and state updates and the
event and recording surfaces.

* mcomp: coupled multi-compartment conductance-based neurons, integrated
per step with the adaptive solver, with explicit previous-step
inter-compartment coupling, double-exponential receptor conductances,
voltage clamp, and interpolated spike times.

* ringbuf: the accumulate-and-drain delay lines that decouple event
delivery from the step loop.

* odeint: the adaptive-step Runge-Kutta-Fehlberg 4(5) solver used by the
models without closed-form propagators.

* chans: standard conductance channel bundles in biological units.

* examples: runnable programs -- examples/glifrun drives a single neuron
headlessly and logs its state to a tab-separated file.
*/
package glif
