// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import "github.com/cnrlab/glif/ringbuf"

// SpikeEvent is an incoming spike delivered by the kernel: the weighted,
// multiplicity-scaled contribution is accumulated into the addressed
// receptor's ring buffer at the event's relative delivery step.
type SpikeEvent struct {

	// delivery offset in steps relative to the neuron's next unprocessed
	// step (the configured synaptic delay, already on the grid)
	Step int

	// synaptic weight in pA (peak current of the alpha kernel)
	Weight float32

	// number of coincident spikes folded into one event
	Multiplicity int

	// receptor port, 1-based: valid spike ports are 1..NReceptors
	RPort int
}

// CurrentEvent is an incoming constant or time-varying current
// contribution in pA, accumulated into the current buffer at its relative
// delivery step.
type CurrentEvent struct {

	// delivery offset in steps relative to the neuron's next unprocessed step
	Step int

	// current amplitude in pA for one step
	Current float32
}

// OutSpike is an emitted spike descriptor handed to the SpikeScheduler at
// the step of threshold crossing.
type OutSpike struct {

	// emitting neuron id
	NeuronID int

	// absolute delivery step: the next step boundary after the crossing
	Step int

	// sub-step timing offset in ms before the step boundary -- 0 for
	// fixed-grid models, the interpolated crossing offset for
	// adaptive-step models
	Offset float32
}

// SpikeScheduler is the external collaborator that receives emitted
// spikes and delivers them to downstream synapses after the configured
// synaptic delay.  It is owned by the simulation kernel.
type SpikeScheduler interface {
	SendSpike(sp OutSpike)
}

// Buffers owns the per-receptor spike delay lines and the current delay
// line for one neuron.  Buffers are never shared across neurons, written
// by the event handlers outside the step loop, and drained only by the
// integrator, one slot per step.
type Buffers struct {

	// per-receptor spike input, weight * multiplicity accumulated
	Spikes []ringbuf.RingBuf

	// summed current input in pA per step
	Currents ringbuf.RingBuf
}

// Init allocates the buffers for the given receptor count and maximum
// delay in steps, clearing all slots.  Called at run initialization.
func (bf *Buffers) Init(nr, maxDelay int) {
	if len(bf.Spikes) != nr {
		bf.Spikes = make([]ringbuf.RingBuf, nr)
	}
	for i := range bf.Spikes {
		bf.Spikes[i].Init(maxDelay)
	}
	bf.Currents.Init(maxDelay)
}

// Clear zeroes all slots without reallocating.
func (bf *Buffers) Clear() {
	for i := range bf.Spikes {
		bf.Spikes[i].Clear()
	}
	bf.Currents.Clear()
}

// Advance moves all read positions forward by n steps after an update
// block of n steps has been processed.
func (bf *Buffers) Advance(n int) {
	for i := range bf.Spikes {
		bf.Spikes[i].Advance(n)
	}
	bf.Currents.Advance(n)
}
