// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

/*
Package ringbuf provides fixed-capacity delay lines for accumulating
weighted spike and current event contributions at future simulation steps.
Each receptor channel of a neuron owns one RingBuf: synapses with different
delays add into future slots, and the neuron's update loop drains exactly
one slot per step with read-and-clear semantics.
*/
package ringbuf

import "fmt"

// RingBuf is a fixed-capacity accumulating delay line.  Slot i holds the
// summed contributions scheduled to take effect i steps in the future,
// relative to the current read position.  Accumulation is pure addition,
// so the fold-in result is independent of the order synapses deliver
// their events within a cycle.
type RingBuf struct {

	// accumulation slots -- length is the maximum supported delay in steps
	Buf []float32

	// current read position -- slot for offset 0
	Off int
}

// Init allocates (or reallocates) the buffer for the given maximum delay
// in steps, and clears it.
func (rb *RingBuf) Init(size int) {
	if size <= 0 {
		panic(fmt.Sprintf("ringbuf.RingBuf: Init size must be positive, got %d", size))
	}
	if len(rb.Buf) != size {
		rb.Buf = make([]float32, size)
	}
	rb.Clear()
}

// Size returns the buffer capacity (maximum delay in steps).
func (rb *RingBuf) Size() int {
	return len(rb.Buf)
}

// Clear zeroes all slots and is called at run initialization.
// The read position is also reset.
func (rb *RingBuf) Clear() {
	for i := range rb.Buf {
		rb.Buf[i] = 0
	}
	rb.Off = 0
}

// AddValue accumulates amount into the slot offset steps in the future.
// Offset must be in [0, Size) -- violating this is a programming error in
// the calling kernel's delay bookkeeping, not a recoverable condition,
// so it panics.
func (rb *RingBuf) AddValue(offset int, amount float32) {
	if offset < 0 || offset >= len(rb.Buf) {
		panic(fmt.Sprintf("ringbuf.RingBuf: AddValue offset %d out of range [0, %d)", offset, len(rb.Buf)))
	}
	i := rb.Off + offset
	if i >= len(rb.Buf) {
		i -= len(rb.Buf)
	}
	rb.Buf[i] += amount
}

// ReadClear returns the accumulated value at the given lag within the
// current step block and zeroes the slot (read-and-clear), so repeated
// reads within one block see the sum exactly once.
func (rb *RingBuf) ReadClear(lag int) float32 {
	if lag < 0 || lag >= len(rb.Buf) {
		panic(fmt.Sprintf("ringbuf.RingBuf: ReadClear lag %d out of range [0, %d)", lag, len(rb.Buf)))
	}
	i := rb.Off + lag
	if i >= len(rb.Buf) {
		i -= len(rb.Buf)
	}
	v := rb.Buf[i]
	rb.Buf[i] = 0
	return v
}

// Advance moves the read position forward by n steps, after a step block
// of n steps has been fully processed.
func (rb *RingBuf) Advance(n int) {
	rb.Off = (rb.Off + n) % len(rb.Buf)
}
