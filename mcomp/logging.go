// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mcomp

import (
	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
)

// Recorder appends per-compartment potentials and summed receptor
// conductances into an etable.Table row on a configurable recording
// interval.  Column names come from the neuron's compartment index:
// "Vm_soma", "GSyn_dend", etc.
type Recorder struct {

	// the log table -- one row per recorded step, Time column first
	Table *etable.Table

	// record every Interval-th step; 1 records every step
	Interval int

	// recorded compartment names, in column order
	Comps []string
}

// NewRecorder returns a recorder over the given parameter set's
// compartments, recording every step by default.
func NewRecorder(pr *Params) *Recorder {
	rc := &Recorder{Interval: 1, Comps: pr.Index.Names}
	sch := etable.Schema{{Name: "Time", Type: etensor.FLOAT32, CellShape: nil, DimNames: nil}}
	for _, nm := range rc.Comps {
		sch = append(sch, etable.Column{Name: "Vm_" + nm, Type: etensor.FLOAT32, CellShape: nil, DimNames: nil})
		sch = append(sch, etable.Column{Name: "GSyn_" + nm, Type: etensor.FLOAT32, CellShape: nil, DimNames: nil})
	}
	rc.Table = &etable.Table{}
	rc.Table.SetFromSchema(sch, 0)
	return rc
}

// Reset clears all recorded rows.
func (rc *Recorder) Reset() {
	rc.Table.SetNumRows(0)
}

// Record appends one row for the given absolute step and time in ms, if
// the step falls on the recording interval.
func (rc *Recorder) Record(pr *Params, st *State, step int, time float32) {
	if rc.Interval > 1 && step%rc.Interval != 0 {
		return
	}
	row := rc.Table.Rows
	rc.Table.SetNumRows(row + 1)
	rc.Table.SetCellFloat("Time", row, float64(time))
	for ci, nm := range rc.Comps {
		rc.Table.SetCellFloat("Vm_"+nm, row, float64(st.Vm[ci]))
		rc.Table.SetCellFloat("GSyn_"+nm, row, float64(st.GSynTot(pr, ci)))
	}
}
