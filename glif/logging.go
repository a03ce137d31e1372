// Copyright (c) 2021, The GLIF Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package glif

import (
	"github.com/emer/etable/v2/etable"
	"github.com/emer/etable/v2/etensor"
)

// Recorder is the data-recording adapter: it appends the publicly
// recordable state variables into an etable.Table row on a configurable
// recording interval, for the external data logger to consume or save.
type Recorder struct {

	// the log table -- one row per recorded step, Time column first
	Table *etable.Table

	// record every Interval-th step; 1 records every step
	Interval int

	// names of the recorded variables, from StateVars
	Vars []string
}

// NewRecorder returns a recorder for the given recordable variable names
// (all StateVars if none given), recording every step by default.
// Unknown names are rejected so logger misconfiguration surfaces at setup
// time rather than as silent empty columns.
func NewRecorder(vars ...string) (*Recorder, error) {
	if len(vars) == 0 {
		vars = StateVars
	}
	for _, vn := range vars {
		if _, err := StateVarByName(vn); err != nil {
			return nil, err
		}
	}
	rc := &Recorder{Interval: 1, Vars: vars}
	sch := etable.Schema{{Name: "Time", Type: etensor.FLOAT32, CellShape: nil, DimNames: nil}}
	for _, vn := range vars {
		sch = append(sch, etable.Column{Name: vn, Type: etensor.FLOAT32, CellShape: nil, DimNames: nil})
	}
	rc.Table = &etable.Table{}
	rc.Table.SetFromSchema(sch, 0)
	return rc, nil
}

// Reset clears all recorded rows.
func (rc *Recorder) Reset() {
	rc.Table.SetNumRows(0)
}

// Record appends one row for the given absolute step and time in ms, if
// the step falls on the recording interval.
func (rc *Recorder) Record(st *State, step int, time float32) {
	if rc.Interval > 1 && step%rc.Interval != 0 {
		return
	}
	row := rc.Table.Rows
	rc.Table.SetNumRows(row + 1)
	rc.Table.SetCellFloat("Time", row, float64(time))
	for _, vn := range rc.Vars {
		v, _ := st.VarByName(vn)
		rc.Table.SetCellFloat(vn, row, float64(v))
	}
}
