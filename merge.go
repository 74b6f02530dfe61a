/*
Copyright © 2019 the RiverMAP authors.
This file is part of RiverMAP.

RiverMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

RiverMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with RiverMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

package rivermap

import (
	"fmt"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// AverageMerge is the merge method where the value of each grid cell is
// the average of the values of all rivers whose plumes include the cell.
const AverageMerge = "average"

// Fields holds gridded variables. All fields have the shape of the grid
// they were created on.
type Fields struct {
	// Names holds the variable names in the order they were created.
	Names []string

	Data map[string]*sparse.DenseArray

	// Coverage holds the number of river plumes that include each grid
	// cell. It is nil for fields that were not created by Build.
	Coverage *sparse.DenseArrayInt

	// Report describes what happened to each river. It is nil for
	// fields that were not created by Build.
	Report *Report
}

func newFields() *Fields {
	return &Fields{Data: make(map[string]*sparse.DenseArray)}
}

// add adds a field, returning an error if a field with the same name
// already exists.
func (f *Fields) add(name string, d *sparse.DenseArray) error {
	if _, ok := f.Data[name]; ok {
		return fmt.Errorf("rivermap: duplicate field %q", name)
	}
	f.Names = append(f.Names, name)
	f.Data[name] = d
	return nil
}

// Field returns the field with the given name or nil if there is no such
// field.
func (f *Fields) Field(name string) *sparse.DenseArray {
	return f.Data[name]
}

// Summary holds statistics about a field.
type Summary struct {
	Min, Max float64

	// Mean is the average over the cells covered by at least one plume,
	// or over all cells if coverage is unknown.
	Mean float64

	// Cells is the number of cells Mean was calculated over.
	Cells int
}

// Summarize returns statistics for the named field.
func (f *Fields) Summarize(name string) (Summary, error) {
	d, ok := f.Data[name]
	if !ok {
		return Summary{}, fmt.Errorf("rivermap: no field named %q", name)
	}
	s := Summary{
		Min: floats.Min(d.Elements),
		Max: floats.Max(d.Elements),
	}
	if f.Coverage == nil {
		s.Cells = len(d.Elements)
		s.Mean = floats.Sum(d.Elements) / float64(s.Cells)
		return s, nil
	}
	var sum float64
	for i, c := range f.Coverage.Elements {
		if c > 0 {
			sum += d.Elements[i]
			s.Cells++
		}
	}
	if s.Cells > 0 {
		s.Mean = sum / float64(s.Cells)
	}
	return s, nil
}

// weightedAverage merges the plumes of the given rivers. Each cell's value
// is the sum of the values of the rivers whose plumes include it divided by
// the number of such plumes; cells in no plume are 0. Rivers with a nil
// plume are ignored. Rivers are accumulated in input order and marked as
// Merged in report.
func weightedAverage(rivers []*River, plumes []*sparse.DenseArrayInt, report *Report, variables []string, g *Grid) *Fields {
	f := newFields()
	f.Coverage = sparse.ZerosDenseInt(g.Ny, g.Nx)
	sums := make([]*sparse.DenseArray, len(variables))
	for j := range variables {
		sums[j] = sparse.ZerosDense(g.Ny, g.Nx)
	}
	for i, r := range rivers {
		p := plumes[i]
		if p == nil {
			continue
		}
		for k, w := range p.Elements {
			if w == 0 {
				continue
			}
			f.Coverage.Elements[k] += w
			for j, v := range variables {
				sums[j].Elements[k] += r.Values[v] * float64(w)
			}
		}
		report.Rivers[i].State = Merged
	}
	for j, v := range variables {
		d := sums[j]
		for k, w := range f.Coverage.Elements {
			if w == 0 {
				d.Elements[k] = 0
			} else {
				d.Elements[k] /= float64(w)
			}
		}
		if err := f.add(v, d); err != nil {
			panic(err) // Variable names were checked for duplicates.
		}
	}
	return f
}
