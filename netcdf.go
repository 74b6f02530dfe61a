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
	"math"
	"os"
	"sort"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Names of the coordinate variables in netCDF files written by this package.
const (
	lonVar  = "lon"
	latVar  = "lat"
	maskVar = "mask"
)

// LoadGrid reads a grid from a netCDF file. lonName, latName, and maskName
// are the names of the longitude, latitude, and land/sea mask variables.
// The mask must be two-dimensional. The longitude and latitude can either
// be two-dimensional with the same shape as the mask or one-dimensional
// coordinate vectors with lengths matching the mask columns and rows.
// Mask values are rounded to the nearest integer.
func LoadGrid(r cdf.ReaderWriterAt, lonName, latName, maskName string) (*Grid, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("rivermap: opening grid file: %v", err)
	}
	lon, err := readVar(f, lonName)
	if err != nil {
		return nil, err
	}
	lat, err := readVar(f, latName)
	if err != nil {
		return nil, err
	}
	maskF, err := readVar(f, maskName)
	if err != nil {
		return nil, err
	}

	mask := sparse.ZerosDenseInt(maskF.Shape...)
	for i, v := range maskF.Elements {
		mask.Elements[i] = int(math.Floor(v + 0.5))
	}

	if len(lon.Shape) == 1 && len(lat.Shape) == 1 {
		if len(mask.Shape) != 2 || len(lon.Elements) != mask.Shape[1] || len(lat.Elements) != mask.Shape[0] {
			return nil, fmt.Errorf("rivermap: grid coordinate lengths [%d, %d] don't match mask shape %v",
				len(lat.Elements), len(lon.Elements), mask.Shape)
		}
		lon, lat = meshgrid(lon.Elements, lat.Elements)
	}
	return NewGrid(lon, lat, mask)
}

// readVar reads a numeric variable of any type from f.
func readVar(f *cdf.File, name string) (*sparse.DenseArray, error) {
	dims := f.Header.Lengths(name)
	if dims == nil {
		return nil, fmt.Errorf("rivermap: netcdf file has no variable %q", name)
	}
	o := sparse.ZerosDense(dims...)
	if len(o.Elements) == 0 {
		return nil, fmt.Errorf("rivermap: netcdf variable %q is empty", name)
	}
	buf := f.Header.ZeroValue(name, len(o.Elements))
	r := f.Reader(name, nil, nil)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("rivermap: reading netcdf variable %q: %v", name, err)
	}
	switch d := buf.(type) {
	case []float64:
		copy(o.Elements, d)
	case []float32:
		for i, v := range d {
			o.Elements[i] = float64(v)
		}
	case []int32:
		for i, v := range d {
			o.Elements[i] = float64(v)
		}
	case []int16:
		for i, v := range d {
			o.Elements[i] = float64(v)
		}
	case []uint8:
		for i, v := range d {
			o.Elements[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("rivermap: netcdf variable %q has unsupported type %T", name, buf)
	}
	return o, nil
}

// WriteNetCDF writes g to w in netCDF format, as variables "lon", "lat",
// and "mask" with dimensions (y, x).
func (g *Grid) WriteNetCDF(w *os.File) error {
	dims := []string{"y", "x"}
	h := cdf.NewHeader(dims, []int{g.Ny, g.Nx})
	h.AddAttribute("", "comment", "RiverMAP ocean model grid")
	h.AddAttribute("", "rivermap_version", Version)
	addCoordinates(h, dims)
	h.AddVariable(maskVar, dims, []int32{0})
	h.AddAttribute(maskVar, "description", "1 for ocean cells and 0 for land cells")
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("rivermap: writing grid: %v", err)
	}
	if err := writeCoordinates(f, g); err != nil {
		return err
	}
	mask := make([]int32, len(g.Mask.Elements))
	for i, v := range g.Mask.Elements {
		mask[i] = int32(v)
	}
	if _, err := variableWriter(f, maskVar).Write(mask); err != nil {
		return fmt.Errorf("rivermap: writing grid mask: %v", err)
	}
	return cdf.UpdateNumRecs(w)
}

func addCoordinates(h *cdf.Header, dims []string) {
	h.AddVariable(lonVar, dims, []float64{0})
	h.AddAttribute(lonVar, "units", "degrees_east")
	h.AddVariable(latVar, dims, []float64{0})
	h.AddAttribute(latVar, "units", "degrees_north")
}

func writeCoordinates(f *cdf.File, g *Grid) error {
	for _, v := range []struct {
		name string
		data *sparse.DenseArray
	}{{lonVar, g.Lon}, {latVar, g.Lat}} {
		if err := writeNCF(f, v.name, v.data); err != nil {
			return fmt.Errorf("rivermap: writing variable %s to netcdf file: %v", v.name, err)
		}
	}
	return nil
}

// WriteNetCDF writes the fields, along with the coordinates of grid g, to
// w in netCDF format. attrs are written as global attributes in addition
// to "comment" and "rivermap_version"; values in attrs take precedence.
func (f *Fields) WriteNetCDF(w *os.File, g *Grid, attrs map[string]string) error {
	globals := map[string]string{
		"comment":          "RiverMAP river forcing fields",
		"rivermap_version": Version,
	}
	for k, v := range attrs {
		globals[k] = v
	}

	dims := []string{"y", "x"}
	h := cdf.NewHeader(dims, []int{g.Ny, g.Nx})
	for _, k := range sortedKeys(globals) {
		h.AddAttribute("", k, globals[k])
	}
	addCoordinates(h, dims)

	// Sort the names so they write in the same order every time.
	names := make([]string, len(f.Names))
	copy(names, f.Names)
	sort.Strings(names)

	for _, name := range names {
		if name == lonVar || name == latVar {
			return fmt.Errorf("rivermap: field name %q is reserved for grid coordinates", name)
		}
		d := f.Data[name]
		if len(d.Shape) != 2 || d.Shape[0] != g.Ny || d.Shape[1] != g.Nx {
			return fmt.Errorf("rivermap: field %s shape %v doesn't match grid shape [%d %d]",
				name, d.Shape, g.Ny, g.Nx)
		}
		h.AddVariable(name, dims, []float64{0})
	}
	h.Define()

	ff, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("rivermap: writing fields: %v", err)
	}
	if err := writeCoordinates(ff, g); err != nil {
		return err
	}
	for _, name := range names {
		if err := writeNCF(ff, name, f.Data[name]); err != nil {
			return fmt.Errorf("rivermap: writing variable %s to netcdf file: %v", name, err)
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeNCF(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	_, err := variableWriter(f, name).Write(data.Elements)
	return err
}

// variableWriter returns a writer covering the whole of variable name.
func variableWriter(f *cdf.File, name string) cdf.Writer {
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	return f.Writer(name, start, end)
}

// ReadFields reads fields from a netCDF file created by Fields.WriteNetCDF.
// If no names are given, all variables other than the coordinates are read.
func ReadFields(r cdf.ReaderWriterAt, names ...string) (*Fields, error) {
	f, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("rivermap: opening fields file: %v", err)
	}
	if len(names) == 0 {
		for _, v := range f.Header.Variables() {
			if v != lonVar && v != latVar && v != maskVar {
				names = append(names, v)
			}
		}
	}
	o := newFields()
	for _, name := range names {
		d, err := readVar(f, name)
		if err != nil {
			return nil, err
		}
		if err := o.add(name, d); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
