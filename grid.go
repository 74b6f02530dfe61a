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

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// Grid holds the description of an ocean model grid: two-dimensional
// longitude and latitude arrays [degrees] and a land/sea mask, all of
// which have shape [ny, nx]. A cell is an ocean cell if its mask value
// is 1 and a land cell otherwise.
type Grid struct {
	Lon, Lat *sparse.DenseArray
	Mask     *sparse.DenseArrayInt

	// Ny and Nx are the number of rows and columns in the grid.
	Ny, Nx int
}

// NewGrid checks that lon, lat, and mask describe a valid grid and returns
// the grid. All three arrays must be two-dimensional with the same shape,
// mask values must be 0 or 1, and there must be at least one ocean cell.
func NewGrid(lon, lat *sparse.DenseArray, mask *sparse.DenseArrayInt) (*Grid, error) {
	if lon == nil || lat == nil || mask == nil {
		return nil, fmt.Errorf("rivermap: grid longitude, latitude, and mask must all be specified")
	}
	if len(mask.Shape) != 2 {
		return nil, fmt.Errorf("rivermap: grid mask must be 2-D but has %d dimensions", len(mask.Shape))
	}
	for i, shape := range [][]int{lon.Shape, lat.Shape} {
		if len(shape) != 2 || shape[0] != mask.Shape[0] || shape[1] != mask.Shape[1] {
			return nil, fmt.Errorf("rivermap: grid %s shape %v doesn't match mask shape %v",
				[]string{"longitude", "latitude"}[i], shape, mask.Shape)
		}
	}
	var nOcean int
	for i, m := range mask.Elements {
		switch m {
		case 1:
			nOcean++
		case 0:
		default:
			return nil, fmt.Errorf("rivermap: grid mask value %d at index [%d, %d] is not 0 or 1",
				m, i/mask.Shape[1], i%mask.Shape[1])
		}
	}
	if nOcean == 0 {
		return nil, fmt.Errorf("rivermap: grid mask contains no ocean cells")
	}
	return &Grid{
		Lon:  lon,
		Lat:  lat,
		Mask: mask,
		Ny:   mask.Shape[0],
		Nx:   mask.Shape[1],
	}, nil
}

// RegularGrid creates an all-ocean grid with cell centers at longitudes
// lon0, lon0+dlon, ... < lon1 and latitudes lat0, lat0+dlat, ... < lat1.
func RegularGrid(lon0, lon1, dlon, lat0, lat1, dlat float64) (*Grid, error) {
	lons, err := arange(lon0, lon1, dlon)
	if err != nil {
		return nil, fmt.Errorf("rivermap: regular grid longitude: %v", err)
	}
	lats, err := arange(lat0, lat1, dlat)
	if err != nil {
		return nil, fmt.Errorf("rivermap: regular grid latitude: %v", err)
	}
	lon, lat := meshgrid(lons, lats)
	mask := sparse.ZerosDenseInt(len(lats), len(lons))
	for i := range mask.Elements {
		mask.Elements[i] = 1
	}
	return NewGrid(lon, lat, mask)
}

// arange returns evenly spaced values within the half-open interval
// [start, stop).
func arange(start, stop, step float64) ([]float64, error) {
	if !(step > 0) {
		return nil, fmt.Errorf("step must be > 0 but is %g", step)
	}
	n := int(math.Ceil((stop - start) / step))
	if n <= 0 {
		return nil, fmt.Errorf("empty range [%g, %g)", start, stop)
	}
	o := make([]float64, n)
	for i := range o {
		o[i] = start + float64(i)*step
	}
	return o, nil
}

// meshgrid expands one-dimensional coordinate vectors into
// two-dimensional [len(y), len(x)] coordinate arrays.
func meshgrid(x, y []float64) (xx, yy *sparse.DenseArray) {
	xx = sparse.ZerosDense(len(y), len(x))
	yy = sparse.ZerosDense(len(y), len(x))
	for j, yv := range y {
		for i, xv := range x {
			xx.Set(xv, j, i)
			yy.Set(yv, j, i)
		}
	}
	return xx, yy
}

// index returns the row-major position of the cell at [row, col].
func (g *Grid) index(row, col int) int { return row*g.Nx + col }

// Ocean returns whether the cell at [row, col] is an ocean cell.
func (g *Grid) Ocean(row, col int) bool {
	return g.Mask.Elements[g.index(row, col)] == 1
}

// Contains returns whether c is within the grid extent.
func (g *Grid) Contains(c CellIndex) bool {
	return c.Row >= 0 && c.Row < g.Ny && c.Col >= 0 && c.Col < g.Nx
}

// Center returns the longitude and latitude of the given cell.
func (g *Grid) Center(c CellIndex) geom.Point {
	i := g.index(c.Row, c.Col)
	return geom.Point{X: g.Lon.Elements[i], Y: g.Lat.Elements[i]}
}

// Bounds returns the longitude/latitude extent of the grid cell centers.
func (g *Grid) Bounds() *geom.Bounds {
	b := geom.NewBounds()
	for i := range g.Lon.Elements {
		b.Extend(geom.NewBoundsPoint(geom.Point{X: g.Lon.Elements[i], Y: g.Lat.Elements[i]}))
	}
	return b
}

// OceanCells returns the number of ocean cells in the grid.
func (g *Grid) OceanCells() int {
	var n int
	for _, m := range g.Mask.Elements {
		n += m
	}
	return n
}

// MaskLand sets the mask of every cell whose center is within or on the
// edge of any of the polygons in land to 0. Overlapping polygons do not
// cancel each other out. It returns an error if no ocean cells remain.
func (g *Grid) MaskLand(land geom.Polygonal) error {
	polys := land.Polygons()
	for i := range g.Mask.Elements {
		p := geom.Point{X: g.Lon.Elements[i], Y: g.Lat.Elements[i]}
		for _, poly := range polys {
			if p.Within(poly) != geom.Outside {
				g.Mask.Elements[i] = 0
				break
			}
		}
	}
	if g.OceanCells() == 0 {
		return fmt.Errorf("rivermap: land mask covers every grid cell")
	}
	return nil
}
