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
)

// DefaultMaxIterations is the default limit on the number of plume growth
// iterations.
const DefaultMaxIterations = 1000

// Connectivity specifies which neighbors of a plume cell the plume
// grows into in each iteration.
type Connectivity int

const (
	// FourConnected plumes grow into the cells to the north, south,
	// east, and west.
	FourConnected Connectivity = 4

	// EightConnected plumes additionally grow into diagonal cells.
	EightConnected Connectivity = 8
)

// Valid returns an error if c is not a supported connectivity.
func (c Connectivity) Valid() error {
	if c != FourConnected && c != EightConnected {
		return fmt.Errorf("rivermap: connectivity must be 4 or 8 but is %d", c)
	}
	return nil
}

// offsets returns the [row, col] offsets of the neighbors of a cell.
func (c Connectivity) offsets() [][2]int {
	o := [][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}
	if c == EightConnected {
		o = append(o, [2]int{-1, -1}, [2]int{-1, 1}, [2]int{1, -1}, [2]int{1, 1})
	}
	return o
}

// GrowPlume creates the plume of a river whose mouth is at grid cell seed.
// Starting from the seed, the plume grows one cell per iteration in the
// directions specified by conn, only into ocean cells and only into cells
// no more than spread rows or columns away from the seed. Growth stops when
// an iteration doesn't change the plume. If that hasn't happened after
// maxIterations iterations, the last plume is returned and converged is
// false.
//
// The returned plume has the shape of g, with 1 for cells in the plume
// and 0 elsewhere. seed must be an ocean cell.
func GrowPlume(seed CellIndex, g *Grid, spread, maxIterations int, conn Connectivity) (plume *sparse.DenseArrayInt, converged bool) {
	plume, converged, _ = growPlume(seed, g, spread, maxIterations, conn)
	return plume, converged
}

// growPlume is GrowPlume that additionally returns the number of
// iterations that were run.
func growPlume(seed CellIndex, g *Grid, spread, maxIterations int, conn Connectivity) (*sparse.DenseArrayInt, bool, int) {
	if !g.Contains(seed) || !g.Ocean(seed.Row, seed.Col) {
		panic(fmt.Errorf("rivermap: plume seed %v is not an ocean cell in the grid", seed))
	}
	if spread < 0 {
		panic(fmt.Errorf("rivermap: negative plume spread %d", spread))
	}
	w := newWindow(seed, spread, g.Ny, g.Nx)
	ocean := w.extract(g.Mask.Elements, g.Nx)

	cur := make([]int, len(ocean))
	next := make([]int, len(ocean))
	cur[w.local(seed)] = 1

	offsets := conn.offsets()
	converged := false
	iteration := 0
	for iteration < maxIterations {
		iteration++
		dilate(next, cur, w.ny(), w.nx(), offsets)
		for i, o := range ocean {
			if o != 1 {
				next[i] = 0
			}
		}
		if equalInts(next, cur) {
			converged = true
			break
		}
		cur, next = next, cur
	}

	plume := sparse.ZerosDenseInt(g.Ny, g.Nx)
	w.writeBack(plume.Elements, cur, g.Nx)
	return plume, converged, iteration
}

// dilate sets dst to src grown by one cell toward each of the given
// neighbor offsets. Both arrays are row-major with ny rows and nx columns;
// cells beyond the array edges are treated as unset.
func dilate(dst, src []int, ny, nx int, offsets [][2]int) {
	copy(dst, src)
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if src[j*nx+i] != 1 {
				continue
			}
			for _, o := range offsets {
				jj, ii := j+o[0], i+o[1]
				if jj < 0 || jj >= ny || ii < 0 || ii >= nx {
					continue
				}
				dst[jj*nx+ii] = 1
			}
		}
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}
