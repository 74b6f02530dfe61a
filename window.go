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

// window is a rectangular sub-view of a grid covering rows [row0, row1)
// and columns [col0, col1). Windows never extend past the grid edges.
type window struct {
	row0, row1, col0, col1 int
}

// newWindow returns the window that extends radius cells in every
// direction from center, clipped to a grid of ny rows and nx columns.
// The grid is not assumed to be periodic.
func newWindow(center CellIndex, radius, ny, nx int) window {
	return window{
		row0: maxInt(0, center.Row-radius),
		row1: minInt(ny, center.Row+radius+1),
		col0: maxInt(0, center.Col-radius),
		col1: minInt(nx, center.Col+radius+1),
	}
}

func (w window) ny() int { return w.row1 - w.row0 }
func (w window) nx() int { return w.col1 - w.col0 }

// local returns the position of grid cell c within the window's
// row-major element array.
func (w window) local(c CellIndex) int {
	return (c.Row-w.row0)*w.nx() + c.Col - w.col0
}

// extract copies the windowed part of a row-major grid array with gridNx
// columns into a new array.
func (w window) extract(a []int, gridNx int) []int {
	o := make([]int, w.ny()*w.nx())
	for j := w.row0; j < w.row1; j++ {
		copy(o[(j-w.row0)*w.nx():(j-w.row0+1)*w.nx()], a[j*gridNx+w.col0:j*gridNx+w.col1])
	}
	return o
}

// writeBack copies windowed array src into the matching part of the
// row-major grid array dst with gridNx columns.
func (w window) writeBack(dst, src []int, gridNx int) {
	for j := w.row0; j < w.row1; j++ {
		copy(dst[j*gridNx+w.col0:j*gridNx+w.col1], src[(j-w.row0)*w.nx():(j-w.row0+1)*w.nx()])
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
