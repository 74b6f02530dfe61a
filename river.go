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

// Package rivermap converts point-source river discharge records into
// gridded fields that can be used as boundary forcing for ocean models.
// Each river mouth is matched to the nearest ocean grid cell, a plume is
// grown around that cell, and the plumes of all rivers are merged into one
// field per variable.
package rivermap

import (
	"strconv"

	"github.com/ctessum/geom"
)

// River holds the discharge information for a single river.
type River struct {
	Name string

	// Mouth is the location of the river mouth, with X as longitude and Y
	// as latitude [degrees].
	Mouth geom.Point

	// Spread is the maximum number of grid cells the river plume can
	// extend from the mouth in each direction.
	Spread int

	// Values holds the discharge value of each variable.
	Values map[string]float64
}

// label returns a name for r to use in log messages.
func (r *River) label(index int) string {
	if r.Name != "" {
		return r.Name
	}
	return "#" + strconv.Itoa(index)
}
