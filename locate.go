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
)

// EarthRadiusKm is the radius of the spherical earth used to convert
// the proximity threshold into an angle [km].
const EarthRadiusKm = 6400.

// DefaultProximityKm is the default maximum distance between a river mouth
// and its grid cell [km].
const DefaultProximityKm = 200.

// landDistance is the angular distance assigned to land cells so that they
// are never selected.
const landDistance = 1.e36

const degreesToRadians = math.Pi / 180.

// CellIndex is the [Row, Col] position of a cell in a Grid.
type CellIndex struct {
	Row, Col int
}

func (c CellIndex) String() string { return fmt.Sprintf("[%d, %d]", c.Row, c.Col) }

// Location is the result of searching for the grid cell that represents a
// river mouth. It is either Found or NotFound.
type Location interface {
	// MinDistance returns the angular distance [radians] between the river
	// mouth and the closest ocean cell.
	MinDistance() float64
	isLocation()
}

// Found is a Location for a river mouth that was matched to an ocean cell.
type Found struct {
	CellIndex
	Distance float64 // radians
}

// NotFound is a Location for a river mouth that is farther than the proximity
// threshold from every ocean cell, for example because it is outside of a
// regional domain.
type NotFound struct {
	Distance float64 // radians
}

// MinDistance implements Location.
func (f Found) MinDistance() float64 { return f.Distance }

// MinDistance implements Location.
func (n NotFound) MinDistance() float64 { return n.Distance }

func (Found) isLocation()    {}
func (NotFound) isLocation() {}

// angularDistance returns the great circle angle [radians] between two
// points given as longitude and latitude in degrees, using the spherical
// law of cosines.
func angularDistance(lon1, lat1, lon2, lat2 float64) float64 {
	// Spherical coordinates: phi is the colatitude and theta the longitude.
	phi1 := (90 - lat1) * degreesToRadians
	phi2 := (90 - lat2) * degreesToRadians
	theta1 := lon1 * degreesToRadians
	theta2 := lon2 * degreesToRadians
	cos := math.Sin(phi1)*math.Sin(phi2)*math.Cos(theta1-theta2) +
		math.Cos(phi1)*math.Cos(phi2)
	// Rounding can push cos slightly outside of [-1, 1] for coincident or
	// antipodal points.
	return math.Acos(math.Max(-1, math.Min(1, cos)))
}

// Locate finds the ocean cell in g that is closest to the river mouth,
// which is specified in degrees longitude (X) and latitude (Y). Land cells
// are never selected. If several cells are equally close, the first one
// in row-major order is returned. If the closest ocean cell is farther than
// proximityKm from the mouth, NotFound is returned; a cell exactly
// proximityKm away is Found.
func Locate(mouth geom.Point, g *Grid, proximityKm float64) Location {
	minDist := math.Inf(1)
	minIndex := -1
	for i := range g.Mask.Elements {
		d := landDistance
		if g.Mask.Elements[i] == 1 {
			d = angularDistance(mouth.X, mouth.Y, g.Lon.Elements[i], g.Lat.Elements[i])
		}
		if d < minDist {
			minDist = d
			minIndex = i
		}
	}
	if minIndex < 0 {
		panic(fmt.Errorf("rivermap: no grid cell is closest to river mouth %v", mouth))
	}
	c := CellIndex{Row: minIndex / g.Nx, Col: minIndex % g.Nx}
	if !g.Ocean(c.Row, c.Col) {
		panic(fmt.Errorf("rivermap: river mouth %v was located on land cell %v", mouth, c))
	}
	if minDist > proximityKm/EarthRadiusKm {
		return NotFound{Distance: minDist}
	}
	return Found{CellIndex: c, Distance: minDist}
}
