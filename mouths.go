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

	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
)

// WriteMouths writes a point shapefile with one record for each river
// that report says was merged, located at the center of the grid cell the
// river was assigned to. The attributes are the river name, the cell row
// and column, the distance from the river mouth to the cell center [km],
// the number of cells in the plume, and whether plume growth converged
// (1) or not (0).
func WriteMouths(file string, rivers []*River, g *Grid, report *Report) error {
	if report == nil || len(report.Rivers) != len(rivers) {
		return fmt.Errorf("rivermap: writing river mouths: report doesn't match rivers")
	}
	e, err := shp.NewEncoderFromFields(file, goshp.POINT,
		goshp.StringField("Name", 50),
		goshp.NumberField("Row", 10),
		goshp.NumberField("Col", 10),
		goshp.FloatField("DistKm", 14, 4),
		goshp.NumberField("Cells", 10),
		goshp.NumberField("Converged", 1),
	)
	if err != nil {
		return fmt.Errorf("rivermap: creating river mouth shapefile: %v", err)
	}
	defer e.Close()

	for i, rs := range report.Rivers {
		if rs.State != Merged {
			continue
		}
		loc, ok := rs.Location.(Found)
		if !ok {
			panic(fmt.Errorf("rivermap: merged river %s has no location", rivers[i].label(i)))
		}
		converged := 0
		if rs.Converged {
			converged = 1
		}
		err := e.EncodeFields(g.Center(loc.CellIndex),
			rivers[i].Name, loc.Row, loc.Col, loc.Distance*EarthRadiusKm, rs.Cells, converged)
		if err != nil {
			return fmt.Errorf("rivermap: writing river mouth: %v", err)
		}
	}
	return nil
}
