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

package rivermaputil

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/rivermap"
	"github.com/spf13/cobra"
)

// Grid creates and saves a regular longitude/latitude grid with cell
// centers from lon0 up to lon1 every dlon degrees and from lat0 up to
// lat1 every dlat degrees. If landMask is not empty, it is the path to a
// GeoJSON file, and cells whose centers are within its polygons are
// marked as land.
func Grid(CobraCommand *cobra.Command, outputFile string, lon0, lon1, dlon, lat0, lat1, dlat float64, landMask string) error {
	log := logrus.New()
	log.Out = CobraCommand.OutOrStdout()

	g, err := rivermap.RegularGrid(lon0, lon1, dlon, lat0, lat1, dlat)
	if err != nil {
		return err
	}
	if landMask != "" {
		land, err := parseLandMask(landMask)
		if err != nil {
			return err
		}
		if err := g.MaskLand(land); err != nil {
			return err
		}
	}

	var upload uploader
	path := upload.maybeUpload(outputFile)
	if upload.err != nil {
		return upload.err
	}
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("rivermaputil: problem creating file to store grid in: %v", err)
	}
	if err := g.WriteNetCDF(w); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("rivermaputil: closing grid file: %v", err)
	}
	if err := upload.uploadOutput(context.TODO()); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":        outputFile,
		"ny":          g.Ny,
		"nx":          g.Nx,
		"ocean_cells": g.OceanCells(),
	}).Info("rivermaputil: grid successfully created")
	return nil
}
