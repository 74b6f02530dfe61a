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
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spatialmodel/rivermap"
	"github.com/spatialmodel/rivermap/internal/hash"
	"github.com/spf13/cobra"
)

// RiverTable specifies where to find the river table and which of its
// columns hold the mouth locations and names.
type RiverTable struct {
	// File is the path to a .csv, .xlsx, or .shp file.
	File string

	// Sheet is the worksheet to use for Excel files.
	Sheet string

	LonColumn, LatColumn, NameColumn string
}

// GridFile specifies where to find the ocean grid and the names of
// its variables.
type GridFile struct {
	// File is the path to a netCDF file.
	File string

	LonVar, LatVar, MaskVar string
}

// runSettings holds everything that affects the contents of the
// output file.
type runSettings struct {
	Table         RiverTable
	Grid          GridFile
	Variables     []string
	ProximityKm   float64
	MaxIterations int
	Method        string
	Connectivity  int
	Derived       map[string]string
}

// newLogger returns a logger that writes to both w and logFile.
func newLogger(w io.Writer, logFile io.Writer) *logrus.Logger {
	log := logrus.New()
	log.Out = io.MultiWriter(w, logFile)
	log.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
		DisableSorting:  true,
	}
	return log
}

// Run creates gridded river fields.
//
// CobraCommand is the cobra.Command instance where Run is called from.
// Log messages are written to its output as well as to LogFile.
//
// LogFile is the path to the desired logfile location.
//
// OutputFile is the path to the desired output netCDF file location. It
// can be a blob storage location.
//
// MouthsFile, if not empty, is the path where a shapefile of the grid cell
// each river was assigned to should be written. It can be a blob storage
// location.
//
// Table specifies the river table and Grid specifies the ocean grid.
//
// BuildConfig specifies how the fields are created. Its Log field is
// replaced with the logger described above.
//
// DerivedVariables specifies additional fields to calculate from the
// fields in BuildConfig.Variables, as a map of field names to expressions.
func Run(CobraCommand *cobra.Command, LogFile, OutputFile, MouthsFile string, Table RiverTable, Grid GridFile,
	BuildConfig *rivermap.BuildConfig, DerivedVariables map[string]string) error {

	startTime := time.Now()
	ctx := context.TODO()

	var upload uploader

	logfile, err := os.Create(upload.maybeUpload(LogFile))
	if err != nil {
		return fmt.Errorf("rivermaputil: problem creating log file: %v", err)
	}
	defer logfile.Close()
	log := newLogger(CobraCommand.OutOrStdout(), logfile)

	outputFile := upload.maybeUpload(OutputFile)
	var mouthsFile string
	if MouthsFile != "" {
		mouthsFile = upload.maybeUpload(MouthsFile)
	}
	if upload.err != nil {
		return upload.err
	}

	cfg := *BuildConfig
	cfg.Log = log
	configHash := hash.Hash(runSettings{
		Table:         Table,
		Grid:          Grid,
		Variables:     cfg.Variables,
		ProximityKm:   cfg.ProximityKm,
		MaxIterations: cfg.MaxIterations,
		Method:        cfg.Method,
		Connectivity:  int(cfg.Connectivity),
		Derived:       DerivedVariables,
	})

	g, err := loadGrid(Grid)
	if err != nil {
		return err
	}
	b := g.Bounds()
	log.WithFields(logrus.Fields{
		"file":        Grid.File,
		"ny":          g.Ny,
		"nx":          g.Nx,
		"ocean_cells": g.OceanCells(),
		"lon_range":   fmt.Sprintf("[%g, %g]", b.Min.X, b.Max.X),
		"lat_range":   fmt.Sprintf("[%g, %g]", b.Min.Y, b.Max.Y),
	}).Info("rivermaputil: loaded grid")

	t, err := rivermap.ReadTable(Table.File, Table.Sheet, Table.LonColumn, Table.LatColumn)
	if err != nil {
		return err
	}
	rivers, err := t.Rivers(Table.LonColumn, Table.LatColumn, Table.NameColumn, cfg.Variables)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"file":   Table.File,
		"rivers": len(rivers),
	}).Info("rivermaputil: loaded river table")

	fields, err := rivermap.Build(rivers, g, &cfg)
	if err != nil {
		return err
	}
	if err := rivermap.Derive(fields, DerivedVariables); err != nil {
		return err
	}

	w, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("rivermaputil: problem creating output file: %v", err)
	}
	if err := fields.WriteNetCDF(w, g, map[string]string{"config_hash": configHash}); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("rivermaputil: closing output file: %v", err)
	}

	for _, name := range fields.Names {
		s, err := fields.Summarize(name)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"field": name,
			"min":   s.Min,
			"max":   s.Max,
			"mean":  s.Mean,
			"cells": s.Cells,
		}).Info("rivermaputil: field summary")
	}

	if mouthsFile != "" {
		if err := rivermap.WriteMouths(mouthsFile, rivers, g, fields.Report); err != nil {
			return err
		}
	}

	log.WithFields(logrus.Fields{
		"output":  OutputFile,
		"elapsed": time.Since(startTime).String(),
	}).Info("rivermaputil: run complete")

	return upload.uploadOutput(ctx)
}

// loadGrid reads the ocean grid described by gf.
func loadGrid(gf GridFile) (*rivermap.Grid, error) {
	f, err := os.Open(gf.File)
	if err != nil {
		return nil, fmt.Errorf("rivermaputil: problem opening grid file: %v", err)
	}
	defer f.Close()
	return rivermap.LoadGrid(f, gf.LonVar, gf.LatVar, gf.MaskVar)
}
