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
	"runtime"
	"sync"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"
)

// BuildConfig holds the settings for Build.
type BuildConfig struct {
	// Variables are the names of the variables to create fields for.
	// Every river must have a value for each of them.
	Variables []string

	// ProximityKm is the maximum distance between a river mouth and the
	// ocean cell it is assigned to [km]. Rivers farther than this from
	// every ocean cell are skipped. The default is DefaultProximityKm.
	ProximityKm float64

	// MaxIterations is the maximum number of plume growth iterations.
	// The default is DefaultMaxIterations.
	MaxIterations int

	// Method is the method used to merge the plumes of different rivers.
	// The default, and currently the only option, is AverageMerge.
	Method string

	// Connectivity is the plume growth neighborhood. The default is
	// EightConnected.
	Connectivity Connectivity

	// NumWorkers is the number of rivers to process concurrently.
	// If NumWorkers <= 0, runtime.GOMAXPROCS(-1) is used.
	NumWorkers int

	// Log receives diagnostic messages. The default is the logrus
	// standard logger.
	Log logrus.FieldLogger
}

// withDefaults returns a copy of c with unset fields set to their defaults.
func (c *BuildConfig) withDefaults() *BuildConfig {
	o := *c
	if o.ProximityKm == 0 {
		o.ProximityKm = DefaultProximityKm
	}
	if o.MaxIterations == 0 {
		o.MaxIterations = DefaultMaxIterations
	}
	if o.Method == "" {
		o.Method = AverageMerge
	}
	if o.Connectivity == 0 {
		o.Connectivity = EightConnected
	}
	if o.NumWorkers <= 0 {
		o.NumWorkers = runtime.GOMAXPROCS(-1)
	}
	if o.Log == nil {
		o.Log = logrus.StandardLogger()
	}
	return &o
}

// validate checks the configuration against the rivers and grid.
func (c *BuildConfig) validate(rivers []*River, g *Grid) error {
	if c.Method != AverageMerge {
		return fmt.Errorf("rivermap: merge method %q is not supported; the only option is %q", c.Method, AverageMerge)
	}
	if len(c.Variables) == 0 {
		return fmt.Errorf("rivermap: no variables specified")
	}
	seen := make(map[string]struct{})
	for _, v := range c.Variables {
		if _, ok := seen[v]; ok {
			return fmt.Errorf("rivermap: variable %q is specified more than once", v)
		}
		seen[v] = struct{}{}
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("rivermap: MaxIterations must be at least 1 but is %d", c.MaxIterations)
	}
	if !(c.ProximityKm > 0) {
		return fmt.Errorf("rivermap: ProximityKm must be > 0 but is %g", c.ProximityKm)
	}
	if err := c.Connectivity.Valid(); err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("rivermap: grid is not specified")
	}
	for i, r := range rivers {
		if r == nil {
			return fmt.Errorf("rivermap: river #%d is nil", i)
		}
		if r.Spread < 0 {
			return fmt.Errorf("rivermap: river %s has negative spread %d", r.label(i), r.Spread)
		}
		if !finite(r.Mouth.X) || !finite(r.Mouth.Y) {
			return fmt.Errorf("rivermap: river %s has non-finite mouth location %v", r.label(i), r.Mouth)
		}
		for _, v := range c.Variables {
			if _, ok := r.Values[v]; !ok {
				return fmt.Errorf("rivermap: river %s is missing variable %q", r.label(i), v)
			}
		}
	}
	return nil
}

// RiverState is the processing state of a river.
type RiverState int

// A river moves from Pending to Located, PlumeBuilt, and finally Merged,
// or, if it can't be located, from Pending to Absent and then Skipped.
const (
	Pending RiverState = iota
	Located
	PlumeBuilt
	Merged
	Absent
	Skipped
)

func (s RiverState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Located:
		return "located"
	case PlumeBuilt:
		return "plume built"
	case Merged:
		return "merged"
	case Absent:
		return "absent"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("RiverState(%d)", int(s))
	}
}

// RiverStatus records what happened to one river during Build.
type RiverStatus struct {
	Name     string
	State    RiverState
	Location Location

	// Cells is the number of grid cells in the river's plume.
	Cells int

	// Converged is false if plume growth stopped because the iteration
	// limit was reached.
	Converged  bool
	Iterations int
}

// Report holds the status of each river passed to Build, in input order.
type Report struct {
	Rivers []RiverStatus
}

// Count returns the number of rivers in state s.
func (r *Report) Count(s RiverState) int {
	var n int
	for _, rs := range r.Rivers {
		if rs.State == s {
			n++
		}
	}
	return n
}

// NotConverged returns the indices of rivers whose plumes did not converge.
func (r *Report) NotConverged() []int {
	var o []int
	for i, rs := range r.Rivers {
		if rs.State == Merged && !rs.Converged {
			o = append(o, i)
		}
	}
	return o
}

// Build creates one field per configured variable from the given rivers.
// Each river is located on the grid, a plume is grown from its mouth cell,
// and the plumes of all rivers are merged using the configured method.
// Rivers that can't be located within cfg.ProximityKm are skipped. The
// returned Fields include a Report of what happened to each river.
func Build(rivers []*River, g *Grid, cfg *BuildConfig) (*Fields, error) {
	if cfg == nil {
		cfg = new(BuildConfig)
	}
	c := cfg.withDefaults()
	if err := c.validate(rivers, g); err != nil {
		return nil, err
	}
	c.Log.WithFields(logrus.Fields{
		"rivers":       len(rivers),
		"variables":    c.Variables,
		"proximity_km": c.ProximityKm,
		"workers":      c.NumWorkers,
	}).Info("rivermap: building fields")

	report := &Report{Rivers: make([]RiverStatus, len(rivers))}
	plumes := make([]*sparse.DenseArrayInt, len(rivers))

	// Each river's result goes into its own slot so that the merge below
	// sees the rivers in input order regardless of the number of workers.
	nprocs := c.NumWorkers
	var wg sync.WaitGroup
	wg.Add(nprocs)
	for pp := 0; pp < nprocs; pp++ {
		go func(pp int) {
			for ii := pp; ii < len(rivers); ii += nprocs {
				plumes[ii], report.Rivers[ii] = c.plume(rivers[ii], g)
			}
			wg.Done()
		}(pp)
	}
	wg.Wait()

	for i, r := range rivers {
		rs := &report.Rivers[i]
		switch rs.State {
		case Absent:
			c.Log.WithFields(logrus.Fields{
				"river":       r.label(i),
				"index":       i,
				"distance_km": rs.Location.MinDistance() * EarthRadiusKm,
			}).Info("rivermap: river mouth is not near any ocean cell; skipping")
			rs.State = Skipped
		case PlumeBuilt:
			if !rs.Converged {
				c.Log.WithFields(logrus.Fields{
					"river":      r.label(i),
					"index":      i,
					"iterations": rs.Iterations,
				}).Warn("rivermap: plume did not converge; using last iteration")
			}
		}
	}

	f := weightedAverage(rivers, plumes, report, c.Variables, g)
	f.Report = report
	c.Log.WithFields(logrus.Fields{
		"merged":  report.Count(Merged),
		"skipped": report.Count(Skipped),
	}).Info("rivermap: finished building fields")
	return f, nil
}

// plume locates r on g and grows its plume. The returned plume is nil if
// the river could not be located.
func (c *BuildConfig) plume(r *River, g *Grid) (*sparse.DenseArrayInt, RiverStatus) {
	rs := RiverStatus{Name: r.Name, State: Pending}
	rs.Location = Locate(r.Mouth, g, c.ProximityKm)
	loc, ok := rs.Location.(Found)
	if !ok {
		rs.State = Absent
		return nil, rs
	}
	rs.State = Located
	plume, converged, iterations := growPlume(loc.CellIndex, g, r.Spread, c.MaxIterations, c.Connectivity)
	rs.State = PlumeBuilt
	rs.Converged = converged
	rs.Iterations = iterations
	for _, p := range plume.Elements {
		rs.Cells += p
	}
	return plume, rs
}
