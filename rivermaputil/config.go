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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/geojson"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/rivermap"
	"github.com/spf13/cast"
)

// BuildConfig unmarshals the field-building settings from a viper
// configuration and checks them.
func BuildConfig(cfg *viper.Viper) (*rivermap.BuildConfig, error) {
	vars, err := checkVariables(expandStringSlice(cast.ToStringSlice(cfg.Get("Variables"))))
	if err != nil {
		return nil, err
	}
	method, err := checkMergeMethod(os.ExpandEnv(cfg.GetString("MergeMethod")))
	if err != nil {
		return nil, err
	}
	conn := rivermap.Connectivity(cfg.GetInt("Connectivity"))
	if err := conn.Valid(); err != nil {
		return nil, fmt.Errorf("rivermaputil: Connectivity: %v", err)
	}
	c := &rivermap.BuildConfig{
		Variables:     vars,
		ProximityKm:   cfg.GetFloat64("ProximityKm"),
		MaxIterations: cfg.GetInt("MaxIterations"),
		Method:        method,
		Connectivity:  conn,
		NumWorkers:    cfg.GetInt("NumWorkers"),
	}
	if !(c.ProximityKm > 0) {
		return nil, fmt.Errorf("rivermaputil: ProximityKm=%g but should be >0", c.ProximityKm)
	}
	if c.MaxIterations < 1 {
		return nil, fmt.Errorf("rivermaputil: MaxIterations=%d but should be >0", c.MaxIterations)
	}
	return c, nil
}

// checkVariables makes sure that at least one variable was specified and
// that none is specified twice.
func checkVariables(vars []string) ([]string, error) {
	if len(vars) == 0 {
		return nil, fmt.Errorf("rivermaputil: there are no variables specified for output. Please fill in " +
			"the Variables configuration and try again")
	}
	seen := make(map[string]bool)
	for _, v := range vars {
		if v == "" {
			return nil, fmt.Errorf("rivermaputil: Variables contains an empty name")
		}
		if seen[v] {
			return nil, fmt.Errorf("rivermaputil: variable %s is specified more than once", v)
		}
		seen[v] = true
	}
	return vars, nil
}

// checkMergeMethod ensures that an acceptable merge method was specified.
func checkMergeMethod(m string) (string, error) {
	if m != rivermap.AverageMerge {
		return m, fmt.Errorf("rivermaputil: the MergeMethod variable in the configuration file "+
			"needs to be set to %s, but is currently set to `%s`", rivermap.AverageMerge, m)
	}
	return m, nil
}

// checkDerivedVariables removes end lines and expands environment
// variables in the derived variable expressions, and makes sure that none of
// them is named the same as one of vars.
func checkDerivedVariables(exprs map[string]string, vars []string) (map[string]string, error) {
	o := make(map[string]string, len(exprs))
	for k, v := range exprs {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	for _, v := range vars {
		if _, ok := o[v]; ok {
			return nil, fmt.Errorf("rivermaputil: derived variable %s has the same name as an input variable", v)
		}
	}
	return o, nil
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkOutputFile makes sure that the output file is specified and its
// directory exists, and expand any environment variables.
func checkOutputFile(f string) (string, error) {
	if f == "" {
		return "", fmt.Errorf(`rivermaputil: you need to specify an output file configuration variable (for example: OutputFile="output.nc")`)
	}
	f = os.ExpandEnv(f)
	if IsBlob(f) {
		url, err := url.Parse(f)
		if err != nil {
			return f, err
		}
		_, err = OpenBucket(context.TODO(), url.Scheme+"://"+url.Host)
		if err != nil {
			return f, fmt.Errorf("rivermaputil: error when checking output file location: %v", err)
		}
		return f, nil
	}
	outdir := filepath.Dir(f)
	if _, err := os.Stat(outdir); err != nil {
		return f, fmt.Errorf("rivermaputil: the output file directory doesn't exist: %v", err)
	}
	return f, nil
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputFile string) string {
	if logFile == "" {
		logFile = strings.TrimSuffix(outputFile, filepath.Ext(outputFile)) + ".log"
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) map[string]string {
	i := cfg.Get(varName)
	switch i.(type) {
	case map[string]string:
		return i.(map[string]string)
	case map[string]interface{}:
		return cast.ToStringMapString(i)
	case string:
		if strings.TrimSpace(i.(string)) == "" {
			return make(map[string]string)
		}
		b := bytes.NewBuffer(([]byte)(i.(string)))
		d := json.NewDecoder(b)
		o := make(map[string]string)
		if err := d.Decode(&o); err != nil {
			panic(err)
		}
		return o
	default:
		panic(fmt.Errorf("invalid type for getStringMapString variable %s: %#v", varName, i))
	}
}

// parseLandMask returns the land polygons represented by the given
// GeoJSON file, which must contain a Polygon or MultiPolygon geometry.
func parseLandMask(landMaskGeoJSONFile string) (geom.Polygonal, error) {
	f, err := os.Open(landMaskGeoJSONFile)
	if err != nil {
		return nil, fmt.Errorf("rivermaputil: opening land mask file: %v", err)
	}
	defer f.Close()
	b, err := ioutil.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("rivermaputil: reading land mask file: %v", err)
	}
	var g geojson.Geometry
	if err := json.Unmarshal(b, &g); err != nil {
		return nil, fmt.Errorf("rivermaputil: decoding LandMask: %v", err)
	}
	switch g.Type {
	case "Polygon":
		return landPolygon(&g)
	case "MultiPolygon":
		// The geojson package only decodes single polygons, so each
		// member is decoded separately.
		coords, ok := g.Coordinates.([]interface{})
		if !ok || len(coords) == 0 {
			return nil, fmt.Errorf("rivermaputil: decoding LandMask: invalid MultiPolygon coordinates")
		}
		mp := make(geom.MultiPolygon, len(coords))
		for i, c := range coords {
			p, err := landPolygon(&geojson.Geometry{Type: "Polygon", Coordinates: c})
			if err != nil {
				return nil, err
			}
			mp[i] = p
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("rivermaputil: invalid land mask geometry type %s", g.Type)
	}
}

func landPolygon(g *geojson.Geometry) (geom.Polygon, error) {
	p, err := geojson.FromGeoJSON(g)
	if err != nil {
		return nil, fmt.Errorf("rivermaputil: decoding LandMask: %v", err)
	}
	return p.(geom.Polygon), nil
}
