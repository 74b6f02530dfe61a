package rivermaputil

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/spatialmodel/rivermap"
	"gonum.org/v1/gonum/floats"
)

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"version"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	if want := "RiverMAP v" + rivermap.Version; !strings.Contains(buf.String(), want) {
		t.Errorf("have %q, want %q", buf.String(), want)
	}
}

func TestConfigCmd(t *testing.T) {
	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"config"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}
	var c struct {
		LonColumn   string
		ProximityKm float64
		Grid        struct{ LonVar, MaskVar string }
		RegularGrid struct{ Dlon float64 }
	}
	if _, err := toml.Decode(buf.String(), &c); err != nil {
		t.Fatalf("%v: %s", err, buf.String())
	}
	if c.LonColumn != "mouth_lon" || c.ProximityKm != 200 || c.Grid.LonVar != "lon" ||
		c.Grid.MaskVar != "mask" || c.RegularGrid.Dlon != 1 {
		t.Errorf("unexpected configuration: %+v", c)
	}
}

func TestGridCmdLandMask(t *testing.T) {
	dir, err := ioutil.TempDir("", "rivermap")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	landFile := filepath.Join(dir, "land.json")
	land := `{"type": "Polygon","coordinates": [ [ [-0.1, -0.1], [4.1, -0.1], [4.1, 4.1], [-0.1, 4.1] ] ] }`
	if err := ioutil.WriteFile(landFile, []byte(land), 0644); err != nil {
		t.Fatal(err)
	}
	gridFile := filepath.Join(dir, "grid.nc")

	Cfg.Set("LandMask", landFile)
	Cfg.Set("GridOutput", gridFile)
	Cfg.Set("RegularGrid.Lon0", 0.)
	Cfg.Set("RegularGrid.Lon1", 10.)
	Cfg.Set("RegularGrid.Lat0", 0.)
	Cfg.Set("RegularGrid.Lat1", 10.)
	defer func() {
		Cfg.Set("LandMask", "")
		Cfg.Set("RegularGrid.Lon0", -179.5)
		Cfg.Set("RegularGrid.Lon1", 180.)
		Cfg.Set("RegularGrid.Lat0", -89.5)
		Cfg.Set("RegularGrid.Lat1", 90.)
	}()
	Root.SetOutput(ioutil.Discard)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"grid"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	g, err := loadGrid(GridFile{File: gridFile, LonVar: "lon", LatVar: "lat", MaskVar: "mask"})
	if err != nil {
		t.Fatal(err)
	}
	if g.Ny != 10 || g.Nx != 10 {
		t.Fatalf("shape: have [%d %d], want [10 10]", g.Ny, g.Nx)
	}
	if n := g.OceanCells(); n != 75 {
		t.Errorf("ocean cells: have %d, want 75", n)
	}
	if g.Ocean(4, 4) || !g.Ocean(5, 4) || !g.Ocean(4, 5) {
		t.Error("land mask edge is in the wrong place")
	}
}

func TestRun(t *testing.T) {
	dir, err := ioutil.TempDir("", "rivermap")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	gridFile := filepath.Join(dir, "grid.nc")
	outputFile := filepath.Join(dir, "rivers.nc")
	mouthsFile := filepath.Join(dir, "mouths.shp")

	var buf bytes.Buffer
	Root.SetOutput(&buf)
	defer Root.SetOutput(nil)

	Cfg.Set("GridOutput", gridFile)
	Root.SetArgs([]string{"grid"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	Cfg.Set("GridFile", gridFile)
	Cfg.Set("RiverFile", "../testdata/20major_rivers.csv")
	Cfg.Set("Variables", []string{"testvar"})
	Cfg.Set("DerivedVariables", map[string]string{"double": "testvar * 2"})
	Cfg.Set("OutputFile", outputFile)
	Cfg.Set("MouthsFile", mouthsFile)
	defer func() {
		Cfg.Set("Variables", []string{})
		Cfg.Set("DerivedVariables", map[string]string{})
		Cfg.Set("MouthsFile", "")
	}()
	Root.SetArgs([]string{"run"})
	if err := Root.Execute(); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(outputFile)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	f, err := rivermap.ReadFields(r)
	if err != nil {
		t.Fatal(err)
	}
	if fmt.Sprint(f.Names) != "[double testvar]" {
		t.Fatalf("fields: have %v, want [double testvar]", f.Names)
	}
	v := f.Field("testvar").Elements
	if min, max := floats.Min(v), floats.Max(v); min != 0 || max != 99 {
		t.Errorf("testvar range: have [%g, %g], want [0, 99]", min, max)
	}
	d := f.Field("double").Elements
	for i := range v {
		if d[i] != 2*v[i] {
			t.Fatalf("double[%d] = %g but testvar[%d] = %g", i, d[i], i, v[i])
		}
	}

	nc, err := cdf.Open(r)
	if err != nil {
		t.Fatal(err)
	}
	if h, ok := nc.Header.GetAttribute("", "config_hash").(string); !ok || len(h) != 32 {
		t.Errorf("config_hash: %v", nc.Header.GetAttribute("", "config_hash"))
	}

	if _, err := os.Stat(filepath.Join(dir, "rivers.log")); err != nil {
		t.Errorf("log file: %v", err)
	}
	if !strings.Contains(buf.String(), "field summary") {
		t.Errorf("log doesn't contain field summaries: %s", buf.String())
	}

	dec, err := shp.NewDecoder(mouthsFile)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	if n := dec.AttributeCount(); n != 20 {
		t.Errorf("mouths: have %d records, want 20", n)
	}
}

func TestRunMissingVariables(t *testing.T) {
	Cfg.Set("OutputFile", "rivermap_output.nc")
	Cfg.Set("Variables", []string{})
	Root.SetOutput(ioutil.Discard)
	defer Root.SetOutput(nil)
	Root.SetArgs([]string{"run"})
	err := Root.Execute()
	if err == nil || !strings.Contains(err.Error(), "no variables") {
		t.Errorf("expected an error about missing variables but got %v", err)
	}
}
