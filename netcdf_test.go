package rivermap

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/kr/pretty"
)

func tempFile(t *testing.T, name string) (path string, cleanup func()) {
	dir, err := ioutil.TempDir("", "rivermap")
	if err != nil {
		t.Fatal(err)
	}
	return filepath.Join(dir, name), func() { os.RemoveAll(dir) }
}

func TestGridNetCDF(t *testing.T) {
	path, cleanup := tempFile(t, "grid.nc")
	defer cleanup()

	g := allOcean(4, 6)
	setLand(g, CellIndex{Row: 1, Col: 2}, CellIndex{Row: 3, Col: 5})

	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := g.WriteNetCDF(w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	g2, err := LoadGrid(r, "lon", "lat", "mask")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(g, g2) {
		t.Errorf("grid round trip: %v", pretty.Diff(g, g2))
	}

	if _, err := LoadGrid(r, "longitude", "lat", "mask"); err == nil {
		t.Error("expected an error for a missing variable")
	}
}

func TestLoadGrid1D(t *testing.T) {
	path, cleanup := tempFile(t, "grid1d.nc")
	defer cleanup()

	h := cdf.NewHeader([]string{"lat", "lon"}, []int{2, 3})
	h.AddVariable("lon", []string{"lon"}, []float32{0})
	h.AddVariable("lat", []string{"lat"}, []float32{0})
	h.AddVariable("lsm", []string{"lat", "lon"}, []float64{0})
	h.Define()
	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	f, err := cdf.Create(w, h)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []struct {
		name string
		data interface{}
	}{
		{"lon", []float32{10, 11, 12}},
		{"lat", []float32{-1, 1}},
		{"lsm", []float64{1, 0.9999, 0.0001, 0, 1, 1}},
	} {
		if _, err := variableWriter(f, v.name).Write(v.data); err != nil {
			t.Fatal(err)
		}
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	g, err := LoadGrid(r, "lon", "lat", "lsm")
	if err != nil {
		t.Fatal(err)
	}
	if g.Ny != 2 || g.Nx != 3 {
		t.Fatalf("shape: have [%d %d], want [2 3]", g.Ny, g.Nx)
	}
	if c := g.Center(CellIndex{Row: 1, Col: 2}); !c.Equals(geom.Point{X: 12, Y: 1}) {
		t.Errorf("center: have %v, want [12 1]", c)
	}
	if want := []int{1, 1, 0, 0, 1, 1}; !reflect.DeepEqual(g.Mask.Elements, want) {
		t.Errorf("mask: have %v, want %v", g.Mask.Elements, want)
	}
}

func TestFieldsNetCDF(t *testing.T) {
	path, cleanup := tempFile(t, "fields.nc")
	defer cleanup()

	g := allOcean(8, 9)
	rivers := []*River{
		{Mouth: geom.Point{X: 2, Y: 2}, Spread: 1, Values: map[string]float64{"NO3": 3.5, "DOC": 100}},
		{Mouth: geom.Point{X: 3, Y: 3}, Spread: 2, Values: map[string]float64{"NO3": 1.25, "DOC": 7}},
	}
	f, err := Build(rivers, g, testConfig("NO3", "DOC"))
	if err != nil {
		t.Fatal(err)
	}

	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.WriteNetCDF(w, g, map[string]string{"config_hash": "abc"}); err != nil {
		t.Fatal(err)
	}
	w.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	f2, err := ReadFields(r)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"DOC", "NO3"}; !reflect.DeepEqual(f2.Names, want) {
		t.Errorf("names: have %v, want %v", f2.Names, want)
	}
	for _, n := range f.Names {
		if !reflect.DeepEqual(f.Data[n], f2.Data[n]) {
			t.Errorf("field %s: %v", n, pretty.Diff(f.Data[n], f2.Data[n]))
		}
	}

	f3, err := ReadFields(r, "NO3")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(f3.Names, []string{"NO3"}) {
		t.Errorf("names: %v", f3.Names)
	}

	nc, err := cdf.Open(r)
	if err != nil {
		t.Fatal(err)
	}
	if v := nc.Header.GetAttribute("", "config_hash"); v != "abc" {
		t.Errorf("config_hash: have %v, want abc", v)
	}
	if v := nc.Header.GetAttribute("", "rivermap_version"); v != Version {
		t.Errorf("rivermap_version: have %v, want %s", v, Version)
	}
}
