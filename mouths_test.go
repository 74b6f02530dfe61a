package rivermap

import (
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

func TestWriteMouths(t *testing.T) {
	file, cleanup := tempFile(t, "mouths.shp")
	defer cleanup()

	g := allOcean(10, 10)
	rivers := []*River{
		{Name: "a", Mouth: geom.Point{X: 2.2, Y: 3.1}, Spread: 1, Values: map[string]float64{"v": 1}},
		{Name: "far", Mouth: geom.Point{X: 90, Y: 3}, Spread: 1, Values: map[string]float64{"v": 1}},
		{Name: "b", Mouth: geom.Point{X: 0, Y: 0}, Spread: 2, Values: map[string]float64{"v": 1}},
	}
	f, err := Build(rivers, g, testConfig("v"))
	if err != nil {
		t.Fatal(err)
	}
	if err := WriteMouths(file, rivers, g, f.Report); err != nil {
		t.Fatal(err)
	}

	d, err := shp.NewDecoder(file)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	type rec struct {
		name, row, col, cells string
		p                     geom.Point
	}
	var recs []rec
	for {
		g, fields, more := d.DecodeRowFields("Name", "Row", "Col", "Cells", "Converged")
		if !more {
			break
		}
		for k, v := range fields {
			fields[k] = strings.Trim(v, " \x00")
		}
		if fields["Converged"] != "1" {
			t.Errorf("%s: not converged", fields["Name"])
		}
		recs = append(recs, rec{name: fields["Name"], row: fields["Row"], col: fields["Col"],
			cells: fields["Cells"], p: g.(geom.Point)})
	}
	if err := d.Error(); err != nil {
		t.Fatal(err)
	}
	want := []rec{
		{name: "a", row: "3", col: "2", cells: "9", p: geom.Point{X: 2, Y: 3}},
		{name: "b", row: "0", col: "0", cells: "9", p: geom.Point{X: 0, Y: 0}},
	}
	if len(recs) != len(want) {
		t.Fatalf("have %d records, want %d", len(recs), len(want))
	}
	for i := range want {
		if recs[i] != want[i] {
			t.Errorf("record %d: have %+v, want %+v", i, recs[i], want[i])
		}
	}
}
