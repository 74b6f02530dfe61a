package rivermap

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/kr/pretty"
	"github.com/tealeg/xlsx"
)

func TestReadCSV(t *testing.T) {
	f, err := os.Open("testdata/20major_rivers.csv")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	table, err := ReadCSV(f)
	if err != nil {
		t.Fatal(err)
	}
	wantCols := []string{"basinname", "mouth_lon", "mouth_lat", "rspread", "testvar"}
	if !reflect.DeepEqual(table.Columns, wantCols) {
		t.Errorf("columns: %v", pretty.Diff(table.Columns, wantCols))
	}
	if len(table.Rows) != 20 {
		t.Errorf("have %d rows, want 20", len(table.Rows))
	}
	rivers, err := table.Rivers("mouth_lon", "mouth_lat", "basinname", []string{"testvar"})
	if err != nil {
		t.Fatal(err)
	}
	want := &River{
		Name:   "Amazon",
		Mouth:  geom.Point{X: -50.5, Y: -0.5},
		Spread: 3,
		Values: map[string]float64{"testvar": 99},
	}
	if !reflect.DeepEqual(rivers[0], want) {
		t.Errorf("first river: %v", pretty.Diff(rivers[0], want))
	}
}

func TestTableRivers(t *testing.T) {
	read := func(s string) *Table {
		table, err := ReadCSV(strings.NewReader(s))
		if err != nil {
			t.Fatal(err)
		}
		return table
	}

	t.Run("float spread", func(t *testing.T) {
		rivers, err := read("mouth_lon,mouth_lat,rspread,v\n1,2,10.0,3\n").Rivers("mouth_lon", "mouth_lat", "basinname", []string{"v"})
		if err != nil {
			t.Fatal(err)
		}
		want := []*River{{Mouth: geom.Point{X: 1, Y: 2}, Spread: 10, Values: map[string]float64{"v": 3}}}
		if !reflect.DeepEqual(rivers, want) {
			t.Errorf("%v", pretty.Diff(rivers, want))
		}
	})

	t.Run("missing spread", func(t *testing.T) {
		_, err := read("mouth_lon,mouth_lat,v\n1,2,3\n").Rivers("mouth_lon", "mouth_lat", "basinname", []string{"v"})
		if err == nil || !strings.Contains(err.Error(), SpreadColumn) {
			t.Errorf("expected an error naming %s but got %v", SpreadColumn, err)
		}
	})

	errorTests := []struct {
		name, csv string
	}{
		{name: "fractional spread", csv: "mouth_lon,mouth_lat,rspread,v\n1,2,1.5,3\n"},
		{name: "negative spread", csv: "mouth_lon,mouth_lat,rspread,v\n1,2,-1,3\n"},
		{name: "bad value", csv: "mouth_lon,mouth_lat,rspread,v\n1,2,1,x\n"},
		{name: "missing variable", csv: "mouth_lon,mouth_lat,rspread,w\n1,2,1,3\n"},
		{name: "missing lat", csv: "mouth_lon,lat,rspread,v\n1,2,1,3\n"},
		{name: "NaN lon", csv: "mouth_lon,mouth_lat,rspread,v\nNaN,10,2,1\n"},
		{name: "infinite lat", csv: "mouth_lon,mouth_lat,rspread,v\n1,+Inf,2,1\n"},
	}
	for _, test := range errorTests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := read(test.csv).Rivers("mouth_lon", "mouth_lat", "basinname", []string{"v"}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestReadTableExtension(t *testing.T) {
	if _, err := ReadTable("rivers.txt", "Sheet1", "mouth_lon", "mouth_lat"); err == nil {
		t.Error("expected an error for an unsupported file type")
	}
	table, err := ReadTable("testdata/20major_rivers.csv", "", "", "")
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 20 {
		t.Errorf("have %d rows, want 20", len(table.Rows))
	}
}

func TestReadShapefile(t *testing.T) {
	dir, err := ioutil.TempDir("", "rivermap")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "rivers.shp")

	e, err := shp.NewEncoderFromFields(file, goshp.POINT,
		goshp.StringField("basinname", 20),
		goshp.NumberField("rspread", 5),
		goshp.FloatField("testvar", 14, 4),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeFields(geom.Point{X: -89.25, Y: 29.15}, "Mississippi", 2, 96.); err != nil {
		t.Fatal(err)
	}
	if err := e.EncodeFields(geom.Point{X: 4, Y: 52}, "Rhine", 1, 25.5); err != nil {
		t.Fatal(err)
	}
	e.Close()

	table, err := ReadTable(file, "", "mouth_lon", "mouth_lat")
	if err != nil {
		t.Fatal(err)
	}
	rivers, err := table.Rivers("mouth_lon", "mouth_lat", "basinname", []string{"testvar"})
	if err != nil {
		t.Fatal(err)
	}
	want := []*River{
		{Name: "Mississippi", Mouth: geom.Point{X: -89.25, Y: 29.15}, Spread: 2, Values: map[string]float64{"testvar": 96}},
		{Name: "Rhine", Mouth: geom.Point{X: 4, Y: 52}, Spread: 1, Values: map[string]float64{"testvar": 25.5}},
	}
	if !reflect.DeepEqual(rivers, want) {
		t.Errorf("%v", pretty.Diff(rivers, want))
	}
}

func TestReadExcel(t *testing.T) {
	dir, err := ioutil.TempDir("", "rivermap")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	file := filepath.Join(dir, "rivers.xlsx")

	x := xlsx.NewFile()
	sheet, err := x.AddSheet("rivers")
	if err != nil {
		t.Fatal(err)
	}
	for _, row := range [][]string{
		{"basinname", "mouth_lon", "mouth_lat", "rspread", "testvar"},
		{"Danube", "29.7", "45.2", "1", "70"},
		{"Nile", "31.8", "31.5", "1", "80"},
	} {
		r := sheet.AddRow()
		for _, v := range row {
			r.AddCell().SetString(v)
		}
	}
	if err := x.Save(file); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadExcel(file, "Sheet1"); err == nil {
		t.Error("expected an error for a missing sheet")
	}
	table, err := ReadTable(file, "rivers", "mouth_lon", "mouth_lat")
	if err != nil {
		t.Fatal(err)
	}
	rivers, err := table.Rivers("mouth_lon", "mouth_lat", "basinname", []string{"testvar"})
	if err != nil {
		t.Fatal(err)
	}
	want := []*River{
		{Name: "Danube", Mouth: geom.Point{X: 29.7, Y: 45.2}, Spread: 1, Values: map[string]float64{"testvar": 70}},
		{Name: "Nile", Mouth: geom.Point{X: 31.8, Y: 31.5}, Spread: 1, Values: map[string]float64{"testvar": 80}},
	}
	if !reflect.DeepEqual(rivers, want) {
		t.Errorf("%v", pretty.Diff(rivers, want))
	}
}
