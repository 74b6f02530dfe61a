package rivermaputil

import (
	"fmt"
	"os"
	"reflect"
	"testing"

	"github.com/ctessum/geom"
	"github.com/lnashier/viper"
	"github.com/spatialmodel/rivermap"
)

func TestParseLandMask(t *testing.T) {
	t.Run("polygon", func(t *testing.T) {
		f, err := os.Create("tmp_land.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_land.json")
		fmt.Fprint(f, `{"type": "Polygon","coordinates": [ [ [0, 0], [10, 0], [10, 10], [0, 10] ] ] }`)
		f.Close()
		mask, err := parseLandMask("tmp_land.json")
		if err != nil {
			t.Fatal(err)
		}
		want := geom.Polygon{geom.Path{geom.Point{X: 0, Y: 0}, geom.Point{X: 10, Y: 0}, geom.Point{X: 10, Y: 10}, geom.Point{X: 0, Y: 10}}}
		if !reflect.DeepEqual(mask, want) {
			t.Errorf("%v != %v", mask, want)
		}
	})
	t.Run("multipolygon", func(t *testing.T) {
		f, err := os.Create("tmp_land.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_land.json")
		fmt.Fprint(f, `{"type": "MultiPolygon","coordinates": [ [ [ [1, 1], [2, 1], [2, 2], [1, 2] ] ], [ [ [5, 5], [6, 5], [6, 6], [5, 6] ] ] ] }`)
		f.Close()
		mask, err := parseLandMask("tmp_land.json")
		if err != nil {
			t.Fatal(err)
		}
		want := geom.MultiPolygon{
			{geom.Path{geom.Point{X: 1, Y: 1}, geom.Point{X: 2, Y: 1}, geom.Point{X: 2, Y: 2}, geom.Point{X: 1, Y: 2}}},
			{geom.Path{geom.Point{X: 5, Y: 5}, geom.Point{X: 6, Y: 5}, geom.Point{X: 6, Y: 6}, geom.Point{X: 5, Y: 6}}},
		}
		if !reflect.DeepEqual(mask, want) {
			t.Errorf("%v != %v", mask, want)
		}
	})
	t.Run("bad multipolygon", func(t *testing.T) {
		f, err := os.Create("tmp_land.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_land.json")
		fmt.Fprint(f, `{"type": "MultiPolygon","coordinates": [ [ [ [1, 1, 1], [2, 1, 1], [2, 2, 1] ] ] ] }`)
		f.Close()
		if _, err := parseLandMask("tmp_land.json"); err == nil {
			t.Error("expected an error for 3-D coordinates")
		}
	})
	t.Run("point", func(t *testing.T) {
		f, err := os.Create("tmp_land.json")
		if err != nil {
			t.Fatal(err)
		}
		defer os.Remove("tmp_land.json")
		fmt.Fprint(f, `{"type": "Point","coordinates": [1, 1] }`)
		f.Close()
		if _, err := parseLandMask("tmp_land.json"); err == nil {
			t.Error("expected an error for a point geometry")
		}
	})
}

func testViper() *viper.Viper {
	cfg := viper.New()
	cfg.Set("Variables", []string{"NO3", "DOC"})
	cfg.Set("ProximityKm", 150.)
	cfg.Set("MaxIterations", 20)
	cfg.Set("MergeMethod", "average")
	cfg.Set("Connectivity", 4)
	cfg.Set("NumWorkers", 2)
	return cfg
}

func TestBuildConfig(t *testing.T) {
	c, err := BuildConfig(testViper())
	if err != nil {
		t.Fatal(err)
	}
	want := &rivermap.BuildConfig{
		Variables:     []string{"NO3", "DOC"},
		ProximityKm:   150,
		MaxIterations: 20,
		Method:        rivermap.AverageMerge,
		Connectivity:  rivermap.FourConnected,
		NumWorkers:    2,
	}
	if !reflect.DeepEqual(c, want) {
		t.Errorf("have %+v, want %+v", c, want)
	}

	errorTests := []struct {
		name  string
		key   string
		value interface{}
	}{
		{name: "no variables", key: "Variables", value: []string{}},
		{name: "repeated variable", key: "Variables", value: []string{"NO3", "NO3"}},
		{name: "method", key: "MergeMethod", value: "sum"},
		{name: "connectivity", key: "Connectivity", value: 6},
		{name: "proximity", key: "ProximityKm", value: 0.},
		{name: "iterations", key: "MaxIterations", value: 0},
	}
	for _, test := range errorTests {
		t.Run(test.name, func(t *testing.T) {
			cfg := testViper()
			cfg.Set(test.key, test.value)
			if _, err := BuildConfig(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestCheckDerivedVariables(t *testing.T) {
	os.Setenv("RIVERMAP_TEST_FACTOR", "2")
	defer os.Unsetenv("RIVERMAP_TEST_FACTOR")
	have, err := checkDerivedVariables(map[string]string{"TotalN": "NO3 *\n$RIVERMAP_TEST_FACTOR"}, []string{"NO3"})
	if err != nil {
		t.Fatal(err)
	}
	if want := map[string]string{"TotalN": "NO3 * 2"}; !reflect.DeepEqual(have, want) {
		t.Errorf("have %v, want %v", have, want)
	}
	if _, err := checkDerivedVariables(map[string]string{"NO3": "NO3 * 2"}, []string{"NO3"}); err == nil {
		t.Error("expected an error for a name collision")
	}
}

func TestCheckLogFile(t *testing.T) {
	if have := checkLogFile("", "out/rivermap_output.nc"); have != "out/rivermap_output.log" {
		t.Errorf("have %s, want out/rivermap_output.log", have)
	}
	if have := checkLogFile("a.log", "out/rivermap_output.nc"); have != "a.log" {
		t.Errorf("have %s, want a.log", have)
	}
}

func TestCheckOutputFile(t *testing.T) {
	if _, err := checkOutputFile(""); err == nil {
		t.Error("expected an error for an empty output file")
	}
	if _, err := checkOutputFile("/this/directory/does/not/exist/out.nc"); err == nil {
		t.Error("expected an error for a missing directory")
	}
	if f, err := checkOutputFile("out.nc"); err != nil || f != "out.nc" {
		t.Errorf("have %s, %v", f, err)
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	cfg.Set("a", `{"x": "NO3 + 1"}`)
	cfg.Set("b", map[string]interface{}{"x": "NO3 + 1"})
	cfg.Set("c", "")
	want := map[string]string{"x": "NO3 + 1"}
	for _, k := range []string{"a", "b"} {
		if have := GetStringMapString(k, cfg); !reflect.DeepEqual(have, want) {
			t.Errorf("%s: have %v, want %v", k, have, want)
		}
	}
	if have := GetStringMapString("c", cfg); len(have) != 0 {
		t.Errorf("c: have %v, want empty", have)
	}
}
