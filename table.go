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
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/requestcache"
	"github.com/tealeg/xlsx"
)

// SpreadColumn is the name of the river table column that holds the plume
// spread of each river [grid cells].
const SpreadColumn = "rspread"

// Table is a river table: one row per river and one column per attribute.
// All values are stored as text.
type Table struct {
	Columns []string
	Rows    [][]string
}

// column returns the index of the named column.
func (t *Table) column(name string) (int, bool) {
	for i, c := range t.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// Rivers converts the table into rivers, in row order. lonCol and latCol
// are the names of the columns holding the mouth longitude and latitude
// [degrees], nameCol is the name of the column holding the river names,
// and variables are the names of the columns holding the values to
// include. The table must also have a SpreadColumn column. Missing
// columns other than nameCol are an error, as are values that can't be
// parsed, mouth locations that are NaN or infinite, and spread values
// that are negative or not whole numbers.
func (t *Table) Rivers(lonCol, latCol, nameCol string, variables []string) ([]*River, error) {
	required := append([]string{lonCol, latCol, SpreadColumn}, variables...)
	idx := make(map[string]int, len(required))
	for _, c := range required {
		i, ok := t.column(c)
		if !ok {
			return nil, fmt.Errorf("rivermap: river table is missing column %q", c)
		}
		idx[c] = i
	}
	nameIdx, hasName := t.column(nameCol)

	rivers := make([]*River, len(t.Rows))
	for j, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return nil, fmt.Errorf("rivermap: river table row %d has %d values but there are %d columns",
				j, len(row), len(t.Columns))
		}
		r := &River{Values: make(map[string]float64, len(variables))}
		if hasName {
			r.Name = row[nameIdx]
		}
		get := func(c string) (float64, error) {
			v, err := strconv.ParseFloat(row[idx[c]], 64)
			if err != nil {
				return math.NaN(), fmt.Errorf("rivermap: river table row %d column %q: %v", j, c, err)
			}
			return v, nil
		}
		var err error
		if r.Mouth.X, err = get(lonCol); err != nil {
			return nil, err
		}
		if r.Mouth.Y, err = get(latCol); err != nil {
			return nil, err
		}
		if !finite(r.Mouth.X) || !finite(r.Mouth.Y) {
			return nil, fmt.Errorf("rivermap: river table row %d: mouth location (%s, %s) is not finite",
				j, row[idx[lonCol]], row[idx[latCol]])
		}
		spread, err := get(SpreadColumn)
		if err != nil {
			return nil, err
		}
		if spread < 0 || spread != math.Trunc(spread) {
			return nil, fmt.Errorf("rivermap: river table row %d: %s must be a non-negative whole number but is %s",
				j, SpreadColumn, row[idx[SpreadColumn]])
		}
		r.Spread = int(spread)
		for _, v := range variables {
			if r.Values[v], err = get(v); err != nil {
				return nil, err
			}
		}
		rivers[j] = r
	}
	return rivers, nil
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// ReadTable reads a river table from a file, choosing the reader by the
// file extension: ".csv", ".xlsx", or ".shp". sheet is only used for
// Excel files, and lonCol and latCol are only used for shapefiles.
func ReadTable(file, sheet, lonCol, latCol string) (*Table, error) {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".csv":
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("rivermap: opening river table: %v", err)
		}
		defer f.Close()
		return ReadCSV(f)
	case ".xlsx":
		return ReadExcel(file, sheet)
	case ".shp":
		return ReadShapefile(file, lonCol, latCol)
	default:
		return nil, fmt.Errorf("rivermap: unsupported river table file type %q; must be .csv, .xlsx, or .shp", file)
	}
}

// ReadCSV reads a river table in comma-separated-value format, where the
// first record holds the column names. Leading and trailing white space
// is removed from all values.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("rivermap: reading csv river table: %v", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("rivermap: csv river table is empty")
	}
	for _, rec := range records {
		for i, v := range rec {
			rec[i] = strings.TrimSpace(v)
		}
	}
	return &Table{Columns: records[0], Rows: records[1:]}, nil
}

var (
	excelCache     *requestcache.Cache
	excelCacheOnce sync.Once
)

// loadExcelFile loads a Microsoft Excel file from disk, utilizing
// a cache to avoid loading the same file more than once.
func loadExcelFile(fileName string) (*xlsx.File, error) {
	excelCacheOnce.Do(func() {
		excelCache = requestcache.NewCache(func(ctx context.Context, req interface{}) (interface{}, error) {
			f, err := xlsx.OpenFile(req.(string))
			if err != nil {
				return nil, fmt.Errorf("rivermap: opening xlsx file: %v", err)
			}
			return f, nil
		}, runtime.GOMAXPROCS(-1), requestcache.Memory(100))
	})
	r := excelCache.NewRequest(context.Background(), fileName, fileName)
	fI, err := r.Result()
	if err != nil {
		return nil, err
	}
	return fI.(*xlsx.File), nil
}

// ReadExcel reads a river table from the given sheet of a Microsoft Excel
// file. The first row of the sheet holds the column names; columns with
// empty names and rows with no values are ignored.
func ReadExcel(file, sheet string) (*Table, error) {
	f, err := loadExcelFile(file)
	if err != nil {
		return nil, err
	}
	s, ok := f.Sheet[sheet]
	if !ok {
		return nil, fmt.Errorf("rivermap: reading river table from Excel; no sheet %s", sheet)
	}
	t := new(Table)
	var cols []int
	for i := 0; i < s.MaxCol; i++ {
		if name := strings.TrimSpace(s.Cell(0, i).Value); name != "" {
			t.Columns = append(t.Columns, name)
			cols = append(cols, i)
		}
	}
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("rivermap: Excel sheet %s has no column names", sheet)
	}
	for j := 1; j < s.MaxRow; j++ {
		row := make([]string, len(cols))
		empty := true
		for k, i := range cols {
			row[k] = strings.TrimSpace(s.Cell(j, i).Value)
			if row[k] != "" {
				empty = false
			}
		}
		if !empty {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// ReadShapefile reads a river table from a point shapefile. All attribute
// fields become table columns, and the point locations, converted to
// longitude and latitude if the shapefile has a ".prj" file, are stored in
// columns lonCol and latCol.
func ReadShapefile(file, lonCol, latCol string) (*Table, error) {
	d, err := shp.NewDecoder(file)
	if err != nil {
		return nil, fmt.Errorf("rivermap: opening river shapefile: %v", err)
	}
	defer d.Close()

	var trans proj.Transformer
	if sr, err := d.SR(); err == nil {
		lonlat, err := proj.Parse("+proj=longlat +datum=WGS84 +no_defs")
		if err != nil {
			panic(err)
		}
		if trans, err = sr.NewTransform(lonlat); err != nil {
			return nil, fmt.Errorf("rivermap: river shapefile projection: %v", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("rivermap: river shapefile projection: %v", err)
	}

	t := new(Table)
	for _, f := range d.Fields() {
		t.Columns = append(t.Columns, strings.TrimRight(string(f.Name[:]), "\x00"))
	}
	fields := append([]string{}, t.Columns...)
	lonIdx, ok := t.column(lonCol)
	if !ok {
		lonIdx = len(t.Columns)
		t.Columns = append(t.Columns, lonCol)
	}
	latIdx, ok := t.column(latCol)
	if !ok {
		latIdx = len(t.Columns)
		t.Columns = append(t.Columns, latCol)
	}

	for {
		g, vals, more := d.DecodeRowFields(fields...)
		if !more {
			break
		}
		if d.Error() != nil {
			break
		}
		if trans != nil {
			if g, err = g.Transform(trans); err != nil {
				return nil, fmt.Errorf("rivermap: reprojecting river mouth: %v", err)
			}
		}
		p, ok := g.(geom.Point)
		if !ok {
			return nil, fmt.Errorf("rivermap: river shapefile geometry must be points but is %T", g)
		}
		row := make([]string, len(t.Columns))
		for i, c := range fields {
			row[i] = strings.Trim(vals[c], " \x00")
		}
		row[lonIdx] = strconv.FormatFloat(p.X, 'g', -1, 64)
		row[latIdx] = strconv.FormatFloat(p.Y, 'g', -1, 64)
		t.Rows = append(t.Rows, row)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("rivermap: reading river shapefile: %v", err)
	}
	return t, nil
}
