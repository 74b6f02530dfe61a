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
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/sparse"
)

// derivedFunctions are the functions that can be used in derived variable
// expressions.
var derivedFunctions = map[string]govaluate.ExpressionFunction{
	"exp": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("rivermap: got %d arguments for function 'exp', but needs 1", len(arg))
		}
		return math.Exp(arg[0].(float64)), nil
	},
	"log": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("rivermap: got %d arguments for function 'log', but needs 1", len(arg))
		}
		return math.Log(arg[0].(float64)), nil
	},
	"max": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("rivermap: got %d arguments for function 'max', but needs 2", len(arg))
		}
		return math.Max(arg[0].(float64), arg[1].(float64)), nil
	},
	"min": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 2 {
			return nil, fmt.Errorf("rivermap: got %d arguments for function 'min', but needs 2", len(arg))
		}
		return math.Min(arg[0].(float64), arg[1].(float64)), nil
	},
}

// Derive adds variables to f that are calculated from the existing
// variables in f. exprs maps the names of the new variables to expressions
// such as "NO3 * 14.0067 + NH4", which are evaluated separately for each
// grid cell. Expressions can use the functions exp(x), log(x), max(x, y),
// and min(x, y), and may only refer to variables that were in f before
// Derive was called.
func Derive(f *Fields, exprs map[string]string) error {
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		if _, ok := f.Data[name]; ok {
			return fmt.Errorf("rivermap: derived variable %q has the same name as an existing variable", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	type derived struct {
		name string
		expr *govaluate.EvaluableExpression
		vars []string
	}
	d := make([]derived, len(names))
	for i, name := range names {
		expression, err := govaluate.NewEvaluableExpressionWithFunctions(exprs[name], derivedFunctions)
		if err != nil {
			return fmt.Errorf("rivermap: derived variable %q: %v", name, err)
		}
		vars := removeDuplicates(expression.Vars())
		for _, v := range vars {
			if _, ok := f.Data[v]; !ok {
				return fmt.Errorf("rivermap: derived variable %q refers to unknown variable %q", name, v)
			}
		}
		d[i] = derived{name: name, expr: expression, vars: vars}
	}

	if len(d) == 0 {
		return nil
	}
	if len(f.Names) == 0 {
		return fmt.Errorf("rivermap: can't derive variables without any existing variables")
	}
	shape := f.Data[f.Names[0]].Shape
	n := len(f.Data[f.Names[0]].Elements)
	out := make([]*sparse.DenseArray, len(d))
	for i, dv := range d {
		out[i] = sparse.ZerosDense(shape...)
		params := make(map[string]interface{}, len(dv.vars))
		for k := 0; k < n; k++ {
			for _, v := range dv.vars {
				params[v] = f.Data[v].Elements[k]
			}
			result, err := dv.expr.Evaluate(params)
			if err != nil {
				return fmt.Errorf("rivermap: evaluating derived variable %q: %v", dv.name, err)
			}
			switch r := result.(type) {
			case float64:
				out[i].Elements[k] = r
			case bool:
				if r {
					out[i].Elements[k] = 1
				}
			default:
				return fmt.Errorf("rivermap: derived variable %q has non-numeric value %v", dv.name, result)
			}
		}
	}
	for i, dv := range d {
		if err := f.add(dv.name, out[i]); err != nil {
			return err
		}
	}
	return nil
}

// removeDuplicates removes all duplicated strings from a slice, returning a
// slice that contains only unique strings.
func removeDuplicates(s []string) []string {
	result := make([]string, 0, len(s))
	seen := make(map[string]struct{})
	for _, val := range s {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}
