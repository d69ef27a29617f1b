/*
Copyright © 2018 the WindNinja authors.
This file is part of WindNinja.

WindNinja is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WindNinja is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WindNinja.  If not, see <http://www.gnu.org/licenses/>.
*/

package windninja

import (
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	goshp "github.com/jonas-p/go-shp"
	"github.com/sirupsen/logrus"
)

// Output holds the final wind grids of a run.
type Output struct {
	// Base is the output path without an extension.
	Base string

	// Speed is in Units; Direction is in degrees from north.
	Speed, Direction *OutputGrid
	Units            SpeedUnits

	// U and V are the velocity components [m/s].
	U, V *OutputGrid
}

// An OutputWriter writes the final grids of a run to one or more files
// and returns their paths.
type OutputWriter interface {
	WriteOutput(o *Output) ([]string, error)
}

// OutputBaseName returns the output path, without an extension, for a run
// over terrain t with the given inlet speed and direction. The name is
// "<terrain>_<direction>_<speed>_<resolution>m".
func OutputBaseName(dir string, t *Terrain, direction, speed float64) string {
	name := fmt.Sprintf("%s_%d_%d_%dm", t.Name,
		int(math.Round(direction)), int(math.Round(speed)), int(math.Round(t.CellSize)))
	return filepath.Join(dir, name)
}

// writeOutputs runs each writer. A writer that fails or panics is
// reported to log and does not stop the others. It returns the files
// that were written.
func writeOutputs(log logrus.FieldLogger, o *Output, writers []OutputWriter) []string {
	var files []string
	for _, w := range writers {
		f, err := safeWriteOutput(w, o)
		if err != nil {
			log.WithError(err).WithField("writer", fmt.Sprintf("%T", w)).Warn("failed writing output")
			continue
		}
		files = append(files, f...)
	}
	return files
}

func safeWriteOutput(w OutputWriter, o *Output) (files []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("windninja: output writer panic: %v", r)
		}
	}()
	return w.WriteOutput(o)
}

// writePrj writes the spatial reference of g next to base, if it is known.
func writePrj(base string, g *OutputGrid) ([]string, error) {
	if g.Proj == "" {
		return nil, nil
	}
	path := base + ".prj"
	if err := ioutil.WriteFile(path, []byte(g.Proj), 0644); err != nil {
		return nil, ioError(fmt.Errorf("windninja: writing %s: %w", path, err))
	}
	return []string{path}, nil
}

// ASCIIGridWriter writes the speed and direction grids as ESRI ASCII
// grids named <base>_vel.asc and <base>_ang.asc.
type ASCIIGridWriter struct{}

// WriteOutput implements OutputWriter.
func (ASCIIGridWriter) WriteOutput(o *Output) ([]string, error) {
	var files []string
	for _, b := range []struct {
		suffix string
		g      *OutputGrid
		prec   int
	}{
		{"_vel", o.Speed, 2},
		{"_ang", o.Direction, 0},
	} {
		path := o.Base + b.suffix + ".asc"
		f, err := os.Create(path)
		if err != nil {
			return files, ioError(fmt.Errorf("windninja: creating %s: %w", path, err))
		}
		err = EncodeASCIIGrid(f, b.g.XMin, b.g.YMin(), b.g.CellSize, b.g.NoData, b.g.Values, b.prec)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return files, ioError(fmt.Errorf("windninja: writing %s: %w", path, err))
		}
		files = append(files, path)
		prj, err := writePrj(o.Base+b.suffix, b.g)
		if err != nil {
			return files, err
		}
		files = append(files, prj...)
	}
	return files, nil
}

// NetCDFWriter writes the speed and direction grids as variables of a
// single netCDF file named <base>.nc.
type NetCDFWriter struct{}

// WriteOutput implements OutputWriter.
func (NetCDFWriter) WriteOutput(o *Output) ([]string, error) {
	g := o.Speed
	h := cdf.NewHeader([]string{"y", "x"}, []int{g.Rows, g.Cols})
	h.AddAttribute("", "comment", "WindNinja surface wind")
	h.AddAttribute("", "x0", []float64{g.XMin})
	h.AddAttribute("", "y0", []float64{g.YMin()})
	h.AddAttribute("", "dx", []float64{g.CellSize})
	h.AddAttribute("", "nx", []int32{int32(g.Cols)})
	h.AddAttribute("", "ny", []int32{int32(g.Rows)})
	gt := g.GeoTransform()
	h.AddAttribute("", "geotransform", gt[:])
	if g.Proj != "" {
		h.AddAttribute("", "spatial_ref", g.Proj)
	}
	for _, v := range []struct {
		name, units string
		g           *OutputGrid
	}{
		{"speed", string(o.Units), o.Speed},
		{"direction", "degrees", o.Direction},
	} {
		h.AddVariable(v.name, []string{"y", "x"}, []float64{0})
		h.AddAttribute(v.name, "units", v.units)
		h.AddAttribute(v.name, "_FillValue", []float64{v.g.NoData})
	}
	h.Define()

	path := o.Base + ".nc"
	w, err := os.Create(path)
	if err != nil {
		return nil, ioError(fmt.Errorf("windninja: creating %s: %w", path, err))
	}
	defer w.Close()
	f, err := cdf.Create(w, h)
	if err != nil {
		return nil, ioError(fmt.Errorf("windninja: writing %s: %v", path, err))
	}
	if err := writeVariable(f, "speed", o.Speed.Values); err != nil {
		return nil, ioError(fmt.Errorf("windninja: writing %s: %v", path, err))
	}
	if err := writeVariable(f, "direction", o.Direction.Values); err != nil {
		return nil, ioError(fmt.Errorf("windninja: writing %s: %v", path, err))
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return nil, ioError(fmt.Errorf("windninja: writing %s: %v", path, err))
	}
	if err := w.Close(); err != nil {
		return nil, ioError(fmt.Errorf("windninja: writing %s: %v", path, err))
	}
	return []string{path}, nil
}

// DefaultShapefileVariables are the fields written by ShapefileWriter
// when none are configured.
var DefaultShapefileVariables = map[string]string{
	"speed": "speed",
	"dir":   "direction",
}

// ShapefileWriter writes one point per valid grid cell to <base>.shp.
type ShapefileWriter struct {
	// Variables maps shapefile field names to expressions of the
	// variables speed, direction, u and v.
	Variables map[string]string
}

// outputFunctions are the functions available to shapefile variable
// expressions.
var outputFunctions = map[string]govaluate.ExpressionFunction{
	"abs": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("windninja: got %d arguments for function 'abs', but needs 1", len(arg))
		}
		return math.Abs(arg[0].(float64)), nil
	},
	"round": func(arg ...interface{}) (interface{}, error) {
		if len(arg) != 1 {
			return nil, fmt.Errorf("windninja: got %d arguments for function 'round', but needs 1", len(arg))
		}
		return math.Round(arg[0].(float64)), nil
	},
}

var shpFieldName = regexp.MustCompile(`^[A-Za-z]\w*$`)

// expressions parses the configured variables, returning them with their
// names in sorted order.
func (w ShapefileWriter) expressions() ([]string, []*govaluate.EvaluableExpression, error) {
	vars := w.Variables
	if len(vars) == 0 {
		vars = DefaultShapefileVariables
	}
	names := make([]string, 0, len(vars))
	for k := range vars {
		if len(k) > 10 {
			return nil, nil, configError(fmt.Errorf("windninja: output variable name '%s' exceeds 10 characters", k))
		}
		if !shpFieldName.MatchString(k) {
			return nil, nil, configError(fmt.Errorf("windninja: output variable name '%s' includes unsupported characters", k))
		}
		names = append(names, k)
	}
	sort.Strings(names)
	exprs := make([]*govaluate.EvaluableExpression, len(names))
	for i, n := range names {
		e, err := govaluate.NewEvaluableExpressionWithFunctions(vars[n], outputFunctions)
		if err != nil {
			return nil, nil, configError(fmt.Errorf("windninja: output variable %s: %v", n, err))
		}
		for _, v := range e.Vars() {
			switch v {
			case "speed", "direction", "u", "v":
			default:
				return nil, nil, configError(fmt.Errorf("windninja: undefined variable name '%s' in output variable %s", v, n))
			}
		}
		exprs[i] = e
	}
	return names, exprs, nil
}

// WriteOutput implements OutputWriter.
func (w ShapefileWriter) WriteOutput(o *Output) ([]string, error) {
	names, exprs, err := w.expressions()
	if err != nil {
		return nil, err
	}
	path := o.Base + ".shp"
	for _, ext := range []string{".shp", ".prj", ".dbf", ".shx"} {
		os.Remove(o.Base + ext)
	}
	fields := make([]goshp.Field, len(names))
	for i, n := range names {
		fields[i] = goshp.FloatField(n, 14, 8)
	}
	enc, err := shp.NewEncoderFromFields(path, goshp.POINT, fields...)
	if err != nil {
		return nil, ioError(fmt.Errorf("windninja: creating %s: %v", path, err))
	}
	g := o.Speed
	params := make(map[string]interface{}, 4)
	for row := 0; row < g.Rows; row++ {
		for col := 0; col < g.Cols; col++ {
			s := o.Speed.Get(col, row)
			d := o.Direction.Get(col, row)
			if s == o.Speed.NoData || d == o.Direction.NoData {
				continue
			}
			params["speed"] = s
			params["direction"] = d
			params["u"] = componentOrZero(o.U, col, row)
			params["v"] = componentOrZero(o.V, col, row)
			vals := make([]interface{}, len(exprs))
			for i, e := range exprs {
				r, err := e.Evaluate(params)
				if err != nil {
					enc.Close()
					return nil, fmt.Errorf("windninja: evaluating output variable %s: %v", names[i], err)
				}
				vals[i] = r
			}
			x, y := g.Center(col, row)
			if err := enc.EncodeFields(geom.Point{X: x, Y: y}, vals...); err != nil {
				enc.Close()
				return nil, ioError(fmt.Errorf("windninja: writing %s: %v", path, err))
			}
		}
	}
	enc.Close()
	files := []string{path, o.Base + ".shx", o.Base + ".dbf"}
	prj, err := writePrj(o.Base, g)
	if err != nil {
		return files, err
	}
	return append(files, prj...), nil
}

func componentOrZero(g *OutputGrid, col, row int) float64 {
	if g == nil {
		return 0
	}
	v := g.Get(col, row)
	if v == g.NoData {
		return 0
	}
	return v
}
