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
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
)

// testOutput returns a 3x2 output with one no-data cell.
func testOutput(t *testing.T) *Output {
	o := &Output{
		Base:      filepath.Join(t.TempDir(), "hill_270_5_100m"),
		Speed:     NewOutputGrid(1000, 2200, 100, 3, 2, ""),
		Direction: NewOutputGrid(1000, 2200, 100, 3, 2, ""),
		U:         NewOutputGrid(1000, 2200, 100, 3, 2, ""),
		V:         NewOutputGrid(1000, 2200, 100, 3, 2, ""),
		Units:     MetersPerSecond,
	}
	for r := 0; r < 2; r++ {
		for c := 0; c < 3; c++ {
			if r == 1 && c == 2 {
				continue
			}
			o.U.Set(float64(c+1), c, r)
			o.V.Set(0, c, r)
			o.Speed.Set(float64(c+1), c, r)
			o.Direction.Set(270, c, r)
		}
	}
	return o
}

func TestOutputBaseName(t *testing.T) {
	ter := NewTerrain("big_butte", 0, 0, 99.6, 2, 2)
	if have, want := OutputBaseName("out", ter, 247.5, 4.47), filepath.Join("out", "big_butte_248_4_100m"); have != want {
		t.Errorf("have %s, want %s", have, want)
	}
}

func TestASCIIGridWriter(t *testing.T) {
	o := testOutput(t)
	o.Speed.Proj = "+proj=longlat +datum=WGS84"
	o.Direction.Proj = o.Speed.Proj
	files, err := ASCIIGridWriter{}.WriteOutput(o)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{o.Base + "_vel.asc", o.Base + "_vel.prj", o.Base + "_ang.asc", o.Base + "_ang.prj"}
	if !reflect.DeepEqual(files, want) {
		t.Errorf("have %v, want %v", files, want)
	}
	f, err := os.Open(o.Base + "_vel.asc")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	vel, err := DecodeASCIIGrid(f)
	if err != nil {
		t.Fatal(err)
	}
	if vel.X0 != 1000 || vel.Y0 != 2000 || vel.Nx != 3 || vel.Ny != 2 {
		t.Errorf("layout: %+v", vel)
	}
	if !reflect.DeepEqual(vel.Elevation.Elements, o.Speed.Values.Elements) {
		t.Errorf("have %v, want %v", vel.Elevation.Elements, o.Speed.Values.Elements)
	}
	ang, err := ioutil.ReadFile(o.Base + "_ang.asc")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(string(ang), "270 270 270\n270 270 -9999\n") {
		t.Errorf("direction grid:\n%s", ang)
	}
}

func TestNetCDFWriter(t *testing.T) {
	o := testOutput(t)
	files, err := NetCDFWriter{}.WriteOutput(o)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0] != o.Base+".nc" {
		t.Fatalf("files: %v", files)
	}
	r, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	f, err := cdf.Open(r)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range []struct {
		name string
		want *OutputGrid
	}{{"speed", o.Speed}, {"direction", o.Direction}} {
		if dims := f.Header.Lengths(v.name); !reflect.DeepEqual(dims, []int{2, 3}) {
			t.Errorf("%s dims: have %v, want [2 3]", v.name, dims)
		}
		data := make([]float64, 6)
		if _, err := f.Reader(v.name, nil, nil).Read(data); err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(data, v.want.Values.Elements) {
			t.Errorf("%s: have %v, want %v", v.name, data, v.want.Values.Elements)
		}
		if fill := f.Header.GetAttribute(v.name, "_FillValue"); !reflect.DeepEqual(fill, []float64{NoData}) {
			t.Errorf("%s fill value: %v", v.name, fill)
		}
	}
	gt := f.Header.GetAttribute("", "geotransform")
	if want := []float64{1000, 100, 0, 2200, 0, -100}; !reflect.DeepEqual(gt, want) {
		t.Errorf("geotransform: have %v, want %v", gt, want)
	}
}

func TestShapefileWriter(t *testing.T) {
	o := testOutput(t)
	w := ShapefileWriter{Variables: map[string]string{
		"speed": "speed",
		"dir":   "direction",
		"east":  "round(u * 10)",
	}}
	files, err := w.WriteOutput(o)
	if err != nil {
		t.Fatal(err)
	}
	if files[0] != o.Base+".shp" {
		t.Fatalf("files: %v", files)
	}
	d, err := shp.NewDecoder(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	if n := d.AttributeCount(); n != 5 {
		t.Fatalf("have %d records, want 5", n)
	}
	var east []float64
	for i := 0; i < 5; i++ {
		g, fields, more := d.DecodeRowFields("speed", "dir", "east")
		if !more {
			t.Fatal("ran out of rows")
		}
		if _, ok := g.(geom.Point); !ok {
			t.Errorf("row %d: geometry %T should be a point", i, g)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(fields["east"]), 64)
		if err != nil {
			t.Fatal(err)
		}
		east = append(east, v)
	}
	if err := d.Error(); err != nil {
		t.Fatal(err)
	}
	sort.Float64s(east)
	if want := []float64{10, 10, 20, 20, 30}; !reflect.DeepEqual(east, want) {
		t.Errorf("have %v, want %v", east, want)
	}

	for name, vars := range map[string]map[string]string{
		"long name":    {"windspeed_mps": "speed"},
		"bad name":     {"wind-speed": "speed"},
		"unknown":      {"t": "temperature"},
		"syntax error": {"s": "speed +"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ShapefileWriter{Variables: vars}.WriteOutput(testOutput(t))
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("error %v should be a configuration error", err)
			}
		})
	}
}

type failingWriter struct{}

func (failingWriter) WriteOutput(*Output) ([]string, error) {
	return nil, errors.New("disk full")
}

type panickingWriter struct{}

func (panickingWriter) WriteOutput(o *Output) ([]string, error) {
	var g *OutputGrid
	return []string{g.Proj}, nil
}

func TestWriteOutputsIsolation(t *testing.T) {
	o := testOutput(t)
	files := writeOutputs(testLogger(), o, []OutputWriter{failingWriter{}, panickingWriter{}, NetCDFWriter{}})
	if want := []string{o.Base + ".nc"}; !reflect.DeepEqual(files, want) {
		t.Errorf("have %v, want %v", files, want)
	}
}
