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
	"math"
	"reflect"
	"strings"
	"testing"
)

func TestSizeBoxScenario(t *testing.T) {
	b := BoundingBox{XMax: 1000, YMax: 1000, ZMax: 100}
	s, err := sizeBox(b, 2000000, 1)
	if err != nil {
		t.Fatal(err)
	}
	if s.CellBudget != 1000000 {
		t.Errorf("cell budget: have %g, want 1000000", s.CellBudget)
	}
	if s.NX != 215 || s.NY != 215 || s.NZ != 21 {
		t.Errorf("cells: have %dx%dx%d, want 215x215x21", s.NX, s.NY, s.NZ)
	}
	if s.Cells() > 1000000 || (s.NX+1)*(s.NY+1)*(s.NZ+1) < 1000000 {
		t.Errorf("%d cells is not within rounding of the budget", s.Cells())
	}
	if want := 100.0 / 21; math.Abs(s.FirstCellHeight-want) > 1e-12 {
		t.Errorf("first cell height: have %g, want %g", s.FirstCellHeight, want)
	}
}

func TestSizeFromTerrain(t *testing.T) {
	ter := NewTerrain("hill", 1000, 2000, 100, 20, 10)
	for i := range ter.Elevation.Elements {
		ter.Elevation.Elements[i] = 500 + float64(i)
	}
	ter.Elevation.Elements[3] = NoData
	s, err := SizeFromTerrain(ter, 100000)
	if err != nil {
		t.Fatal(err)
	}
	want := BoundingBox{
		XMin: 1020, YMin: 2010, ZMin: 500*0.9 + BlockMeshDz,
		XMax: 2980, YMax: 2990, ZMax: 699 + 199*1.1 + BlockMeshDz,
	}
	if !boxesClose(s.Box, want) {
		t.Errorf("box: have %+v, want %+v", s.Box, want)
	}
	if s.NX < 1 || s.NY < 1 || s.NZ < 1 || s.FirstCellHeight <= 0 {
		t.Errorf("invalid sizing %+v", s)
	}
	if s.ExpansionRatio != 1 {
		t.Errorf("expansion ratio: have %g, want 1", s.ExpansionRatio)
	}
	t.Run("tall", func(t *testing.T) {
		// The vertical margin is the larger of 10% of the horizontal extent
		// and 110% of the relief.
		ter := NewTerrain("peak", 0, 0, 10, 10, 10)
		ter.Elevation.Set(1000, 5, 5)
		s, err := SizeFromTerrain(ter, 1000)
		if err != nil {
			t.Fatal(err)
		}
		if want := 1000 + 1100 + BlockMeshDz; math.Abs(s.Box.ZMax-want) > 1e-9 {
			t.Errorf("zmax: have %g, want %g", s.Box.ZMax, want)
		}
	})
	t.Run("invalid budget", func(t *testing.T) {
		if _, err := SizeFromTerrain(ter, 0); !errors.Is(err, ErrConfiguration) {
			t.Errorf("error %v should be a configuration error", err)
		}
	})
}

func boxesClose(a, b BoundingBox) bool {
	av := []float64{a.XMin, a.YMin, a.ZMin, a.XMax, a.YMax, a.ZMax}
	bv := []float64{b.XMin, b.YMin, b.ZMin, b.XMax, b.YMax, b.ZMax}
	for i := range av {
		if math.Abs(av[i]-bv[i]) > 1e-9 {
			return false
		}
	}
	return true
}

const surfaceCheckLog = `Reading surface from "constant/triSurface/hill.stl" ...

Statistics:
Triangles    : 342
Vertices     : 200
Bounding Box : (100 200 -5) (1100.5 1200 
  300)

Surface has no illegal triangles.
`

func TestParseBoundingBox(t *testing.T) {
	b, err := ParseBoundingBox(strings.NewReader(surfaceCheckLog))
	if err != nil {
		t.Fatal(err)
	}
	want := BoundingBox{XMin: 100, YMin: 200, ZMin: -5, XMax: 1100.5, YMax: 1200, ZMax: 300}
	if !reflect.DeepEqual(b, want) {
		t.Errorf("have %+v, want %+v", b, want)
	}

	for name, log := range map[string]string{
		"missing marker": "Triangles : 2\n",
		"short tuple":    "Bounding Box : (1 2) (3 4 5)\n",
		"bad number":     "Bounding Box : (1 2 x) (3 4 5)\n",
		"one corner":     "Bounding Box : (1 2 3)\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseBoundingBox(strings.NewReader(log)); !errors.Is(err, ErrIO) {
				t.Errorf("error %v should be an i/o error", err)
			}
		})
	}
}

func TestSizeFromGeometryLog(t *testing.T) {
	s, err := SizeFromGeometryLog(strings.NewReader(surfaceCheckLog), 50000)
	if err != nil {
		t.Fatal(err)
	}
	want := BoundingBox{XMin: 110, YMin: 210, ZMin: -5.5, XMax: 1090.5, YMax: 1190, ZMax: 750}
	if !boxesClose(s.Box, want) {
		t.Errorf("box: have %+v, want %+v", s.Box, want)
	}
	if s.ExpansionRatio != 4 {
		t.Errorf("expansion ratio: have %g, want 4", s.ExpansionRatio)
	}
}

func TestMeshSubstitutions(t *testing.T) {
	s := &MeshSizing{
		Box: BoundingBox{XMin: 0, YMin: 1.5, ZMin: 2, XMax: 10, YMax: 11, ZMax: 12},
		NX:  3, NY: 4, NZ: 5, ExpansionRatio: 1,
	}
	have := s.Substitutions().Apply("($xmin$ $ymin$ $zmin$) ($xmax$ $ymax$ $zmax$) ($Nx1$ $Ny1$ $Nz1$) $Ratio$", CopyReplaceLimit)
	if want := "(0 1.5 2) (10 11 12) (3 4 5) 1"; have != want {
		t.Errorf("have %q, want %q", have, want)
	}
}
