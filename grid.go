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
	"math"
	"strings"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// OutputGrid is a north-up raster aligned with the terrain.
type OutputGrid struct {
	// XMin and YMax are the coordinates of the upper-left corner.
	XMin, YMax float64

	CellSize   float64
	Cols, Rows int

	// Proj is the spatial reference, copied from the terrain.
	Proj string

	NoData float64

	// Values has shape [Rows, Cols]. Row 0 is the north edge.
	Values *sparse.DenseArray
}

// NewOutputGrid returns a grid with every cell set to NoData.
func NewOutputGrid(xmin, ymax, cellSize float64, cols, rows int, proj string) *OutputGrid {
	g := &OutputGrid{
		XMin:     xmin,
		YMax:     ymax,
		CellSize: cellSize,
		Cols:     cols,
		Rows:     rows,
		Proj:     proj,
		NoData:   NoData,
		Values:   sparse.ZerosDense(rows, cols),
	}
	for i := range g.Values.Elements {
		g.Values.Elements[i] = NoData
	}
	return g
}

// Copy returns an empty grid with the same layout as g.
func (g *OutputGrid) Copy() *OutputGrid {
	return NewOutputGrid(g.XMin, g.YMax, g.CellSize, g.Cols, g.Rows, g.Proj)
}

// GeoTransform returns the affine transform from pixel to world
// coordinates in the conventional six-coefficient form.
func (g *OutputGrid) GeoTransform() [6]float64 {
	return [6]float64{g.XMin, g.CellSize, 0, g.YMax, 0, -g.CellSize}
}

// Pixel returns the column and row containing the point x, y. ok is false
// if the point is outside of the grid.
func (g *OutputGrid) Pixel(x, y float64) (col, row int, ok bool) {
	gt := g.GeoTransform()
	inv, invertible := invertGeoTransform(gt)
	if !invertible {
		return 0, 0, false
	}
	px := inv[0] + inv[1]*x + inv[2]*y
	py := inv[3] + inv[4]*x + inv[5]*y
	col = int(math.Floor(px))
	row = int(math.Floor(py))
	if col < 0 || row < 0 || col >= g.Cols || row >= g.Rows {
		return col, row, false
	}
	return col, row, true
}

// Center returns the world coordinates of the center of cell col, row.
func (g *OutputGrid) Center(col, row int) (x, y float64) {
	gt := g.GeoTransform()
	px, py := float64(col)+0.5, float64(row)+0.5
	return gt[0] + px*gt[1] + py*gt[2], gt[3] + px*gt[4] + py*gt[5]
}

// YMin returns the coordinate of the south edge of the grid.
func (g *OutputGrid) YMin() float64 { return g.YMax - float64(g.Rows)*g.CellSize }

// XMax returns the coordinate of the east edge of the grid.
func (g *OutputGrid) XMax() float64 { return g.XMin + float64(g.Cols)*g.CellSize }

// Get returns the value at col, row.
func (g *OutputGrid) Get(col, row int) float64 { return g.Values.Get(row, col) }

// Set sets the value at col, row.
func (g *OutputGrid) Set(v float64, col, row int) { g.Values.Set(v, row, col) }

// Valid returns the values that are not NoData.
func (g *OutputGrid) Valid() []float64 {
	out := make([]float64, 0, len(g.Values.Elements))
	for _, v := range g.Values.Elements {
		if v != g.NoData {
			out = append(out, v)
		}
	}
	return out
}

// Mean returns the mean of the valid values, or NoData if there are none.
func (g *OutputGrid) Mean() float64 {
	v := g.Valid()
	if len(v) == 0 {
		return g.NoData
	}
	return floats.Sum(v) / float64(len(v))
}

// Clip returns a copy of g with the given fraction of the columns and rows
// removed from every edge.
func (g *OutputGrid) Clip(fraction float64) (*OutputGrid, error) {
	if fraction < 0 || fraction >= 0.5 {
		return nil, configError(fmt.Errorf("windninja: clipping fraction %g should be in [0, 0.5)", fraction))
	}
	dc := int(float64(g.Cols) * fraction)
	dr := int(float64(g.Rows) * fraction)
	if dc == 0 && dr == 0 {
		return g, nil
	}
	o := NewOutputGrid(g.XMin+float64(dc)*g.CellSize, g.YMax-float64(dr)*g.CellSize,
		g.CellSize, g.Cols-2*dc, g.Rows-2*dr, g.Proj)
	o.NoData = g.NoData
	for r := 0; r < o.Rows; r++ {
		for c := 0; c < o.Cols; c++ {
			o.Set(g.Get(c+dc, r+dr), c, r)
		}
	}
	return o, nil
}

// invertGeoTransform returns the inverse of an affine geotransform.
func invertGeoTransform(gt [6]float64) ([6]float64, bool) {
	det := gt[1]*gt[5] - gt[2]*gt[4]
	if det == 0 {
		return [6]float64{}, false
	}
	inv := 1 / det
	var o [6]float64
	o[1] = gt[5] * inv
	o[4] = -gt[4] * inv
	o[2] = -gt[2] * inv
	o[5] = gt[1] * inv
	o[0] = (gt[2]*gt[3] - gt[0]*gt[5]) * inv
	o[3] = (-gt[1]*gt[3] + gt[0]*gt[4]) * inv
	return o, true
}

// SpeedDirection converts velocity components into wind speed and the
// meteorological direction the wind blows from, in degrees clockwise
// from north. Cells where either component is NoData are NoData in both
// outputs.
func SpeedDirection(u, v *OutputGrid) (speed, direction *OutputGrid, err error) {
	if u.Cols != v.Cols || u.Rows != v.Rows {
		return nil, nil, fmt.Errorf("windninja: u grid is %dx%d but v grid is %dx%d", u.Cols, u.Rows, v.Cols, v.Rows)
	}
	speed = u.Copy()
	direction = u.Copy()
	for i, uu := range u.Values.Elements {
		vv := v.Values.Elements[i]
		if uu == u.NoData || vv == v.NoData {
			continue
		}
		speed.Values.Elements[i], direction.Values.Elements[i] = uvToSD(uu, vv)
	}
	return speed, direction, nil
}

func uvToSD(u, v float64) (speed, dir float64) {
	speed = math.Hypot(u, v)
	if speed == 0 {
		return 0, 0
	}
	dir = math.Mod(270-math.Atan2(v, u)*180/math.Pi, 360)
	if dir < 0 {
		dir += 360
	}
	return speed, dir
}

// SpeedUnits is a unit of wind speed.
type SpeedUnits string

// Supported wind speed units.
const (
	MetersPerSecond   SpeedUnits = "mps"
	MilesPerHour      SpeedUnits = "mph"
	KilometersPerHour SpeedUnits = "kph"
	Knots             SpeedUnits = "kts"
)

// ParseSpeedUnits returns the units named by s.
func ParseSpeedUnits(s string) (SpeedUnits, error) {
	switch u := SpeedUnits(strings.ToLower(s)); u {
	case MetersPerSecond, MilesPerHour, KilometersPerHour, Knots:
		return u, nil
	case "":
		return MetersPerSecond, nil
	default:
		return "", configError(fmt.Errorf("windninja: invalid speed units %q", s))
	}
}

// fromMetersPerSecond is the factor converting m/s to each unit.
var fromMetersPerSecond = map[SpeedUnits]float64{
	MetersPerSecond:   1,
	MilesPerHour:      2.236936292054,
	KilometersPerHour: 3.6,
	Knots:             1.943844492441,
}

// ConvertSpeed returns a copy of speed, which is in m/s, in units u.
func ConvertSpeed(speed *OutputGrid, u SpeedUnits) *OutputGrid {
	f, ok := fromMetersPerSecond[u]
	if !ok {
		f = 1
	}
	o := speed.Copy()
	o.NoData = speed.NoData
	for i, v := range speed.Values.Elements {
		if v == speed.NoData {
			o.Values.Elements[i] = o.NoData
			continue
		}
		o.Values.Elements[i] = v * f
	}
	return o
}

// ToMetersPerSecond converts speed from units u to m/s.
func ToMetersPerSecond(speed float64, u SpeedUnits) float64 {
	if f, ok := fromMetersPerSecond[u]; ok {
		return speed / f
	}
	return speed
}
