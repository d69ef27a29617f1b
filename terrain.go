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
	"os"
	"path/filepath"
	"strings"

	"github.com/ctessum/cdf"
	"github.com/ctessum/geom/proj"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// NoData marks raster cells without a value.
const NoData = -9999.0

// Terrain is a regular elevation grid. Row 0 is the northernmost row.
type Terrain struct {
	// Name is the file base name without extension. It is used to name the
	// surface files in the case and the output files.
	Name string

	// X0 and Y0 are the coordinates of the lower-left corner.
	X0, Y0 float64

	CellSize float64
	Nx, Ny   int

	// Elevation has shape [Ny, Nx].
	Elevation *sparse.DenseArray

	// Proj is the spatial reference of the grid, if known.
	Proj string

	NoData float64
}

// NewTerrain returns a flat terrain with the given size.
func NewTerrain(name string, x0, y0, cellSize float64, nx, ny int) *Terrain {
	return &Terrain{
		Name:      name,
		X0:        x0,
		Y0:        y0,
		CellSize:  cellSize,
		Nx:        nx,
		Ny:        ny,
		Elevation: sparse.ZerosDense(ny, nx),
		NoData:    NoData,
	}
}

// Extent returns the horizontal bounds of the grid.
func (t *Terrain) Extent() (xmin, ymin, xmax, ymax float64) {
	return t.X0, t.Y0, t.X0 + float64(t.Nx)*t.CellSize, t.Y0 + float64(t.Ny)*t.CellSize
}

// ElevationRange returns the lowest and highest valid elevations.
func (t *Terrain) ElevationRange() (lo, hi float64, err error) {
	valid := make([]float64, 0, len(t.Elevation.Elements))
	for _, v := range t.Elevation.Elements {
		if v != t.NoData {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return 0, 0, configError(fmt.Errorf("windninja: terrain %s has no valid elevations", t.Name))
	}
	return floats.Min(valid), floats.Max(valid), nil
}

// Center returns the coordinates of the center of the cell at row, col.
func (t *Terrain) Center(row, col int) (x, y float64) {
	x = t.X0 + (float64(col)+0.5)*t.CellSize
	y = t.Y0 + (float64(t.Ny-row)-0.5)*t.CellSize
	return x, y
}

// Grid returns an empty output grid aligned with t.
func (t *Terrain) Grid() *OutputGrid {
	return NewOutputGrid(t.X0, t.Y0+float64(t.Ny)*t.CellSize, t.CellSize, t.Nx, t.Ny, t.Proj)
}

func (t *Terrain) validate() error {
	if t.Nx < 2 || t.Ny < 2 {
		return configError(fmt.Errorf("windninja: terrain %s is %dx%d but should be at least 2x2", t.Name, t.Nx, t.Ny))
	}
	if t.CellSize <= 0 {
		return configError(fmt.Errorf("windninja: terrain %s cell size %g should be >0", t.Name, t.CellSize))
	}
	if len(t.Elevation.Shape) != 2 || t.Elevation.Shape[0] != t.Ny || t.Elevation.Shape[1] != t.Nx {
		return configError(fmt.Errorf("windninja: terrain %s elevation shape %v doesn't match %dx%d", t.Name, t.Elevation.Shape, t.Ny, t.Nx))
	}
	if t.Proj != "" {
		if _, err := proj.Parse(t.Proj); err != nil {
			return configError(fmt.Errorf("windninja: terrain %s spatial reference: %v", t.Name, err))
		}
	}
	return nil
}

// ReadTerrain reads an elevation grid from an ESRI ASCII grid (.asc) or
// netCDF (.nc) file.
func ReadTerrain(path string) (*Terrain, error) {
	var t *Terrain
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc":
		t, err = ReadASCIIGrid(path)
	case ".nc", ".ncf":
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, ioError(fmt.Errorf("windninja: opening terrain: %w", err))
		}
		defer f.Close()
		t, err = ReadNetCDFTerrain(f)
	default:
		return nil, configError(fmt.Errorf("windninja: unsupported terrain file format %q", filepath.Ext(path)))
	}
	if err != nil {
		return nil, err
	}
	t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// ReadNetCDFTerrain reads a terrain written by WriteNetCDF.
func ReadNetCDFTerrain(rw cdf.ReaderWriterAt) (*Terrain, error) {
	f, err := cdf.Open(rw)
	if err != nil {
		return nil, ioError(fmt.Errorf("windninja.ReadNetCDFTerrain: %v", err))
	}
	t := new(Terrain)
	var ok bool
	if t.X0, ok = floatAttribute(f, "x0"); !ok {
		return nil, ioError(fmt.Errorf("windninja.ReadNetCDFTerrain: missing attribute x0"))
	}
	if t.Y0, ok = floatAttribute(f, "y0"); !ok {
		return nil, ioError(fmt.Errorf("windninja.ReadNetCDFTerrain: missing attribute y0"))
	}
	if t.CellSize, ok = floatAttribute(f, "dx"); !ok {
		return nil, ioError(fmt.Errorf("windninja.ReadNetCDFTerrain: missing attribute dx"))
	}
	if t.NoData, ok = floatAttribute(f, "nodata"); !ok {
		t.NoData = NoData
	}
	if p, ok := f.Header.GetAttribute("", "proj").(string); ok {
		t.Proj = p
	}
	dims := f.Header.Lengths("elevation")
	if len(dims) != 2 {
		return nil, ioError(fmt.Errorf("windninja.ReadNetCDFTerrain: elevation has %d dimensions but should have 2", len(dims)))
	}
	t.Ny, t.Nx = dims[0], dims[1]
	t.Elevation = sparse.ZerosDense(dims...)
	r := f.Reader("elevation", nil, nil)
	if _, err = r.Read(t.Elevation.Elements); err != nil {
		return nil, ioError(fmt.Errorf("windninja.ReadNetCDFTerrain: %v", err))
	}
	return t, nil
}

func floatAttribute(f *cdf.File, name string) (float64, bool) {
	v, ok := f.Header.GetAttribute("", name).([]float64)
	if !ok || len(v) == 0 {
		return 0, false
	}
	return v[0], true
}

// WriteNetCDF writes t to w.
func (t *Terrain) WriteNetCDF(w *os.File) error {
	h := cdf.NewHeader([]string{"y", "x"}, []int{t.Ny, t.Nx})
	h.AddAttribute("", "comment", "WindNinja terrain elevation")
	h.AddAttribute("", "x0", []float64{t.X0})
	h.AddAttribute("", "y0", []float64{t.Y0})
	h.AddAttribute("", "dx", []float64{t.CellSize})
	h.AddAttribute("", "nx", []int32{int32(t.Nx)})
	h.AddAttribute("", "ny", []int32{int32(t.Ny)})
	h.AddAttribute("", "nodata", []float64{t.NoData})
	if t.Proj != "" {
		h.AddAttribute("", "proj", t.Proj)
	}
	h.AddVariable("elevation", []string{"y", "x"}, []float64{0})
	h.AddAttribute("elevation", "units", "m")
	h.Define()

	f, err := cdf.Create(w, h)
	if err != nil {
		return ioError(fmt.Errorf("windninja: writing terrain: %v", err))
	}
	if err := writeVariable(f, "elevation", t.Elevation); err != nil {
		return ioError(fmt.Errorf("windninja: writing terrain: %v", err))
	}
	if err := cdf.UpdateNumRecs(w); err != nil {
		return ioError(fmt.Errorf("windninja: writing terrain: %v", err))
	}
	return nil
}

func writeVariable(f *cdf.File, name string, data *sparse.DenseArray) error {
	n := 1
	for _, v := range data.Shape {
		n *= v
	}
	if len(data.Elements) != n {
		return fmt.Errorf("dims are %d but array length is %d", n, len(data.Elements))
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data.Elements)
	return err
}
