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
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// BlockMeshDz is the height [m] by which the terrain surface is raised
// above the bottom of the block mesh.
const BlockMeshDz = 150.0

// boundingBoxMarker labels the domain extent in the surfaceCheck output.
const boundingBoxMarker = "Bounding Box"

// BoundingBox is an axis-aligned box in case coordinates.
type BoundingBox struct {
	XMin, YMin, ZMin float64
	XMax, YMax, ZMax float64
}

// Extents returns the box size along each axis.
func (b BoundingBox) Extents() (dx, dy, dz float64) {
	return b.XMax - b.XMin, b.YMax - b.YMin, b.ZMax - b.ZMin
}

// Volume returns the volume of the box.
func (b BoundingBox) Volume() float64 {
	dx, dy, dz := b.Extents()
	return dx * dy * dz
}

// MeshSizing holds the parameters of the background block mesh.
type MeshSizing struct {
	Box BoundingBox

	// NX, NY and NZ are the number of cells along each axis.
	NX, NY, NZ int

	FirstCellHeight float64
	ExpansionRatio  float64

	// CellBudget is the number of cells allotted to the block mesh.
	// The rest of the total is reserved for refinement.
	CellBudget float64
}

// SizeFromTerrain sizes the block mesh from the terrain extent and
// elevation range. The domain is shrunk by 1% of each horizontal extent
// on every side and raised by BlockMeshDz.
func SizeFromTerrain(t *Terrain, totalCells int) (*MeshSizing, error) {
	if totalCells <= 0 {
		return nil, configError(fmt.Errorf("windninja: total cell count %d should be >0", totalCells))
	}
	xmin, ymin, xmax, ymax := t.Extent()
	zmin, zmax, err := t.ElevationRange()
	if err != nil {
		return nil, err
	}
	dx := xmax - xmin
	dy := ymax - ymin
	dz := zmax - zmin
	if dx <= 0 || dy <= 0 {
		return nil, configError(fmt.Errorf("windninja: terrain extent %gx%g is not positive", dx, dy))
	}
	xBuf := dx * 0.01
	yBuf := dy * 0.01
	b := BoundingBox{
		XMin: xmin + xBuf,
		YMin: ymin + yBuf,
		ZMin: zmin*0.9 + BlockMeshDz,
		XMax: xmax - xBuf,
		YMax: ymax - yBuf,
		ZMax: zmax + math.Max(0.1*math.Max(dx, dy), dz+0.1*dz) + BlockMeshDz,
	}
	return sizeBox(b, totalCells, 1.0)
}

// SizeFromGeometryLog sizes the block mesh from the bounding box reported
// by a surface check of a user-supplied geometry.
func SizeFromGeometryLog(r io.Reader, totalCells int) (*MeshSizing, error) {
	if totalCells <= 0 {
		return nil, configError(fmt.Errorf("windninja: total cell count %d should be >0", totalCells))
	}
	raw, err := ParseBoundingBox(r)
	if err != nil {
		return nil, err
	}
	b := BoundingBox{
		XMin: raw.XMin + 10,
		YMin: raw.YMin + 10,
		ZMin: raw.ZMin * 1.1,
		XMax: raw.XMax - 10,
		YMax: raw.YMax - 10,
		ZMax: raw.ZMax * 2.5,
	}
	return sizeBox(b, totalCells, 4.0)
}

func sizeBox(b BoundingBox, totalCells int, ratio float64) (*MeshSizing, error) {
	dx, dy, dz := b.Extents()
	if dx <= 0 || dy <= 0 || dz <= 0 {
		return nil, configError(fmt.Errorf("windninja: mesh bounding box %+v has a non-positive extent", b))
	}
	budget := 0.5 * float64(totalCells)
	side := math.Cbrt(b.Volume() / budget)
	s := &MeshSizing{
		Box:            b,
		NX:             cellsAlong(dx, side),
		NY:             cellsAlong(dy, side),
		NZ:             cellsAlong(dz, side),
		ExpansionRatio: ratio,
		CellBudget:     budget,
	}
	s.FirstCellHeight = dz / float64(s.NZ)
	return s, nil
}

func cellsAlong(extent, side float64) int {
	n := int(extent / side)
	if n < 1 {
		return 1
	}
	return n
}

// Cells returns the number of cells in the block mesh.
func (s *MeshSizing) Cells() int { return s.NX * s.NY * s.NZ }

// Substitutions returns the token replacements for the block mesh
// dictionary.
func (s *MeshSizing) Substitutions() Substitutions {
	var subs Substitutions
	return subs.Add("$xmin$", formatFloat(s.Box.XMin)).
		Add("$ymin$", formatFloat(s.Box.YMin)).
		Add("$zmin$", formatFloat(s.Box.ZMin)).
		Add("$xmax$", formatFloat(s.Box.XMax)).
		Add("$ymax$", formatFloat(s.Box.YMax)).
		Add("$zmax$", formatFloat(s.Box.ZMax)).
		Add("$Nx1$", strconv.Itoa(s.NX)).
		Add("$Ny1$", strconv.Itoa(s.NY)).
		Add("$Nz1$", strconv.Itoa(s.NZ)).
		Add("$Ratio$", formatFloat(s.ExpansionRatio))
}

// ParseBoundingBox reads a surface check report and returns the first
// bounding box found in it. The box is given on a line containing
// "Bounding Box" followed by the minimum and maximum corners as
// parenthesized triples, possibly continued on following lines.
func ParseBoundingBox(r io.Reader) (BoundingBox, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var text strings.Builder
	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if !found {
			i := strings.Index(line, boundingBoxMarker)
			if i < 0 {
				continue
			}
			found = true
			line = line[i+len(boundingBoxMarker):]
		}
		text.WriteString(line)
		text.WriteByte(' ')
		if strings.Count(text.String(), ")") >= 2 {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return BoundingBox{}, ioError(fmt.Errorf("windninja: reading bounding box: %w", err))
	}
	if !found {
		return BoundingBox{}, ioError(fmt.Errorf("windninja: %q not found in surface check log", boundingBoxMarker))
	}
	rest := text.String()
	lo, rest, err := parseTriple(rest)
	if err != nil {
		return BoundingBox{}, err
	}
	hi, _, err := parseTriple(rest)
	if err != nil {
		return BoundingBox{}, err
	}
	return BoundingBox{
		XMin: lo[0], YMin: lo[1], ZMin: lo[2],
		XMax: hi[0], YMax: hi[1], ZMax: hi[2],
	}, nil
}

// parseTriple parses the first "(a b c)" group in s and returns the
// remainder of s after it.
func parseTriple(s string) (Vector3, string, error) {
	var v Vector3
	open := strings.Index(s, "(")
	if open < 0 {
		return v, s, ioError(fmt.Errorf("windninja: bounding box corner missing in %q", strings.TrimSpace(s)))
	}
	end := strings.Index(s[open:], ")")
	if end < 0 {
		return v, s, ioError(fmt.Errorf("windninja: unterminated bounding box corner in %q", strings.TrimSpace(s)))
	}
	fields := strings.Fields(s[open+1 : open+end])
	if len(fields) != 3 {
		return v, s, ioError(fmt.Errorf("windninja: bounding box corner %q should have 3 values", s[open:open+end+1]))
	}
	for i, f := range fields {
		var err error
		v[i], err = strconv.ParseFloat(f, 64)
		if err != nil {
			return v, s, ioError(fmt.Errorf("windninja: parsing bounding box: %w", err))
		}
	}
	return v, s[open+end+1:], nil
}
