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
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/index/rtree"
)

// A Rasterizer grids scattered velocity samples onto the cells of
// template, returning the u and v components.
type Rasterizer interface {
	Rasterize(ctx context.Context, pts []SampledPoint, template *OutputGrid) (u, v *OutputGrid, err error)
}

// Gridding names a Rasterizer.
type Gridding string

// Gridding algorithms.
const (
	GriddingDirect  Gridding = "direct"
	GriddingNearest Gridding = "nearest"
)

// ParseGridding returns the gridding algorithm named by s.
func ParseGridding(s string) (Gridding, error) {
	switch g := Gridding(strings.ToLower(s)); g {
	case GriddingDirect, GriddingNearest:
		return g, nil
	case "":
		return GriddingDirect, nil
	default:
		return "", configError(fmt.Errorf("windninja: invalid gridding algorithm %q", s))
	}
}

// Rasterizer returns the Rasterizer implementing g.
func (g Gridding) Rasterizer() Rasterizer {
	if g == GriddingNearest {
		return NearestNeighbor{}
	}
	return DirectPlacement{}
}

// DirectPlacement writes each sample into the cell that contains it.
// When more than one sample falls in a cell the last one is kept. Cells
// without samples are NoData.
type DirectPlacement struct{}

// Rasterize implements Rasterizer.
func (DirectPlacement) Rasterize(ctx context.Context, pts []SampledPoint, template *OutputGrid) (u, v *OutputGrid, err error) {
	u = template.Copy()
	v = template.Copy()
	for i, p := range pts {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, cancelError(err)
			}
		}
		col, row, ok := u.Pixel(p.X, p.Y)
		if !ok {
			continue
		}
		u.Set(p.U, col, row)
		v.Set(p.V, col, row)
	}
	return u, v, nil
}

// NearestNeighbor assigns each cell the value of the sample closest to
// the cell center.
type NearestNeighbor struct {
	// Radius is the largest distance at which a sample is used. Zero
	// means there is no limit.
	Radius float64
}

type indexedPoint struct {
	geom.Point
	i int
}

// Rasterize implements Rasterizer. The u and v components are gridded
// independently.
func (nn NearestNeighbor) Rasterize(ctx context.Context, pts []SampledPoint, template *OutputGrid) (u, v *OutputGrid, err error) {
	u = template.Copy()
	v = template.Copy()
	if len(pts) == 0 {
		return u, v, nil
	}
	uPts := make([]float64, len(pts))
	vPts := make([]float64, len(pts))
	for i, p := range pts {
		uPts[i] = p.U
		vPts[i] = p.V
	}
	index, limit := newPointIndex(pts, template)
	if nn.Radius > 0 {
		limit = nn.Radius
	}
	for _, band := range []struct {
		g    *OutputGrid
		vals []float64
	}{{u, uPts}, {v, vPts}} {
		for row := 0; row < band.g.Rows; row++ {
			if err := ctx.Err(); err != nil {
				return nil, nil, cancelError(err)
			}
			for col := 0; col < band.g.Cols; col++ {
				x, y := band.g.Center(col, row)
				i, ok := nearest(index, geom.Point{X: x, Y: y}, template.CellSize, limit)
				if ok {
					band.g.Set(band.vals[i], col, row)
				}
			}
		}
	}
	return u, v, nil
}

// newPointIndex builds a spatial index of pts. It also returns the
// largest distance that can separate a cell center of template from a
// sample.
func newPointIndex(pts []SampledPoint, template *OutputGrid) (*rtree.Rtree, float64) {
	tree := rtree.NewTree(25, 50)
	b := geom.Bounds{
		Min: geom.Point{X: template.XMin, Y: template.YMin()},
		Max: geom.Point{X: template.XMax(), Y: template.YMax},
	}
	for i, p := range pts {
		tree.Insert(indexedPoint{Point: p.Point, i: i})
		b.Min.X = math.Min(b.Min.X, p.X)
		b.Min.Y = math.Min(b.Min.Y, p.Y)
		b.Max.X = math.Max(b.Max.X, p.X)
		b.Max.Y = math.Max(b.Max.Y, p.Y)
	}
	return tree, math.Hypot(b.Max.X-b.Min.X, b.Max.Y-b.Min.Y)
}

// nearest returns the index of the sample closest to p within limit. The
// search window starts at a half-width of step and doubles until a sample
// is found. Ties go to the sample inserted first.
func nearest(tree *rtree.Rtree, p geom.Point, step, limit float64) (int, bool) {
	if step <= 0 {
		step = limit
	}
	for r := step; ; r *= 2 {
		if r > limit {
			r = limit
		}
		i, d, ok := nearestWithin(tree, p, r)
		if ok {
			if d <= r {
				return i, d <= limit
			}
			// A closer sample may lie outside of the square window but
			// inside the circle of radius d.
			i, d, _ = nearestWithin(tree, p, d)
			return i, d <= limit
		}
		if r >= limit {
			return 0, false
		}
	}
}

func nearestWithin(tree *rtree.Rtree, p geom.Point, r float64) (index int, dist float64, ok bool) {
	box := &geom.Bounds{
		Min: geom.Point{X: p.X - r, Y: p.Y - r},
		Max: geom.Point{X: p.X + r, Y: p.Y + r},
	}
	dist = math.Inf(1)
	for _, g := range tree.SearchIntersect(box) {
		ip := g.(indexedPoint)
		d := math.Hypot(ip.X-p.X, ip.Y-p.Y)
		if d < dist || (d == dist && ip.i < index) {
			index, dist, ok = ip.i, d, true
		}
	}
	return index, dist, ok
}
