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
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// WriteSTL writes the terrain surface as a binary STL file. Each square
// of four neighboring cell centers becomes two triangles. Squares
// touching a no-data cell are left out.
func WriteSTL(w io.Writer, t *Terrain) (triangles int, err error) {
	type tri [4]Vector3 // normal, then vertices

	var tris []tri
	vertex := func(row, col int) (Vector3, bool) {
		z := t.Elevation.Get(row, col)
		if z == t.NoData {
			return Vector3{}, false
		}
		x, y := t.Center(row, col)
		return Vector3{x, y, z}, true
	}
	for j := 0; j < t.Ny-1; j++ {
		for i := 0; i < t.Nx-1; i++ {
			nw, ok1 := vertex(j, i)
			ne, ok2 := vertex(j, i+1)
			sw, ok3 := vertex(j+1, i)
			se, ok4 := vertex(j+1, i+1)
			if !(ok1 && ok2 && ok3 && ok4) {
				continue
			}
			// Counter-clockwise when seen from above.
			tris = append(tris,
				tri{normal(sw, se, nw), sw, se, nw},
				tri{normal(se, ne, nw), se, ne, nw},
			)
		}
	}

	bw := bufio.NewWriter(w)
	var header [80]byte
	copy(header[:], fmt.Sprintf("WindNinja terrain %s", t.Name))
	if _, err := bw.Write(header[:]); err != nil {
		return 0, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(tris))); err != nil {
		return 0, err
	}
	var rec [12]float32
	for _, tr := range tris {
		for k, v := range tr {
			rec[3*k] = float32(v[0])
			rec[3*k+1] = float32(v[1])
			rec[3*k+2] = float32(v[2])
		}
		if err := binary.Write(bw, binary.LittleEndian, rec); err != nil {
			return 0, err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint16(0)); err != nil {
			return 0, err
		}
	}
	return len(tris), bw.Flush()
}

// WriteSTLFile writes the terrain surface to path.
func WriteSTLFile(path string, t *Terrain) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return ioError(fmt.Errorf("windninja: creating surface directory: %w", err))
	}
	f, err := os.Create(path)
	if err != nil {
		return ioError(fmt.Errorf("windninja: creating surface file: %w", err))
	}
	n, err := WriteSTL(f, t)
	if err != nil {
		f.Close()
		return ioError(fmt.Errorf("windninja: writing surface file: %w", err))
	}
	if n == 0 {
		f.Close()
		return configError(fmt.Errorf("windninja: terrain %s has no valid surface", t.Name))
	}
	if err := f.Close(); err != nil {
		return ioError(fmt.Errorf("windninja: writing surface file: %w", err))
	}
	return nil
}

func normal(a, b, c Vector3) Vector3 {
	u := Vector3{b[0] - a[0], b[1] - a[1], b[2] - a[2]}
	v := Vector3{c[0] - a[0], c[1] - a[1], c[2] - a[2]}
	n := Vector3{
		u[1]*v[2] - u[2]*v[1],
		u[2]*v[0] - u[0]*v[2],
		u[0]*v[1] - u[1]*v[0],
	}
	l := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if l == 0 {
		return Vector3{}
	}
	return Vector3{n[0] / l, n[1] / l, n[2] / l}
}
