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
	"io/ioutil"
	"os"
	"strconv"
	"strings"

	"github.com/ctessum/sparse"
)

// ReadASCIIGrid reads an ESRI ASCII grid. If a .prj file with the same
// base name exists, it is used as the spatial reference.
func ReadASCIIGrid(path string) (*Terrain, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ioError(fmt.Errorf("windninja: opening ASCII grid: %w", err))
	}
	defer f.Close()
	t, err := DecodeASCIIGrid(f)
	if err != nil {
		return nil, err
	}
	prj := strings.TrimSuffix(path, ".asc") + ".prj"
	if b, err := ioutil.ReadFile(prj); err == nil {
		t.Proj = strings.TrimSpace(string(b))
	}
	return t, nil
}

// DecodeASCIIGrid parses an ESRI ASCII grid from r.
func DecodeASCIIGrid(r io.Reader) (*Terrain, error) {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	s.Split(bufio.ScanWords)

	t := &Terrain{NoData: NoData}
	var center bool
	var pending string
	for s.Scan() {
		key := strings.ToLower(s.Text())
		switch key {
		case "ncols", "nrows", "xllcorner", "yllcorner", "xllcenter", "yllcenter", "cellsize", "nodata_value":
		default:
			// First grid value.
			pending = s.Text()
		}
		if pending != "" {
			break
		}
		if !s.Scan() {
			break
		}
		v, err := strconv.ParseFloat(s.Text(), 64)
		if err != nil {
			return nil, ioError(fmt.Errorf("windninja: parsing ASCII grid header %s: %w", key, err))
		}
		switch key {
		case "ncols":
			t.Nx = int(v)
		case "nrows":
			t.Ny = int(v)
		case "xllcorner":
			t.X0 = v
		case "yllcorner":
			t.Y0 = v
		case "xllcenter":
			t.X0, center = v, true
		case "yllcenter":
			t.Y0, center = v, true
		case "cellsize":
			t.CellSize = v
		case "nodata_value":
			t.NoData = v
		}
	}
	if err := s.Err(); err != nil {
		return nil, ioError(fmt.Errorf("windninja: reading ASCII grid: %w", err))
	}
	if t.Nx <= 0 || t.Ny <= 0 {
		return nil, ioError(fmt.Errorf("windninja: ASCII grid has %d columns and %d rows", t.Nx, t.Ny))
	}
	if center {
		t.X0 -= t.CellSize / 2
		t.Y0 -= t.CellSize / 2
	}
	t.Elevation = sparse.ZerosDense(t.Ny, t.Nx)
	n := 0
	next := func() (string, bool) {
		if pending != "" {
			p := pending
			pending = ""
			return p, true
		}
		if !s.Scan() {
			return "", false
		}
		return s.Text(), true
	}
	for n < len(t.Elevation.Elements) {
		tok, ok := next()
		if !ok {
			break
		}
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, ioError(fmt.Errorf("windninja: parsing ASCII grid value %d: %w", n, err))
		}
		t.Elevation.Elements[n] = v
		n++
	}
	if err := s.Err(); err != nil {
		return nil, ioError(fmt.Errorf("windninja: reading ASCII grid: %w", err))
	}
	if n != len(t.Elevation.Elements) {
		return nil, ioError(fmt.Errorf("windninja: ASCII grid has %d values but should have %d", n, len(t.Elevation.Elements)))
	}
	return t, nil
}

// EncodeASCIIGrid writes data, which must have shape [ny, nx] with row 0
// at the north edge, as an ESRI ASCII grid. Values are written with prec
// decimal places, or in the shortest exact form if prec is negative.
func EncodeASCIIGrid(w io.Writer, x0, y0, cellSize, noData float64, data *sparse.DenseArray, prec int) error {
	if len(data.Shape) != 2 {
		return fmt.Errorf("windninja: ASCII grid data has %d dimensions but should have 2", len(data.Shape))
	}
	ny, nx := data.Shape[0], data.Shape[1]
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "ncols        %d\n", nx)
	fmt.Fprintf(bw, "nrows        %d\n", ny)
	fmt.Fprintf(bw, "xllcorner    %s\n", formatFloat(x0))
	fmt.Fprintf(bw, "yllcorner    %s\n", formatFloat(y0))
	fmt.Fprintf(bw, "cellsize     %s\n", formatFloat(cellSize))
	fmt.Fprintf(bw, "NODATA_value %s\n", formatFloat(noData))
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if i > 0 {
				bw.WriteByte(' ')
			}
			v := data.Get(j, i)
			if prec < 0 || v == noData {
				bw.WriteString(formatFloat(v))
			} else {
				bw.WriteString(strconv.FormatFloat(v, 'f', prec, 64))
			}
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
