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
	"bytes"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/ctessum/geom"
)

const rawSamples = `#  U  POINT_DATA 3
#  x  y  z  U_x  U_y  U_z
500050 4000250 1010 1.5 -2 0.1
500150 4000250 1020 3 4 0
500250 4000150 1015 -1 0.25 0
`

func TestSanitize(t *testing.T) {
	var buf bytes.Buffer
	if err := Sanitize(strings.NewReader(rawSamples), &buf); err != nil {
		t.Fatal(err)
	}
	want := `x,y,z,U_x,U_y,U_z
500050,4000250,1010,1.5,-2,0.1
500150,4000250,1020,3,4,0
500250,4000150,1015,-1,0.25,0
`
	if buf.String() != want {
		t.Errorf("have\n%s\nwant\n%s", buf.String(), want)
	}

	t.Run("empty", func(t *testing.T) {
		if err := Sanitize(strings.NewReader(""), ioutil.Discard); !errors.Is(err, ErrIO) {
			t.Errorf("error %v should be an i/o error", err)
		}
	})
}

func TestReadSampledPoints(t *testing.T) {
	pts, err := ReadSampledPoints(strings.NewReader("x,y,z,U_x,U_y,U_z\n1,2,3,4,5,6\n7,8,9,10,11,12\n"))
	if err != nil {
		t.Fatal(err)
	}
	want := []SampledPoint{
		{Point: geom.Point{X: 1, Y: 2}, U: 4, V: 5},
		{Point: geom.Point{X: 7, Y: 8}, U: 10, V: 11},
	}
	if !reflect.DeepEqual(pts, want) {
		t.Errorf("have %v, want %v", pts, want)
	}

	for name, table := range map[string]string{
		"missing column": "x,y,z,U_x\n1,2,3,4\n",
		"bad value":      "x,y,U_x,U_y\n1,2,a,4\n",
		"short row":      "x,y,U_x,U_y\n1,2\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadSampledPoints(strings.NewReader(table)); !errors.Is(err, ErrIO) {
				t.Errorf("error %v should be an i/o error", err)
			}
		})
	}
}

// writeRawSamples writes surface samples into the case in dir.
func writeRawSamples(t *testing.T, dir, raw string) {
	t.Helper()
	d := filepath.Join(dir, surfaceSamples, "200")
	if err := os.MkdirAll(d, os.ModePerm); err != nil {
		t.Fatal(err)
	}
	if err := ioutil.WriteFile(filepath.Join(d, sampleRawFile), []byte(raw), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSanitizeCase(t *testing.T) {
	dir := t.TempDir()
	if _, err := SanitizeCase(dir); !errors.Is(err, ErrIO) {
		t.Errorf("error %v should be an i/o error", err)
	}
	writeRawSamples(t, dir, rawSamples)
	table, err := SanitizeCase(dir)
	if err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(table)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	pts, err := ReadSampledPoints(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(pts) != 3 {
		t.Errorf("have %d points, want 3", len(pts))
	}
	vrt, err := ioutil.ReadFile(filepath.Join(dir, sampledSchema))
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"<OGRVRTDataSource>", `encoding="PointFromColumns"`, `src="U_x"`, "CSV:" + table} {
		if !strings.Contains(string(vrt), s) {
			t.Errorf("schema is missing %s:\n%s", s, vrt)
		}
	}
}
