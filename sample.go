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
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctessum/geom"
)

const (
	sampleRawFile   = "U_triSurfaceSampling.raw"
	sampledTable    = "output.raw"
	sampledSchema   = "output.vrt"
	surfaceSamples  = "postProcessing/surfaces"
	sampledLayer    = "output"
	maxCommaColumns = 5
)

// SampledPoint is a velocity sample at a point on the output surface.
type SampledPoint struct {
	geom.Point
	U, V float64
}

// Sanitize converts the raw surface sampling output in r into a comma
// separated table with the header "x,y,z,U_x,U_y,U_z".
func Sanitize(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)
	bw := bufio.NewWriter(w)
	// Title line.
	if _, err := br.ReadString('\n'); err != nil {
		return ioError(fmt.Errorf("windninja: reading sample title: %w", err))
	}
	header, err := br.ReadString('\n')
	if err != nil && (err != io.EOF || header == "") {
		return ioError(fmt.Errorf("windninja: reading sample header: %w", err))
	}
	header = ReplaceAll(header, "#", "", 1)
	header = ReplaceAll(header, "  ", "", 1)
	header = ReplaceAll(header, "  ", ",", maxCommaColumns)
	header = ReplaceAll(header, "  ", "", 1)
	bw.WriteString(strings.TrimRight(header, " \t\r\n"))
	bw.WriteByte('\n')
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			line = strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(line) != "" {
				bw.WriteString(ReplaceAll(line, " ", ",", maxCommaColumns))
				bw.WriteByte('\n')
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return ioError(fmt.Errorf("windninja: reading samples: %w", err))
		}
	}
	if err := bw.Flush(); err != nil {
		return ioError(fmt.Errorf("windninja: writing samples: %w", err))
	}
	return nil
}

// SanitizeCase sanitizes the surface sampling output of the case in
// caseDir, writing the table and its schema descriptor into caseDir. It
// returns the path of the table.
func SanitizeCase(caseDir string) (string, error) {
	raw, err := sampleRawPath(caseDir)
	if err != nil {
		return "", err
	}
	in, err := os.Open(raw)
	if err != nil {
		return "", ioError(fmt.Errorf("windninja: opening samples: %w", err))
	}
	defer in.Close()
	table := filepath.Join(caseDir, sampledTable)
	out, err := os.Create(table)
	if err != nil {
		return "", ioError(fmt.Errorf("windninja: creating sample table: %w", err))
	}
	if err := Sanitize(in, out); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", ioError(fmt.Errorf("windninja: writing sample table: %w", err))
	}
	if err := writeSampleSchema(filepath.Join(caseDir, sampledSchema), table); err != nil {
		return "", err
	}
	return table, nil
}

// sampleRawPath returns the sampling output of the first sampled
// time in the case.
func sampleRawPath(caseDir string) (string, error) {
	dir := filepath.Join(caseDir, surfaceSamples)
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return "", ioError(fmt.Errorf("windninja: listing sample output: %w", err))
	}
	for _, e := range entries {
		if e.IsDir() {
			return filepath.Join(dir, e.Name(), sampleRawFile), nil
		}
	}
	return "", ioError(fmt.Errorf("windninja: no sample output in %s", dir))
}

type vrtField struct {
	Name string `xml:"name,attr"`
	Src  string `xml:"src,attr"`
	Type string `xml:"type,attr"`
}

type vrtGeometry struct {
	Encoding string `xml:"encoding,attr"`
	X        string `xml:"x,attr"`
	Y        string `xml:"y,attr"`
}

type vrtLayer struct {
	Name          string      `xml:"name,attr"`
	SrcDataSource string      `xml:"SrcDataSource"`
	SrcLayer      string      `xml:"SrcLayer"`
	GeometryType  string      `xml:"GeometryType"`
	GeometryField vrtGeometry `xml:"GeometryField"`
	Fields        []vrtField  `xml:"Field"`
}

type vrtDataSource struct {
	XMLName xml.Name `xml:"OGRVRTDataSource"`
	Layer   vrtLayer `xml:"OGRVRTLayer"`
}

// writeSampleSchema writes a virtual vector layer descriptor exposing
// the sample table as points with U and V fields.
func writeSampleSchema(path, table string) error {
	ds := vrtDataSource{Layer: vrtLayer{
		Name:          sampledLayer,
		SrcDataSource: "CSV:" + table,
		SrcLayer:      sampledLayer,
		GeometryType:  "wkbPoint",
		GeometryField: vrtGeometry{Encoding: "PointFromColumns", X: "x", Y: "y"},
		Fields: []vrtField{
			{Name: "U", Src: "U_x", Type: "Real"},
			{Name: "V", Src: "U_y", Type: "Real"},
		},
	}}
	b, err := xml.MarshalIndent(ds, "", "  ")
	if err != nil {
		return ioError(fmt.Errorf("windninja: encoding sample schema: %w", err))
	}
	if err := ioutil.WriteFile(path, append(b, '\n'), 0644); err != nil {
		return ioError(fmt.Errorf("windninja: writing sample schema: %w", err))
	}
	return nil
}

// ReadSampledPoints reads a sanitized sample table.
func ReadSampledPoints(r io.Reader) ([]SampledPoint, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if err != nil {
		return nil, ioError(fmt.Errorf("windninja: reading sample table header: %w", err))
	}
	col := make(map[string]int)
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	var idx [4]int
	for i, name := range []string{"x", "y", "U_x", "U_y"} {
		j, ok := col[name]
		if !ok {
			return nil, ioError(fmt.Errorf("windninja: sample table is missing column %q", name))
		}
		idx[i] = j
	}
	var pts []SampledPoint
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, ioError(fmt.Errorf("windninja: reading sample table: %w", err))
		}
		var v [4]float64
		for i, j := range idx {
			if j >= len(rec) {
				return nil, ioError(fmt.Errorf("windninja: sample table line %d has %d columns", line, len(rec)))
			}
			v[i], err = strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, ioError(fmt.Errorf("windninja: sample table line %d: %w", line, err))
			}
		}
		pts = append(pts, SampledPoint{Point: geom.Point{X: v[0], Y: v[1]}, U: v[2], V: v[3]})
	}
	return pts, nil
}
