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

package windninjautil

import (
	"io/ioutil"
	"math"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/PeterTFS/windninja"
	"github.com/kr/pretty"
	"github.com/lnashier/viper"
)

const testTemplateDir = "../testdata/ninjafoam"

const testTerrain = `ncols        4
nrows        3
xllcorner    500000
yllcorner    4000000
cellsize     100
NODATA_value -9999
1000 1010 1020 1030
995 1005 1015 1025
990 1000 1010 1020
`

// writeTerrain writes the test terrain to hill.asc in a new directory.
func writeTerrain(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hill.asc")
	if err := ioutil.WriteFile(path, []byte(testTerrain), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// testConfig returns a configuration holding the default value of every
// option.
func testConfig(t *testing.T) *viper.Viper {
	cfg := viper.New()
	for _, o := range options {
		cfg.Set(o.name, o.defaultVal)
	}
	cfg.Set("TemplateDir", testTemplateDir)
	cfg.Set("TerrainFile", writeTerrain(t))
	return cfg
}

func TestRunOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Set("SpeedUnits", "kph")
	cfg.Set("Speed", 36.0)
	cfg.Set("StageTimeout", "90s")
	cfg.Set("OutputFormats", []string{"ascii", "NetCDF", "shp", "ascii"})
	cfg.Set("ShapefileVariables", `{"gust": "speed * 1.5"}`)
	cfg.Set("OutputDir", "${WINDNINJA_TEST_OUT}/runs")
	t.Setenv("WINDNINJA_TEST_OUT", "/data")

	o, err := RunOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(o.Speed-10) > 1e-12 {
		t.Errorf("speed: have %g m/s, want 10", o.Speed)
	}
	if o.StageTimeout != 90*time.Second {
		t.Errorf("timeout: %v", o.StageTimeout)
	}
	if o.OutputDir != "/data/runs" {
		t.Errorf("output dir: %s", o.OutputDir)
	}
	if o.Direction != 270 || o.Iterations != 300 || o.TotalCells != 1000000 || o.Mode != windninja.ModeFull {
		t.Errorf("defaults: %+v", o)
	}
	want := []windninja.OutputWriter{
		windninja.ASCIIGridWriter{},
		windninja.NetCDFWriter{},
		windninja.ShapefileWriter{Variables: map[string]string{"gust": "speed * 1.5"}},
	}
	if !reflect.DeepEqual(o.Writers, want) {
		t.Errorf("writers: %v", pretty.Diff(o.Writers, want))
	}
	if _, err := windninja.NewPipeline(*o); err != nil {
		t.Errorf("options should be valid: %v", err)
	}
}

func TestRunOptionsInvalid(t *testing.T) {
	for name, set := range map[string][2]interface{}{
		"no terrain":   {"TerrainFile", ""},
		"no template":  {"TemplateDir", ""},
		"cells":        {"TotalCells", 0},
		"iterations":   {"Iterations", -3},
		"procs":        {"NumProcs", 0},
		"timeout":      {"StageTimeout", "soon"},
		"units":        {"SpeedUnits", "furlongs"},
		"format":       {"OutputFormats", []string{"kmz"}},
		"shp variable": {"ShapefileVariables", `{"gust": `},
	} {
		t.Run(name, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Set(set[0].(string), set[1])
			if _, err := RunOptions(cfg); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestGetStringMapString(t *testing.T) {
	cfg := viper.New()
	want := map[string]string{"speed": "speed", "dir": "direction"}
	for name, v := range map[string]interface{}{
		"json":      `{"speed": "speed", "dir": "direction"}`,
		"map":       want,
		"interface": map[string]interface{}{"speed": "speed", "dir": "direction"},
	} {
		cfg.Set("vars", v)
		have, err := GetStringMapString("vars", cfg)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if !reflect.DeepEqual(have, want) {
			t.Errorf("%s: have %v, want %v", name, have, want)
		}
	}
	cfg.Set("vars", 3)
	if _, err := GetStringMapString("vars", cfg); err == nil {
		t.Error("expected an error")
	}
}

func TestCheckLogFile(t *testing.T) {
	if have, want := checkLogFile("", "out", "/data/big_butte.asc"), filepath.Join("out", "big_butte.log"); have != want {
		t.Errorf("have %s, want %s", have, want)
	}
	if have, want := checkLogFile("", "gs://bucket/runs/", "big_butte.asc"), "gs://bucket/runs/big_butte.log"; have != want {
		t.Errorf("have %s, want %s", have, want)
	}
	if have := checkLogFile("run.log", "out", "/data/big_butte.asc"); have != "run.log" {
		t.Errorf("have %s, want run.log", have)
	}
}
