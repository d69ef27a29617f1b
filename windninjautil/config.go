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
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PeterTFS/windninja"
	"github.com/PeterTFS/windninja/cloud"
	"github.com/lnashier/viper"
	"github.com/spf13/cast"
)

// RunOptions converts the configuration in cfg into pipeline options.
// Environment variables in paths are expanded. Input and output
// locations in remote storage are left for Run to resolve.
func RunOptions(cfg *viper.Viper) (*windninja.Options, error) {
	o := &windninja.Options{
		TemplateDir:          os.ExpandEnv(cfg.GetString("TemplateDir")),
		TerrainFile:          os.ExpandEnv(cfg.GetString("TerrainFile")),
		SurfaceFile:          os.ExpandEnv(cfg.GetString("SurfaceFile")),
		CaseParent:           os.ExpandEnv(cfg.GetString("CaseDir")),
		OutputDir:            os.ExpandEnv(cfg.GetString("OutputDir")),
		Speed:                cfg.GetFloat64("Speed"),
		Direction:            cfg.GetFloat64("Direction"),
		InputHeight:          cfg.GetFloat64("InputHeight"),
		OutputHeight:         cfg.GetFloat64("OutputHeight"),
		Roughness:            cfg.GetFloat64("Roughness"),
		DisplacementHeight:   cfg.GetFloat64("DisplacementHeight"),
		TotalCells:           cfg.GetInt("TotalCells"),
		Iterations:           cfg.GetInt("Iterations"),
		NumProcs:             cfg.GetInt("NumProcs"),
		NonEquilibrium:       cfg.GetBool("NonEquilibrium"),
		Mode:                 windninja.RunMode(cfg.GetString("mode")),
		Gridding:             windninja.Gridding(cfg.GetString("Gridding")),
		KeepCase:             cfg.GetBool("KeepCase"),
		SpeedUnits:           windninja.SpeedUnits(cfg.GetString("SpeedUnits")),
		OutputBufferClipping: cfg.GetFloat64("OutputBufferClipping"),
	}
	if o.TerrainFile == "" {
		return nil, fmt.Errorf("windninjautil: you need to specify a terrain file (for example: TerrainFile=\"hill.asc\")")
	}
	if o.TemplateDir == "" {
		return nil, fmt.Errorf("windninjautil: you need to specify the case template directory (TemplateDir)")
	}
	if o.TotalCells <= 0 {
		return nil, fmt.Errorf("windninjautil: parsing configuration: TotalCells=%d but should be >0", o.TotalCells)
	}
	if o.Iterations <= 0 {
		return nil, fmt.Errorf("windninjautil: parsing configuration: Iterations=%d but should be >0", o.Iterations)
	}
	if o.NumProcs < 1 {
		return nil, fmt.Errorf("windninjautil: parsing configuration: NumProcs=%d but should be >0", o.NumProcs)
	}
	var err error
	if v := cfg.Get("StageTimeout"); v != nil {
		if o.StageTimeout, err = cast.ToDurationE(v); err != nil {
			return nil, fmt.Errorf("windninjautil: parsing configuration: StageTimeout: %v", err)
		}
	}

	// Speeds are configured in SpeedUnits but the pipeline works in m/s.
	units, err := windninja.ParseSpeedUnits(string(o.SpeedUnits))
	if err != nil {
		return nil, err
	}
	o.Speed = windninja.ToMetersPerSecond(o.Speed, units)

	vars, err := GetStringMapString("ShapefileVariables", cfg)
	if err != nil {
		return nil, err
	}
	if o.Writers, err = outputWriters(expandStringSlice(cfg.GetStringSlice("OutputFormats")), checkOutputVars(vars)); err != nil {
		return nil, err
	}
	return o, nil
}

// outputWriters returns the writers for the named output formats.
func outputWriters(formats []string, vars map[string]string) ([]windninja.OutputWriter, error) {
	var w []windninja.OutputWriter
	seen := make(map[string]bool)
	for _, f := range formats {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		switch f {
		case "ascii", "asc":
			w = append(w, windninja.ASCIIGridWriter{})
		case "netcdf", "nc":
			w = append(w, windninja.NetCDFWriter{})
		case "shapefile", "shp":
			w = append(w, windninja.ShapefileWriter{Variables: vars})
		default:
			return nil, fmt.Errorf("windninjautil: invalid output format '%s'; options are ascii, netcdf and shapefile", f)
		}
	}
	return w, nil
}

// checkOutputVars removes end lines and expands environment
// variables in the output variables.
func checkOutputVars(vars map[string]string) map[string]string {
	o := make(map[string]string, len(vars))
	for k, v := range vars {
		v = strings.Replace(v, "\r\n", " ", -1)
		v = strings.Replace(v, "\n", " ", -1)
		o[os.ExpandEnv(k)] = os.ExpandEnv(v)
	}
	return o
}

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// checkLogFile fills in a default value for the log file path if one isn't
// specified.
func checkLogFile(logFile, outputDir, terrainFile string) string {
	if logFile == "" {
		name := strings.TrimSuffix(filepath.Base(terrainFile), filepath.Ext(terrainFile)) + ".log"
		if cloud.IsBlob(outputDir) {
			return strings.TrimSuffix(outputDir, "/") + "/" + name
		}
		logFile = filepath.Join(outputDir, name)
	}
	return logFile
}

// GetStringMapString returns a map[string]string from a viper configuration,
// accounting for the fact that it might be a json object if it was set
// from a command line argument.
func GetStringMapString(varName string, cfg *viper.Viper) (map[string]string, error) {
	i := cfg.Get(varName)
	switch v := i.(type) {
	case nil:
		return nil, nil
	case map[string]string:
		return v, nil
	case map[string]interface{}:
		return cast.ToStringMapStringE(v)
	case string:
		o := make(map[string]string)
		if err := json.NewDecoder(bytes.NewBufferString(v)).Decode(&o); err != nil {
			return nil, fmt.Errorf("windninjautil: parsing %s: %v", varName, err)
		}
		return o, nil
	default:
		return nil, fmt.Errorf("windninjautil: invalid type for %s: %#v", varName, i)
	}
}
