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

// Package windninjautil contains the command-line interface of the
// WindNinja momentum solver pipeline.
package windninjautil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/PeterTFS/windninja"
	"github.com/lnashier/viper"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to WindNinja.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "TemplateDir",
			usage: `
              TemplateDir is the directory holding the case templates (the 0,
              system and constant directories and the boundary fragments).
              It can include environment variables.`,
			defaultVal: "${WINDNINJA_DATA}/ninjafoam",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "TerrainFile",
			usage: `
              TerrainFile is the path to the elevation model, in ESRI ASCII
              grid (.asc) or netCDF (.nc) format. It can include environment
              variables and can be a URL or a blob storage location
              (gs://, s3:// or file://).`,
			shorthand:  "t",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "SurfaceFile",
			usage: `
              SurfaceFile is an optional STL terrain surface to use instead
              of the one generated from TerrainFile. If it is set, the mesh is
              sized from a surface check of this file.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "CaseDir",
			usage: `
              CaseDir is the directory in which the case directory is
              created. The default is the directory of TerrainFile.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputDir",
			usage: `
              OutputDir is the directory the output files are written to.
              It can be a blob storage location, in which case the outputs
              are uploaded when the run finishes. The default is the
              directory of TerrainFile.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputFormats",
			usage: `
              OutputFormats lists the output file formats to write. Options
              are "ascii", "netcdf" and "shapefile".`,
			defaultVal: []string{"ascii"},
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "ShapefileVariables",
			usage: `
              ShapefileVariables maps shapefile field names to expressions of
              the variables speed, direction, u and v. Field names must be at
              most 10 characters long.`,
			defaultVal: windninja.DefaultShapefileVariables,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "LogFile",
			usage: `
              LogFile is the path to the desired logfile location. It can
              include environment variables. If LogFile is left blank,
              the logfile will be saved in OutputDir with the name of the
              terrain file and the extension .log.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Speed",
			usage: `
              Speed is the speed of the incoming wind at InputHeight, in
              SpeedUnits.`,
			defaultVal: 5.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "SpeedUnits",
			usage: `
              SpeedUnits are the units of Speed and of the output speeds.
              Options are "mps", "mph", "kph" and "kts".`,
			defaultVal: "mps",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "Direction",
			usage: `
              Direction is the direction the wind blows from, in degrees
              clockwise from north.`,
			shorthand:  "d",
			defaultVal: 270.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "InputHeight",
			usage: `
              InputHeight is the height above the ground [m] of the
              incoming wind speed.`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "OutputHeight",
			usage: `
              OutputHeight is the height above the ground [m] at which the
              output wind is sampled.`,
			defaultVal: 10.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Roughness",
			usage: `
              Roughness is the aerodynamic roughness length [m] of the
              ground.`,
			defaultVal: 0.01,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "DisplacementHeight",
			usage: `
              DisplacementHeight is the zero-plane displacement height [m]
              of the vegetation.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "TotalCells",
			usage: `
              TotalCells is the target number of cells in the final mesh.`,
			defaultVal: 1000000,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "Iterations",
			usage: `
              Iterations is the number of solver iterations.`,
			defaultVal: 300,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), planCmd.Flags()},
		},
		{
			name: "NumProcs",
			usage: `
              NumProcs is the number of processes the mesh is decomposed
              into. The parallel tools run under mpiexec if it is greater
              than 1.`,
			shorthand:  "n",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "NonEquilibrium",
			usage: `
              NonEquilibrium selects non-equilibrium wall functions for the
              turbulence fields.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "mode",
			usage: `
              mode selects where the run stops. Options are "surfaces",
              "dicts", "mesh" and "full". Runs that stop before the end
              keep their case directory.`,
			shorthand:  "m",
			defaultVal: "full",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Gridding",
			usage: `
              Gridding is the algorithm used to grid the sampled velocities.
              Options are "direct" and "nearest".`,
			defaultVal: "direct",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "KeepCase",
			usage: `
              KeepCase keeps the case directory after the run.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "StageTimeout",
			usage: `
              StageTimeout limits the run time of each external tool, for
              example "2h". "0" means no limit.`,
			defaultVal: "0",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "OutputBufferClipping",
			usage: `
              OutputBufferClipping is the percentage of the output grid to
              remove from each edge.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("WINDNINJA")
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(planCmd)
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(os.ExpandEnv(cfgpath))
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("windninjautil: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "windninja",
	Short: "A terrain wind model driven by a momentum solver.",
	Long: `windninja computes the surface wind over complex terrain by building
and running a momentum solver case for a single inlet wind speed and
direction, then gridding the sampled wind onto the terrain.
Use the subcommands specified below to access the model functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'WINDNINJA_var' where 'var' is the
name of the variable to be set. Many configuration variables are additionally
allowed to contain environment variables within them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of WindNinja.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("WindNinja v%s\n", windninja.Version)
	},
	DisableAutoGenTag: true,
}

// runCmd is a command that runs the case pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the model.",
	Long: `run builds a solver case from the templates in TemplateDir for the
terrain in TerrainFile, runs the meshing and solver tools, and writes the
gridded surface wind to OutputDir. The external tools must be on the PATH.
Interrupting the command stops the running tool and removes the case
directory unless KeepCase is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts, err := RunOptions(Cfg)
		if err != nil {
			return err
		}
		_, err = Run(ctx, cmd, os.ExpandEnv(Cfg.GetString("LogFile")), opts)
		return err
	},
	DisableAutoGenTag: true,
}

// planCmd is a command that prints the boundary conditions and mesh
// sizing of a run without running any tools.
var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Print the case plan.",
	Long: `plan prints the inlet faces, the boundary conditions of each face and
the block mesh sizing that run would use, without creating a case
directory or running any tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := RunOptions(Cfg)
		if err != nil {
			return err
		}
		return Plan(context.Background(), cmd.OutOrStdout(), opts)
	},
	DisableAutoGenTag: true,
}
