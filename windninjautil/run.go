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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/PeterTFS/windninja"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Run runs the case pipeline configured by opts.
//
// TerrainFile and SurfaceFile can be URLs or blob storage locations, in
// which case they are downloaded before the run starts. If OutputDir is a
// blob storage location, the outputs and the log file are written to a
// local staging directory and uploaded after the run.
//
// Log messages are written to the output of cmd and to logFile. If logFile
// is empty, it is named after the terrain file and placed in OutputDir.
func Run(ctx context.Context, cmd *cobra.Command, logFile string, opts *windninja.Options) (*windninja.Result, error) {
	startTime := time.Now()

	var upload uploader

	if opts.OutputDir == "" {
		if isRemote(opts.TerrainFile) {
			opts.OutputDir = "."
		} else {
			opts.OutputDir = filepath.Dir(opts.TerrainFile)
		}
	}
	logFile = upload.maybeUpload(checkLogFile(logFile, opts.OutputDir, opts.TerrainFile))
	opts.OutputDir = upload.maybeUploadDir(opts.OutputDir)
	if upload.err != nil {
		return nil, fmt.Errorf("windninjautil: staging outputs: %v", upload.err)
	}

	if err := os.MkdirAll(filepath.Dir(logFile), os.ModePerm); err != nil {
		return nil, fmt.Errorf("windninjautil: problem creating log file directory: %v", err)
	}
	logfile, err := os.Create(logFile)
	if err != nil {
		return nil, fmt.Errorf("windninjautil: problem creating log file: %v", err)
	}
	mw := io.MultiWriter(cmd.OutOrStdout(), logfile)
	log.SetOutput(mw)
	logger := logrus.New()
	logger.Out = mw
	logger.Formatter = &logrus.TextFormatter{
		DisableColors:  true,
		FullTimestamp:  true,
		DisableSorting: true,
	}
	defer log.SetOutput(os.Stderr)

	res, runErr := run(ctx, logger, opts)
	if runErr != nil {
		log.Printf("Run failed after %v: %v", time.Since(startTime).Round(time.Second), runErr)
	} else {
		upload.add(res.Outputs...)
		for _, f := range res.Outputs {
			log.Printf("Wrote %s", f)
		}
		log.Printf("Run %s finished in %v.", res.Run, time.Since(startTime).Round(time.Second))
	}
	if err := logfile.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("windninjautil: closing log file: %v", err)
	}
	if err := upload.upload(ctx); err != nil && runErr == nil {
		runErr = err
	}
	if runErr != nil {
		return nil, runErr
	}
	return res, nil
}

func run(ctx context.Context, logger logrus.FieldLogger, opts *windninja.Options) (*windninja.Result, error) {
	var err error
	if opts.TerrainFile, err = maybeDownload(ctx, opts.TerrainFile); err != nil {
		return nil, err
	}
	if opts.SurfaceFile, err = maybeDownload(ctx, opts.SurfaceFile); err != nil {
		return nil, err
	}
	p, err := windninja.NewPipeline(*opts)
	if err != nil {
		return nil, err
	}
	p.Log = logger
	o := p.Options()
	log.Printf("WindNinja v%s: %s, %.2f m/s from %g° at %g m, %d cells, %d processes, mode %s",
		windninja.Version, filepath.Base(o.TerrainFile), o.Speed, o.Direction, o.InputHeight,
		o.TotalCells, o.NumProcs, o.Mode)
	return p.Run(ctx)
}

// Plan writes to w the inlet faces, boundary conditions and block mesh
// sizing a run with opts would use. It does not create a case or run
// any tools.
func Plan(ctx context.Context, w io.Writer, opts *windninja.Options) error {
	var err error
	if opts.TerrainFile, err = maybeDownload(ctx, opts.TerrainFile); err != nil {
		return err
	}
	p, err := windninja.NewPipeline(*opts)
	if err != nil {
		return err
	}
	o := p.Options()
	t, err := windninja.ReadTerrain(o.TerrainFile)
	if err != nil {
		return err
	}
	inlets, err := windninja.SetInlets(o.Direction)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "Terrain:\t%s (%d x %d cells of %g m)\n", t.Name, t.Nx, t.Ny, t.CellSize)
	fmt.Fprintf(tw, "Wind:\t%.2f m/s from %g°, direction vector %s\n", o.Speed, o.Direction,
		windninja.ComputeDirectionVector(o.Direction))
	fmt.Fprintf(tw, "Inlets:\t%v\n", inlets)
	if o.SurfaceFile != "" {
		fmt.Fprintf(tw, "Mesh:\tsized from the surface check of %s\n", o.SurfaceFile)
	} else {
		s, err := windninja.SizeFromTerrain(t, o.TotalCells)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "Mesh:\t%d x %d x %d cells, first cell height %.2f m\n", s.NX, s.NY, s.NZ, s.FirstCellHeight)
		fmt.Fprintf(tw, "Domain:\t(%g %g %g) (%g %g %g)\n", s.Box.XMin, s.Box.YMin, s.Box.ZMin, s.Box.XMax, s.Box.YMax, s.Box.ZMax)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "Field\tFace\tType\tFragment")
	for _, field := range windninja.SolvedFields {
		bcs, err := windninja.PlanFieldBoundaryConditions(field, inlets)
		if err != nil {
			return err
		}
		for _, bc := range bcs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", bc.Field, bc.Face, bc.Type, bc.TemplateName())
		}
	}
	return tw.Flush()
}
