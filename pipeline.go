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
	"errors"
	"fmt"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Version is the version of WindNinja.
const Version = "3.5.0"

// initialEndTime is the end time of the solver control dictionary
// before the iteration count is applied.
const initialEndTime = 1000

// Options configures a pipeline run.
type Options struct {
	// TemplateDir is the case template tree.
	TemplateDir string

	// TerrainFile is the elevation model, in ESRI ASCII grid or
	// netCDF format.
	TerrainFile string

	// SurfaceFile is an optional STL surface used instead of the one
	// generated from the terrain. The mesh is then sized from the
	// surface check of this file.
	SurfaceFile string

	// CaseParent is the directory in which the case directory is created.
	// It defaults to the directory of TerrainFile.
	CaseParent string

	// OutputDir receives the output files. It defaults to the directory
	// of TerrainFile.
	OutputDir string

	// Speed [m/s] and Direction [degrees from north] of the inlet wind
	// at InputHeight [m] above the ground.
	Speed, Direction, InputHeight float64

	// OutputHeight is the height [m] above the ground of the sampled
	// output surface.
	OutputHeight float64

	// Roughness [m] and DisplacementHeight [m] of the ground.
	Roughness, DisplacementHeight float64

	TotalCells     int
	Iterations     int
	NumProcs       int
	NonEquilibrium bool

	Mode     RunMode
	Gridding Gridding

	// KeepCase retains the case directory after the run, whether or not
	// it succeeds.
	KeepCase bool

	// StageTimeout limits the run time of each external tool. Zero means
	// no limit.
	StageTimeout time.Duration

	SpeedUnits SpeedUnits

	// OutputBufferClipping is the percentage of the output grid removed
	// from each edge.
	OutputBufferClipping float64

	// Writers write the final grids. If empty, only the run summary
	// is written.
	Writers []OutputWriter

	Progress ProgressFunc
}

// validate checks o and fills in defaults.
func (o *Options) validate() error {
	var err error
	if o.TemplateDir == "" {
		return configError(fmt.Errorf("windninja: TemplateDir must be set"))
	}
	if o.TerrainFile == "" {
		return configError(fmt.Errorf("windninja: TerrainFile must be set"))
	}
	if o.TotalCells <= 0 {
		return configError(fmt.Errorf("windninja: TotalCells=%d but should be >0", o.TotalCells))
	}
	if o.Iterations <= 0 {
		return configError(fmt.Errorf("windninja: Iterations=%d but should be >0", o.Iterations))
	}
	if o.NumProcs < 0 {
		return configError(fmt.Errorf("windninja: NumProcs=%d but should be >=0", o.NumProcs))
	}
	if o.NumProcs == 0 {
		o.NumProcs = 1
	}
	if o.Speed < 0 || math.IsNaN(o.Speed) {
		return configError(fmt.Errorf("windninja: Speed=%g but should be >=0", o.Speed))
	}
	if o.Direction < 0 || o.Direction > 360 || math.IsNaN(o.Direction) {
		return configError(fmt.Errorf("windninja: Direction=%g but should be between 0 and 360", o.Direction))
	}
	if !(o.InputHeight > 0) {
		return configError(fmt.Errorf("windninja: InputHeight=%g but should be >0", o.InputHeight))
	}
	if !(o.OutputHeight > 0) {
		return configError(fmt.Errorf("windninja: OutputHeight=%g but should be >0", o.OutputHeight))
	}
	if !(o.Roughness > 0) {
		return configError(fmt.Errorf("windninja: Roughness=%g but should be >0", o.Roughness))
	}
	if o.DisplacementHeight < 0 {
		return configError(fmt.Errorf("windninja: DisplacementHeight=%g but should be >=0", o.DisplacementHeight))
	}
	if o.OutputBufferClipping < 0 || o.OutputBufferClipping >= 50 {
		return configError(fmt.Errorf("windninja: OutputBufferClipping=%g but should be in [0, 50)", o.OutputBufferClipping))
	}
	if o.StageTimeout < 0 {
		return configError(fmt.Errorf("windninja: StageTimeout=%v but should be >=0", o.StageTimeout))
	}
	if o.Mode, err = ParseRunMode(string(o.Mode)); err != nil {
		return err
	}
	if o.Gridding, err = ParseGridding(string(o.Gridding)); err != nil {
		return err
	}
	if o.SpeedUnits, err = ParseSpeedUnits(string(o.SpeedUnits)); err != nil {
		return err
	}
	if o.CaseParent == "" {
		o.CaseParent = filepath.Dir(o.TerrainFile)
	}
	if o.OutputDir == "" {
		o.OutputDir = filepath.Dir(o.TerrainFile)
	}
	return nil
}

// Pipeline runs a case from templates to output grids.
type Pipeline struct {
	opts    Options
	builder *CaseBuilder

	// Log receives stage events. It defaults to the standard logger.
	Log logrus.FieldLogger
}

// NewPipeline validates opts and returns a pipeline that runs them.
func NewPipeline(opts Options) (*Pipeline, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	b, err := NewCaseBuilder(opts.TemplateDir)
	if err != nil {
		return nil, err
	}
	return &Pipeline{opts: opts, builder: b, Log: logrus.StandardLogger()}, nil
}

// Options returns the validated options of p.
func (p *Pipeline) Options() Options { return p.opts }

// Result is the outcome of a run.
type Result struct {
	// Run identifies the run in logs and the run summary.
	Run string

	// CaseDir is the case directory. It only exists after the run if
	// Retained is true.
	CaseDir  string
	Retained bool

	Terrain *Terrain
	Inlets  InletSet
	Sizing  *MeshSizing

	// Cells is the final mesh size reported by the mesh check.
	Cells int

	// Speed and Direction are nil unless the run reached the
	// rasterization stage.
	Speed, Direction *OutputGrid

	// Outputs are the files written by the output writers and
	// the run summary.
	Outputs []string

	Timings []StageTiming
}

// caseRun is the state of a single run.
type caseRun struct {
	*Result
	opts    *Options
	builder *CaseBuilder
	runner  *Runner
	log     logrus.FieldLogger
	flow    FlowParams
	u, v    *OutputGrid
}

func (r *caseRun) surface(suffix string) string {
	return filepath.Join(r.CaseDir, triSurfaceDir, r.Terrain.Name+suffix+".stl")
}

type stageFunc func(ctx context.Context, r *caseRun) error

type stageStep struct {
	stage Stage
	run   stageFunc

	// skip, if set, reports whether the step does not apply to a run.
	skip func(r *caseRun) bool
}

func singleProc(r *caseRun) bool { return r.opts.NumProcs <= 1 }
func noSurface(r *caseRun) bool { return r.opts.SurfaceFile == "" }

// steps returns the pipeline stages in the order in which they run.
func steps() []stageStep {
	return []stageStep{
		{stage: Init, run: initCase},
		{stage: RenderCase, run: renderCase},
		{stage: ConvertGeometryToSurface, run: convertSurface},
		{stage: TransformOutputHeightCopy, run: transformOutputHeight},
		{stage: GeometryCheck, run: checkGeometry, skip: noSurface},
		{stage: RenderMesh, run: renderMesh},
		{stage: TransformDisplacementCopy, run: transformDisplacement},
		{stage: BlockMesh, run: tool(Tool{Name: "blockMesh"})},
		{stage: Decompose, run: tool(Tool{Name: "decomposePar", Args: []string{"-force"}})},
		{stage: SnapMesh, run: tool(Tool{Name: "snappyHexMesh", Args: []string{"-overwrite"}, Parallel: true})},
		{stage: ExtrudeMesh, run: extrudeMesh},
		{stage: RenumberMesh, run: tool(Tool{Name: "renumberMesh", Args: []string{"-latestTime", "-overwrite"}, Parallel: true})},
		{stage: CheckMesh, run: checkMesh},
		{stage: ApplyInitialConditions, run: tool(Tool{Name: "applyInit"})},
		{stage: Decompose, run: tool(Tool{Name: "decomposePar", Args: []string{"-force"}, LogName: "log.decomposePar.solve"}), skip: singleProc},
		{stage: Solve, run: solve},
		{stage: Reconstruct, run: tool(Tool{Name: "reconstructPar", Args: []string{"-latestTime"}}), skip: singleProc},
		{stage: Sample, run: tool(Tool{Name: "sample", Args: []string{"-latestTime"}})},
		{stage: Rasterize, run: rasterize},
		{stage: WriteFinalOutputs, run: writeFinalOutputs},
	}
}

// Run executes the pipeline. If a stage fails the returned error is a
// *StageError, and the case directory is removed unless KeepCase is set.
// In a mode other than ModeFull the run stops after the mode's last stage
// and the case directory is retained.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	id := uuid.New().String()
	r := &caseRun{
		Result:  &Result{Run: id},
		opts:    &p.opts,
		builder: p.builder,
		log:     p.Log.WithField("run", id),
	}
	last := p.opts.Mode.last()
	for _, s := range steps() {
		if s.skip != nil && s.skip(r) {
			r.log.WithField("stage", s.stage).Debug("skipping stage")
		} else if err := p.runStage(ctx, r, s.stage, s.run); err != nil {
			return nil, p.fail(r, s.stage, err)
		}
		if s.stage == last && p.opts.Mode != ModeFull {
			r.Retained = true
			r.log.WithFields(logrus.Fields{"mode": p.opts.Mode, "case": r.CaseDir}).Info("stopping at checkpoint")
			return r.Result, nil
		}
	}
	if err := p.runStage(ctx, r, Cleanup, cleanup); err != nil {
		return nil, p.fail(r, Cleanup, err)
	}
	return r.Result, nil
}

func (p *Pipeline) runStage(ctx context.Context, r *caseRun, s Stage, f stageFunc) error {
	if err := ctx.Err(); err != nil {
		return cancelError(err)
	}
	log := r.log.WithField("stage", s)
	log.Info("starting stage")
	start := time.Now()
	if err := f(ctx, r); err != nil {
		return err
	}
	elapsed := time.Since(start)
	r.Timings = append(r.Timings, StageTiming{Stage: s.String(), Seconds: elapsed.Seconds()})
	log.WithField("elapsed", elapsed).Info("finished stage")
	return nil
}

// fail logs the failure of stage s, removes the case directory unless it
// is to be kept, and returns the error to report.
func (p *Pipeline) fail(r *caseRun, s Stage, err error) error {
	var se *StageError
	if !errors.As(err, &se) {
		se = &StageError{Stage: s, Err: err}
	}
	r.log.WithFields(logrus.Fields{"stage": s, "kind": se.Kind()}).WithError(err).Error("stage failed")
	if r.CaseDir != "" && !p.opts.KeepCase {
		if rerr := os.RemoveAll(r.CaseDir); rerr != nil {
			r.log.WithError(rerr).Warn("failed removing case directory")
		}
	}
	return se
}

// tool returns a stage that runs t.
func tool(t Tool) stageFunc {
	return func(ctx context.Context, r *caseRun) error {
		return r.runner.Run(ctx, t)
	}
}

func initCase(ctx context.Context, r *caseRun) error {
	t, err := ReadTerrain(r.opts.TerrainFile)
	if err != nil {
		return err
	}
	r.Terrain = t
	if r.Inlets, err = SetInlets(r.opts.Direction); err != nil {
		return err
	}
	r.flow = FlowParams{
		Speed:              r.opts.Speed,
		Direction:          ComputeDirectionVector(r.opts.Direction),
		InputHeight:        r.opts.InputHeight,
		Roughness:          r.opts.Roughness,
		DisplacementHeight: r.opts.DisplacementHeight,
	}
	if r.CaseDir, err = NewCaseDirectory(r.opts.CaseParent); err != nil {
		return err
	}
	r.runner = NewRunner(r.CaseDir, r.opts.NumProcs, r.log)
	r.runner.EndTime = float64(r.opts.Iterations)
	r.runner.Timeout = r.opts.StageTimeout
	r.runner.Progress = r.opts.Progress
	r.log.WithFields(logrus.Fields{"case": r.CaseDir, "inlets": fmt.Sprint(r.Inlets)}).Info("created case directory")
	return nil
}

func renderCase(ctx context.Context, r *caseRun) error {
	return r.builder.Build(r.CaseDir, CaseParams{
		Inlets:         r.Inlets,
		Flow:           r.flow,
		NonEquilibrium: r.opts.NonEquilibrium,
		NumProcs:       r.opts.NumProcs,
		Iterations:     r.opts.Iterations,
		SurfaceName:    r.Terrain.Name,
	})
}

func convertSurface(ctx context.Context, r *caseRun) error {
	if r.opts.SurfaceFile != "" {
		_, err := ImportSurface(r.CaseDir, r.opts.SurfaceFile, r.Terrain.Name)
		return err
	}
	return WriteSTLFile(r.surface(""), r.Terrain)
}

// translate copies the terrain surface, raised by dz, to dst.
func translate(ctx context.Context, r *caseRun, dz float64, dst string) error {
	return r.runner.Run(ctx, Tool{
		Name: "surfaceTransformPoints",
		Args: []string{
			"-translate", fmt.Sprintf("(%.0f %.0f %.0f)", 0.0, 0.0, dz),
			r.surface(""), dst,
		},
		LogName: "surfaceTransformPoints.log",
	})
}

func transformOutputHeight(ctx context.Context, r *caseRun) error {
	return translate(ctx, r, r.opts.OutputHeight, r.surface("_out"))
}

func transformDisplacement(ctx context.Context, r *caseRun) error {
	return translate(ctx, r, BlockMeshDz, filepath.Join(r.CaseDir, triSurfaceDir, "ground.stl"))
}

// geometryLog is the surface check output used to size the mesh.
const geometryLog = "log.json"

func checkGeometry(ctx context.Context, r *caseRun) error {
	return r.runner.Run(ctx, Tool{
		Name:    "surfaceCheck",
		Args:    []string{r.surface("")},
		LogName: geometryLog,
	})
}

func renderMesh(ctx context.Context, r *caseRun) error {
	if r.opts.SurfaceFile != "" {
		f, err := os.Open(filepath.Join(r.CaseDir, geometryLog))
		if err != nil {
			return ioError(fmt.Errorf("windninja: opening surface check log: %w", err))
		}
		defer f.Close()
		if r.Sizing, err = SizeFromGeometryLog(f, r.opts.TotalCells); err != nil {
			return err
		}
	} else {
		var err error
		if r.Sizing, err = SizeFromTerrain(r.Terrain, r.opts.TotalCells); err != nil {
			return err
		}
		if err := PatchFirstCellHeight(r.CaseDir, r.Sizing.FirstCellHeight); err != nil {
			return err
		}
	}
	r.log.WithFields(logrus.Fields{
		"nx": r.Sizing.NX, "ny": r.Sizing.NY, "nz": r.Sizing.NZ,
		"firstCellHeight": r.Sizing.FirstCellHeight,
	}).Info("sized block mesh")
	return r.builder.WriteBlockMesh(r.CaseDir, r.Sizing)
}

func extrudeMesh(ctx context.Context, r *caseRun) error {
	if err := SetFoamCase(r.CaseDir); err != nil {
		return err
	}
	return r.runner.Run(ctx, Tool{Name: "extrudeMesh"})
}

const checkMeshLog = "log.checkmesh"

func checkMesh(ctx context.Context, r *caseRun) error {
	if err := r.runner.Run(ctx, Tool{Name: "checkMesh", Args: []string{"-latestTime"}, LogName: checkMeshLog}); err != nil {
		return err
	}
	b, err := ioutil.ReadFile(filepath.Join(r.CaseDir, checkMeshLog))
	if err != nil {
		return ioError(fmt.Errorf("windninja: reading mesh check log: %w", err))
	}
	if n, ok := CellCount(b); ok {
		r.Cells = n
		r.log.WithField("cells", n).Info("checked mesh")
	}
	return nil
}

func solve(ctx context.Context, r *caseRun) error {
	if err := UpdateEndTime(r.CaseDir, initialEndTime, r.opts.Iterations); err != nil {
		return err
	}
	return r.runner.Run(ctx, Tool{Name: "simpleFoam", Parallel: true, Progress: true})
}

func rasterize(ctx context.Context, r *caseRun) error {
	table, err := SanitizeCase(r.CaseDir)
	if err != nil {
		return err
	}
	f, err := os.Open(table)
	if err != nil {
		return ioError(fmt.Errorf("windninja: opening sample table: %w", err))
	}
	pts, err := ReadSampledPoints(f)
	f.Close()
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"points": len(pts), "gridding": r.opts.Gridding}).Info("gridding samples")
	if r.u, r.v, err = r.opts.Gridding.Rasterizer().Rasterize(ctx, pts, r.Terrain.Grid()); err != nil {
		return err
	}
	r.Speed, r.Direction, err = SpeedDirection(r.u, r.v)
	return err
}

func writeFinalOutputs(ctx context.Context, r *caseRun) error {
	clip := r.opts.OutputBufferClipping / 100
	o := &Output{
		Base:  OutputBaseName(r.opts.OutputDir, r.Terrain, r.opts.Direction, r.opts.Speed),
		Units: r.opts.SpeedUnits,
	}
	for _, g := range []struct {
		dst **OutputGrid
		src *OutputGrid
	}{{&o.Speed, r.Speed}, {&o.Direction, r.Direction}, {&o.U, r.u}, {&o.V, r.v}} {
		c, err := g.src.Clip(clip)
		if err != nil {
			return err
		}
		*g.dst = c
	}
	o.Speed = ConvertSpeed(o.Speed, o.Units)
	if err := os.MkdirAll(r.opts.OutputDir, os.ModePerm); err != nil {
		return ioError(fmt.Errorf("windninja: creating output directory: %w", err))
	}
	r.Outputs = writeOutputs(r.log, o, r.opts.Writers)

	inlets := make([]string, len(r.Inlets))
	for i, f := range r.Inlets {
		inlets[i] = f.String()
	}
	path := o.Base + ".toml"
	err := WriteSummary(path, &Summary{
		Run:        r.Run,
		Finished:   time.Now().UTC().Truncate(time.Second),
		Terrain:    r.opts.TerrainFile,
		Mode:       r.opts.Mode,
		Speed:      r.opts.Speed,
		Direction:  r.opts.Direction,
		SpeedUnits: r.opts.SpeedUnits,
		Iterations: r.opts.Iterations,
		NumProcs:   r.opts.NumProcs,
		Inlets:     inlets,
		Cells:      r.Cells,
		MeanSpeed:  o.Speed.Mean(),
		Outputs:    r.Outputs,
		Mesh:       r.Sizing,
		Stages:     r.Timings,
	})
	if err != nil {
		r.log.WithError(err).Warn("failed writing run summary")
		return nil
	}
	r.Outputs = append(r.Outputs, path)
	return nil
}

func cleanup(ctx context.Context, r *caseRun) error {
	if r.opts.KeepCase {
		r.Retained = true
		return nil
	}
	if err := os.RemoveAll(r.CaseDir); err != nil {
		return ioError(fmt.Errorf("windninja: removing case directory: %w", err))
	}
	return nil
}
