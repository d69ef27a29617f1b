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
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Case template categories.
const (
	zeroDir     = "0"
	systemDir   = "system"
	constantDir = "constant"
)

// Case file locations, relative to the case directory.
var (
	blockMeshDictPath     = filepath.Join(constantDir, "polyMesh", "blockMeshDict")
	triSurfaceDir         = filepath.Join(constantDir, "triSurface")
	controlDictPath       = filepath.Join(systemDir, "controlDict")
	solverControlDictPath = filepath.Join(systemDir, "controlDict_simpleFoam")
	extrudeMeshDictPath   = filepath.Join(systemDir, "extrudeMeshDict")
)

// NewCaseDirectory creates a new, uniquely named case directory
// inside parent.
func NewCaseDirectory(parent string) (string, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	dir, err := ioutil.TempDir(parent, "NINJAFOAM_")
	if err != nil {
		return "", ioError(fmt.Errorf("windninja: creating case directory: %w", err))
	}
	return dir, nil
}

// CaseParams are the run-specific values written into the case files.
type CaseParams struct {
	Inlets         InletSet
	Flow           FlowParams
	NonEquilibrium bool
	NumProcs       int
	Iterations     int

	// SurfaceName is the base name of the terrain surface file.
	SurfaceName string
}

// CaseBuilder renders a case template tree into case directories.
type CaseBuilder struct {
	// TemplateDir holds the 0, system and constant template directories
	// and the boundary block fragments.
	TemplateDir string
}

// NewCaseBuilder checks that templateDir is a case template tree.
func NewCaseBuilder(templateDir string) (*CaseBuilder, error) {
	for _, d := range []string{zeroDir, systemDir, constantDir} {
		fi, err := os.Stat(filepath.Join(templateDir, d))
		if err != nil || !fi.IsDir() {
			return nil, configError(fmt.Errorf("windninja: case template directory %s is missing %s/", templateDir, d))
		}
	}
	return &CaseBuilder{TemplateDir: templateDir}, nil
}

// Build renders every template file into caseDir and creates the
// solver control dictionary.
func (b *CaseBuilder) Build(caseDir string, p CaseParams) error {
	err := filepath.Walk(b.TemplateDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(b.TemplateDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		category := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
		if category != zeroDir && category != systemDir && category != constantDir {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		dst := filepath.Join(caseDir, rel)
		if info.IsDir() {
			return os.MkdirAll(dst, os.ModePerm)
		}
		name := info.Name()
		if filepath.Ext(name) == ".tmp" || name == "pointDisplacement" {
			return nil
		}
		switch category {
		case zeroDir:
			return b.writeZeroFile(path, dst, Field(name), p)
		case systemDir:
			return writeSystemFile(path, dst, name, p)
		default:
			return CopyFile(path, dst, nil)
		}
	})
	if err != nil {
		return withKind(ErrIO, fmt.Errorf("windninja: rendering case: %w", err))
	}
	return CopyFile(filepath.Join(caseDir, solverControlDictPath), filepath.Join(caseDir, controlDictPath), nil)
}

// writeZeroFile renders an initial-condition field file. The boundary
// blocks for each face are inserted in place of the boundaryField
// marker.
func (b *CaseBuilder) writeZeroFile(src, dst string, field Field, p CaseParams) error {
	data, err := ioutil.ReadFile(src)
	if err != nil {
		return err
	}
	s := string(data)
	header, footer := "", s
	if i := strings.Index(s, boundaryFieldMarker); i >= 0 {
		header = s[:i]
		footer = s[i+len(boundaryFieldMarker):]
	}
	var out strings.Builder
	out.WriteString(header)
	if field.solved() {
		blocks, err := b.boundaryBlocks(field, p)
		if err != nil {
			return err
		}
		out.WriteString(blocks)
	}
	if wf, ok := WallFunction(field, p.NonEquilibrium); ok {
		footer = ReplaceAll(footer, wallFunctionMarker, wf, DefaultReplaceLimit)
	}
	out.WriteString(footer)
	return ioutil.WriteFile(dst, []byte(out.String()), 0644)
}

// boundaryBlocks renders the boundary blocks of field for every face.
func (b *CaseBuilder) boundaryBlocks(field Field, p CaseParams) (string, error) {
	bcs, err := PlanFieldBoundaryConditions(field, p.Inlets)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, bc := range bcs {
		frag, err := ioutil.ReadFile(filepath.Join(b.TemplateDir, zeroDir, bc.TemplateName()))
		if err != nil {
			return "", fmt.Errorf("reading boundary fragment for %s %s: %w", field, bc.Face, err)
		}
		out.WriteString(bc.Substitutions(p.Flow).Apply(string(frag), DefaultReplaceLimit))
	}
	return out.String(), nil
}

func writeSystemFile(src, dst, name string, p CaseParams) error {
	var subs Substitutions
	switch name {
	case "decomposeParDict":
		subs = subs.Add("$nProc$", strconv.Itoa(p.NumProcs))
	case "sampleDict":
		subs = subs.Add("$stlFileName$", p.SurfaceName+"_out.stl")
	case "controlDict_simpleFoam":
		subs = subs.Add("$lib$", solverLibrary(runtime.GOOS)).
			Add("$nIterations$", strconv.Itoa(p.Iterations))
	}
	return RenderFile(src, dst, subs, DefaultReplaceLimit)
}

// solverLibrary returns the name of the boundary-condition library
// loaded by the solver on the given platform.
func solverLibrary(goos string) string {
	if goos == "windows" {
		return "libWindNinja"
	}
	return "libWindNinja.so"
}

// WriteBlockMesh renders the block mesh dictionary into caseDir.
func (b *CaseBuilder) WriteBlockMesh(caseDir string, s *MeshSizing) error {
	return RenderFile(filepath.Join(b.TemplateDir, blockMeshDictPath),
		filepath.Join(caseDir, blockMeshDictPath), s.Substitutions(), CopyReplaceLimit)
}

// PatchFirstCellHeight writes the height of the first cell into the
// velocity and turbulence initial conditions.
func PatchFirstCellHeight(caseDir string, height float64) error {
	subs := Substitutions{{Token: firstCellHeightDefault, Value: fmt.Sprintf("%.2f", height)}}
	for _, f := range []Field{FieldU, FieldK, FieldEpsilon} {
		path := filepath.Join(caseDir, zeroDir, string(f))
		if err := CopyFile(path, path, subs); err != nil {
			return err
		}
	}
	return nil
}

// SetFoamCase replaces the case path variable in the extrusion
// dictionary with caseDir.
func SetFoamCase(caseDir string) error {
	path := filepath.Join(caseDir, extrudeMeshDictPath)
	return CopyFile(path, path, Substitutions{{Token: "$FOAM_CASE", Value: caseDir}})
}

// UpdateEndTime changes the solver end time in the control dictionary.
func UpdateEndTime(caseDir string, oldEnd, newEnd int) error {
	path := filepath.Join(caseDir, controlDictPath)
	return CopyFile(path, path, Substitutions{{
		Token: fmt.Sprintf("endTime         %d", oldEnd),
		Value: fmt.Sprintf("endTime         %d", newEnd),
	}})
}

// ImportSurface copies a terrain surface into the case geometry
// directory as <name>.stl and returns the new path.
func ImportSurface(caseDir, surface, name string) (string, error) {
	b, err := ioutil.ReadFile(surface)
	if err != nil {
		return "", ioError(fmt.Errorf("windninja: reading surface: %w", err))
	}
	dir := filepath.Join(caseDir, triSurfaceDir)
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return "", ioError(fmt.Errorf("windninja: importing surface: %w", err))
	}
	dst := filepath.Join(dir, name+".stl")
	if err := ioutil.WriteFile(dst, b, 0644); err != nil {
		return "", ioError(fmt.Errorf("windninja: importing surface: %w", err))
	}
	return dst, nil
}
