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
	"strings"
)

// Stage is a step of the case pipeline.
type Stage int

// Pipeline stages, in the order in which they run.
const (
	Init Stage = iota
	RenderCase
	ConvertGeometryToSurface
	TransformOutputHeightCopy
	GeometryCheck
	RenderMesh
	TransformDisplacementCopy
	BlockMesh
	Decompose
	SnapMesh
	ExtrudeMesh
	RenumberMesh
	CheckMesh
	ApplyInitialConditions
	Solve
	Reconstruct
	Sample
	Rasterize
	WriteFinalOutputs
	Cleanup
)

var stageNames = [...]string{
	Init:                      "Init",
	RenderCase:                "RenderCase",
	ConvertGeometryToSurface:  "ConvertGeometryToSurface",
	TransformOutputHeightCopy: "TransformOutputHeightCopy",
	GeometryCheck:             "GeometryCheck",
	RenderMesh:                "RenderMesh",
	TransformDisplacementCopy: "TransformDisplacementCopy",
	BlockMesh:                 "BlockMesh",
	Decompose:                 "Decompose",
	SnapMesh:                  "SnapMesh",
	ExtrudeMesh:               "ExtrudeMesh",
	RenumberMesh:              "RenumberMesh",
	CheckMesh:                 "CheckMesh",
	ApplyInitialConditions:    "ApplyInitialConditions",
	Solve:                     "Solve",
	Reconstruct:               "Reconstruct",
	Sample:                    "Sample",
	Rasterize:                 "Rasterize",
	WriteFinalOutputs:         "WriteFinalOutputs",
	Cleanup:                   "Cleanup",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// RunMode selects the point at which a run stops.
type RunMode string

const (
	// ModeSurfaces stops after the terrain surfaces are written and checked.
	ModeSurfaces RunMode = "surfaces"

	// ModeDicts stops after the mesh dictionary is written.
	ModeDicts RunMode = "dicts"

	// ModeMesh stops after the mesh is built and checked.
	ModeMesh RunMode = "mesh"

	// ModeFull runs the whole pipeline.
	ModeFull RunMode = "full"
)

// ParseRunMode returns the run mode named by s. An empty string is
// ModeFull.
func ParseRunMode(s string) (RunMode, error) {
	switch m := RunMode(strings.ToLower(s)); m {
	case ModeSurfaces, ModeDicts, ModeMesh, ModeFull:
		return m, nil
	case "":
		return ModeFull, nil
	default:
		return "", configError(fmt.Errorf("windninja: invalid run mode %q", s))
	}
}

// last returns the final stage run in mode m, before cleanup.
func (m RunMode) last() Stage {
	switch m {
	case ModeSurfaces:
		return GeometryCheck
	case ModeDicts:
		return RenderMesh
	case ModeMesh:
		return CheckMesh
	default:
		return WriteFinalOutputs
	}
}
