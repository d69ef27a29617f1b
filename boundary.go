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
	"math"
	"strconv"
)

// Face is one of the four vertical faces of the computational domain.
type Face int

// The domain faces. The numeric order is the order in which boundary
// blocks are written to field files.
const (
	East Face = iota
	North
	South
	West
)

// Faces lists every domain face in output order.
var Faces = []Face{East, North, South, West}

// String returns the patch name used for the face in the case files.
func (f Face) String() string {
	switch f {
	case East:
		return "east_face"
	case North:
		return "north_face"
	case South:
		return "south_face"
	case West:
		return "west_face"
	default:
		return fmt.Sprintf("Face(%d)", int(f))
	}
}

// Field is a solved (or wall-function) field in the case.
type Field string

// Fields with boundary-condition blocks or wall-function variants.
const (
	FieldU       Field = "U"
	FieldP       Field = "p"
	FieldK       Field = "k"
	FieldEpsilon Field = "epsilon"
	FieldNut     Field = "nut"
)

// SolvedFields are the fields whose boundary conditions depend on
// the inlet faces.
var SolvedFields = []Field{FieldU, FieldP, FieldK, FieldEpsilon}

func (f Field) solved() bool {
	for _, s := range SolvedFields {
		if f == s {
			return true
		}
	}
	return false
}

// Vector3 is a Cartesian vector.
type Vector3 [3]float64

// String formats v the way it is written into field files.
func (v Vector3) String() string {
	return fmt.Sprintf("(%.4f %.4f %.4f)", v[0], v[1], v[2])
}

// ComputeDirectionVector converts a meteorological wind direction
// (the angle the wind blows from, in degrees clockwise from north) into
// a unit vector pointing in the direction the wind blows to.
func ComputeDirectionVector(from float64) Vector3 {
	d := math.Mod(from-180, 360)
	if d < 0 {
		d += 360
	}
	return ToVector(d)
}

// ToVector converts an angle in degrees clockwise from north into
// a unit vector in the x-y plane. The cardinal angles map
// exactly onto the axes.
func ToVector(d float64) Vector3 {
	d = math.Mod(d, 360)
	if d < 0 {
		d += 360
	}
	const rad = math.Pi / 180
	var dx, dy float64
	switch {
	case d == 0:
		dx, dy = 0, 1
	case d == 90:
		dx, dy = 1, 0
	case d == 180:
		dx, dy = 0, -1
	case d == 270:
		dx, dy = -1, 0
	case d < 90:
		dx = math.Sin(d * rad)
		dy = math.Sin((90 - d) * rad)
	case d < 180:
		d -= 90
		dx = math.Sin((90 - d) * rad)
		dy = -math.Sin(d * rad)
	case d < 270:
		d -= 180
		dx = -math.Sin(d * rad)
		dy = -math.Sin((90 - d) * rad)
	default:
		d -= 270
		dx = -math.Sin((90 - d) * rad)
		dy = math.Sin(d * rad)
	}
	return Vector3{dx, dy, 0}
}

// InletSet is the set of faces through which the wind enters the domain.
type InletSet []Face

// Contains reports whether f is an inlet.
func (s InletSet) Contains(f Face) bool {
	for _, i := range s {
		if i == f {
			return true
		}
	}
	return false
}

// SetInlets returns the inlet faces for a wind blowing from the given
// direction. Cardinal directions have one inlet and all other directions
// have the two faces adjacent to the corner the wind comes from.
func SetInlets(from float64) (InletSet, error) {
	if math.IsNaN(from) || from < 0 || from > 360 {
		return nil, configError(fmt.Errorf("windninja: wind direction %g is outside of [0, 360]", from))
	}
	switch {
	case from == 0 || from == 360:
		return InletSet{North}, nil
	case from == 90:
		return InletSet{East}, nil
	case from == 180:
		return InletSet{South}, nil
	case from == 270:
		return InletSet{West}, nil
	case from < 90:
		return InletSet{North, East}, nil
	case from < 180:
		return InletSet{East, South}, nil
	case from < 270:
		return InletSet{South, West}, nil
	default:
		return InletSet{West, North}, nil
	}
}

// BoundaryCondition describes the condition applied to one field on
// one face.
type BoundaryCondition struct {
	Face  Face
	Field Field

	// Template is the name of the block fragment. If empty, the
	// fragment is chosen from the values that are set.
	Template string

	Type             string
	Value            string
	GammaValue       string
	PressureValue    string
	InletOutletValue string
}

// Block fragment names in the 0/ template directory.
const (
	inletTemplate          = "inlet.tmp"
	genericValTemplate     = "genericTypeVal.tmp"
	genericTemplate        = "genericType.tmp"
	genericKEpsTemplate    = "genericType-kep.tmp"
	boundaryFieldMarker    = "$boundaryField$"
	wallFunctionMarker     = "$wallFunction$"
	firstCellHeightDefault = "-9999.9"
)

// PlanBoundaryCondition returns the condition for field on face given
// the inlet faces.
func PlanBoundaryCondition(face Face, field Field, inlets InletSet) (BoundaryCondition, error) {
	bc := BoundaryCondition{Face: face, Field: field}
	inlet := inlets.Contains(face)
	switch field {
	case FieldU:
		if inlet {
			bc.Template = inletTemplate
			bc.Type = "logProfileVelocityInlet"
		} else {
			bc.Type = "pressureInletOutletVelocity"
			bc.InletOutletValue = "(0 0 0)"
		}
	case FieldP:
		if inlet {
			bc.Type = "zeroGradient"
		} else {
			bc.Type = "totalPressure"
			bc.Value = "0"
			bc.GammaValue = "1"
			bc.PressureValue = "0"
		}
	case FieldK:
		if inlet {
			bc.Template = inletTemplate
			bc.Type = "logProfileTurbulentKineticEnergyInlet"
		} else {
			bc.Type = "zeroGradient"
		}
	case FieldEpsilon:
		if inlet {
			bc.Template = inletTemplate
			bc.Type = "logProfileDissipationRateInlet"
		} else {
			bc.Type = "zeroGradient"
		}
	default:
		return bc, configError(fmt.Errorf("windninja: field %q has no planned boundary conditions", field))
	}
	return bc, nil
}

// PlanFieldBoundaryConditions returns the conditions for field on every
// face, in output order.
func PlanFieldBoundaryConditions(field Field, inlets InletSet) ([]BoundaryCondition, error) {
	bcs := make([]BoundaryCondition, len(Faces))
	for i, f := range Faces {
		var err error
		bcs[i], err = PlanBoundaryCondition(f, field, inlets)
		if err != nil {
			return nil, err
		}
	}
	return bcs, nil
}

// TemplateName returns the block fragment used to render bc.
func (bc BoundaryCondition) TemplateName() string {
	switch {
	case bc.Template != "":
		return bc.Template
	case bc.GammaValue != "":
		return genericValTemplate
	case bc.InletOutletValue != "":
		return genericTemplate
	default:
		return genericKEpsTemplate
	}
}

// FlowParams holds the inflow parameters shared by every inlet block.
type FlowParams struct {
	Speed              float64 // free-stream speed [m/s]
	Direction          Vector3
	InputHeight        float64 // input wind height above the canopy [m]
	Roughness          float64 // z0 [m]
	DisplacementHeight float64 // Rd [m]
}

// Substitutions returns the token replacements used to render bc.
func (bc BoundaryCondition) Substitutions(p FlowParams) Substitutions {
	var s Substitutions
	return s.Add("$boundary_name$", bc.Face.String()).
		Add("$type$", bc.Type).
		Add("$value$", bc.Value).
		Add("$gammavalue$", bc.GammaValue).
		Add("$pvalue$", bc.PressureValue).
		Add("$U_freestream$", formatFloat(p.Speed)).
		Add("$direction$", p.Direction.String()).
		Add("$InputWindHeight$", formatFloat(p.InputHeight)).
		Add("$z0$", formatFloat(p.Roughness)).
		Add("$Rd$", formatFloat(p.DisplacementHeight)).
		Add("$inletoutletvalue$", bc.InletOutletValue)
}

// WallFunction returns the wall-function name for field, or false if
// the field has no wall-function variant.
func WallFunction(field Field, nonEquilibrium bool) (string, bool) {
	switch field {
	case FieldEpsilon:
		if nonEquilibrium {
			return "epsilonNonEquiWallFunction", true
		}
		return "epsilonWallFunction", true
	case FieldNut:
		if nonEquilibrium {
			return "nutNonEquiWallFunction", true
		}
		return "nutkWallFunction", true
	}
	return "", false
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
