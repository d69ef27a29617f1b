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
	"errors"
	"testing"
)

func TestStageString(t *testing.T) {
	for s, want := range map[Stage]string{
		Init:                      "Init",
		TransformOutputHeightCopy: "TransformOutputHeightCopy",
		Cleanup:                   "Cleanup",
		Stage(42):                 "Stage(42)",
		Stage(-1):                 "Stage(-1)",
	} {
		if have := s.String(); have != want {
			t.Errorf("have %s, want %s", have, want)
		}
	}
}

func TestParseRunMode(t *testing.T) {
	for in, want := range map[string]RunMode{
		"":         ModeFull,
		"full":     ModeFull,
		"Surfaces": ModeSurfaces,
		"dicts":    ModeDicts,
		"MESH":     ModeMesh,
	} {
		have, err := ParseRunMode(in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if have != want {
			t.Errorf("%q: have %s, want %s", in, have, want)
		}
	}
	if _, err := ParseRunMode("solve"); !errors.Is(err, ErrConfiguration) {
		t.Errorf("error %v should be a configuration error", err)
	}
}

func TestRunModeLast(t *testing.T) {
	for m, want := range map[RunMode]Stage{
		ModeSurfaces: GeometryCheck,
		ModeDicts:    RenderMesh,
		ModeMesh:     CheckMesh,
		ModeFull:     WriteFinalOutputs,
	} {
		if have := m.last(); have != want {
			t.Errorf("%s: have %s, want %s", m, have, want)
		}
	}
}
