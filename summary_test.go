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
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/kr/pretty"
)

func TestSummaryRoundTrip(t *testing.T) {
	want := &Summary{
		Run:        "2f1b6c1e-7a57-4c43-8a5c-0d9b8d2e43a1",
		Finished:   time.Date(2018, 7, 4, 12, 30, 0, 0, time.UTC),
		Terrain:    "hill",
		Mode:       ModeFull,
		Speed:      10,
		Direction:  270,
		SpeedUnits: MilesPerHour,
		Iterations: 300,
		NumProcs:   4,
		Inlets:     []string{"west_face"},
		Cells:      12000,
		MeanSpeed:  4.25,
		Outputs:    []string{"out/hill_270_10_100m.nc"},
		Mesh: &MeshSizing{
			Box:             BoundingBox{XMin: 0, YMin: 0, ZMin: 900, XMax: 400, YMax: 300, ZMax: 1400},
			NX:              40,
			NY:              30,
			NZ:              5,
			FirstCellHeight: 5.5,
			ExpansionRatio:  1.1,
			CellBudget:      6000,
		},
		Stages: []StageTiming{{Stage: "Init", Seconds: 0.5}, {Stage: "Solve", Seconds: 120}},
	}
	path := filepath.Join(t.TempDir(), "run.toml")
	if err := WriteSummary(path, want); err != nil {
		t.Fatal(err)
	}
	have, err := ReadSummary(path)
	if err != nil {
		t.Fatal(err)
	}
	if !have.Finished.Equal(want.Finished) {
		t.Errorf("finished: have %v, want %v", have.Finished, want.Finished)
	}
	have.Finished = want.Finished
	if !reflect.DeepEqual(have, want) {
		t.Errorf("summary differs: %v", pretty.Diff(have, want))
	}
}

func TestReadSummaryMissing(t *testing.T) {
	_, err := ReadSummary(filepath.Join(t.TempDir(), "missing.toml"))
	if !errors.Is(err, ErrIO) {
		t.Errorf("error %v should be an I/O error", err)
	}
}
