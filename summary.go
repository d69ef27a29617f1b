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
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// StageTiming is the wall time spent in one stage.
type StageTiming struct {
	Stage   string
	Seconds float64
}

// Summary describes a completed run. It is written next to the outputs
// as <base>.toml.
type Summary struct {
	Run      string
	Finished time.Time
	Terrain  string
	Mode     RunMode

	Speed, Direction float64
	SpeedUnits       SpeedUnits
	Iterations       int
	NumProcs         int

	Inlets []string

	// Cells is the final mesh size, if it was reported.
	Cells     int
	MeanSpeed float64

	Outputs []string
	Mesh    *MeshSizing
	Stages  []StageTiming
}

// WriteSummary writes s to path.
func WriteSummary(path string, s *Summary) error {
	f, err := os.Create(path)
	if err != nil {
		return ioError(fmt.Errorf("windninja: creating run summary: %w", err))
	}
	if err := toml.NewEncoder(f).Encode(s); err != nil {
		f.Close()
		return ioError(fmt.Errorf("windninja: writing run summary: %w", err))
	}
	if err := f.Close(); err != nil {
		return ioError(fmt.Errorf("windninja: writing run summary: %w", err))
	}
	return nil
}

// ReadSummary reads a run summary written by WriteSummary.
func ReadSummary(path string) (*Summary, error) {
	s := new(Summary)
	if _, err := toml.DecodeFile(path, s); err != nil {
		return nil, ioError(fmt.Errorf("windninja: reading run summary: %w", err))
	}
	return s, nil
}
