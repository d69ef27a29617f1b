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
	"bytes"
	"strconv"
)

var (
	iterationMarker = []byte("smoothSolver")
	timeMarker      = []byte("Time = ")
)

// LatestTime returns the most recent iteration time reported in solver
// output. Only a "Time = N" line that precedes the last solver
// iteration marker counts. ok is false if no such line exists.
func LatestTime(out []byte) (t float64, ok bool) {
	end := bytes.LastIndex(out, iterationMarker)
	if end < 0 {
		return 0, false
	}
	search := out[:end]
	for {
		i := bytes.LastIndex(search, timeMarker)
		if i < 0 {
			return 0, false
		}
		// The marker must start a line so that "ExecutionTime = " and
		// similar are skipped.
		if i == 0 || out[i-1] == '\n' {
			start := i + len(timeMarker)
			stop := bytes.IndexByte(out[start:], '\n')
			if stop < 0 {
				return 0, false
			}
			v, err := strconv.ParseFloat(string(bytes.TrimSpace(out[start:start+stop])), 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
		search = search[:i]
	}
}

// Percent returns t as a percentage of endTime, limited to [0, 100].
func Percent(t, endTime float64) float64 {
	if endTime <= 0 {
		return 0
	}
	p := t / endTime * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// ProgressFunc receives the completion percentage of a running tool.
type ProgressFunc func(tool string, percent float64)
