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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// mpiBufferSize is the message buffer size [bytes] given to
	// parallel runs.
	mpiBufferSize = "20000000"

	readChunk = 4096
)

// Tool is an invocation of an external case tool.
type Tool struct {
	Name string

	// Args follow "-case <dir>" on the command line.
	Args []string

	// Parallel tools run under mpiexec when more than one process
	// is requested.
	Parallel bool

	// Progress tools report solver iteration progress.
	Progress bool

	// LogName is the file in the case directory that receives the tool's
	// output. It defaults to "log.<Name>".
	LogName string
}

func (t Tool) logName() string {
	if t.LogName != "" {
		return t.LogName
	}
	return "log." + t.Name
}

// Runner runs case tools one at a time.
type Runner struct {
	CaseDir  string
	NumProcs int

	// EndTime is the final solver time, used to compute progress.
	EndTime float64

	// Timeout limits the run time of each tool. Zero means no limit.
	Timeout time.Duration

	Progress ProgressFunc
	Log      logrus.FieldLogger

	goos string
}

// NewRunner returns a runner for the case in caseDir.
func NewRunner(caseDir string, numProcs int, log logrus.FieldLogger) *Runner {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if numProcs < 1 {
		numProcs = 1
	}
	return &Runner{CaseDir: caseDir, NumProcs: numProcs, Log: log, goos: runtime.GOOS}
}

// Command returns the program and arguments used to run t.
func (r *Runner) Command(t Tool) (name string, args []string) {
	args = append([]string{t.Name, "-case", r.CaseDir}, t.Args...)
	if !t.Parallel || r.NumProcs <= 1 {
		return t.Name, args[1:]
	}
	np := strconv.Itoa(r.NumProcs)
	var launch []string
	if r.goos == "windows" {
		launch = []string{"-env", "MPI_BUFFER_SIZE", mpiBufferSize, "-n", np}
	} else {
		launch = []string{"-np", np}
	}
	args = append(append(launch, args...), "-parallel")
	return "mpiexec", args
}

// Run runs t to completion, writing its combined output to the tool
// log in the case directory.
func (r *Runner) Run(ctx context.Context, t Tool) error {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return cancelError(err)
	}
	name, args := r.Command(t)
	log := r.Log.WithFields(logrus.Fields{"tool": t.Name})
	log.WithField("args", args).Debug("starting tool")

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.CaseDir
	cmd.Env = os.Environ()
	if name == "mpiexec" && r.goos != "windows" {
		cmd.Env = append(cmd.Env, "MPI_BUFFER_SIZE="+mpiBufferSize)
	}
	cmd.WaitDelay = 5 * time.Second
	setProcessGroup(cmd)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		return withKind(ErrToolSpawn, fmt.Errorf("windninja: starting %s: %w", name, err))
	}
	// Unblock the output reader as soon as ctx is done.
	stop := context.AfterFunc(ctx, func() { pr.CloseWithError(ctx.Err()) })
	defer stop()
	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	out, readErr := r.read(ctx, pr, t)
	pr.Close()
	err := <-waitErr

	logPath := filepath.Join(r.CaseDir, t.logName())
	if werr := ioutil.WriteFile(logPath, out, 0644); werr != nil {
		log.WithError(werr).Warn("failed writing tool log")
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelError(ctxErr)
	}
	if readErr != nil {
		return ioError(fmt.Errorf("windninja: reading %s output: %w", t.Name, readErr))
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ToolError{Tool: t.Name, ExitCode: exitErr.ExitCode(), Log: logPath}
		}
		return withKind(ErrToolExecution, fmt.Errorf("windninja: running %s: %w", t.Name, err))
	}
	log.Debug("tool finished")
	return nil
}

// read collects the tool output until it ends or ctx is done, reporting
// progress along the way.
func (r *Runner) read(ctx context.Context, rd io.Reader, t Tool) ([]byte, error) {
	var out bytes.Buffer
	br := bufio.NewReaderSize(rd, readChunk)
	chunk := make([]byte, readChunk)
	last := -1.0
	for {
		if ctx.Err() != nil {
			return out.Bytes(), nil
		}
		n, err := br.Read(chunk)
		if n > 0 {
			out.Write(chunk[:n])
			if t.Progress {
				if tm, ok := LatestTime(out.Bytes()); ok && tm != last {
					last = tm
					r.report(t.Name, Percent(tm, r.EndTime))
				}
			}
		}
		if err == io.EOF {
			return out.Bytes(), nil
		}
		if err != nil {
			return out.Bytes(), err
		}
	}
}

func (r *Runner) report(tool string, pct float64) {
	r.Log.WithFields(logrus.Fields{"tool": tool, "progress": fmt.Sprintf("%.0f%%", pct)}).Info("solver progress")
	if r.Progress != nil {
		r.Progress(tool, pct)
	}
}

var cellsPattern = regexp.MustCompile(`(?m)^\s*cells:\s+(\d+)`)

// CellCount returns the number of cells reported in a mesh check log.
func CellCount(log []byte) (int, bool) {
	m := cellsPattern.FindAllSubmatch(log, -1)
	if len(m) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(string(m[len(m)-1][1]))
	if err != nil {
		return 0, false
	}
	return n, true
}
