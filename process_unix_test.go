//go:build !windows

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
	"io/ioutil"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"
)

// processGone reports whether pid has exited. Exited processes that have
// not been reaped yet count as gone.
func processGone(pid int) bool {
	stat, err := ioutil.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "stat"))
	if err == nil {
		// The state follows the parenthesized command name.
		if i := strings.LastIndexByte(string(stat), ')'); i >= 0 && i+2 < len(stat) {
			return stat[i+2] == 'Z' || stat[i+2] == 'X'
		}
		return false
	}
	return syscall.Kill(pid, 0) == syscall.ESRCH
}

func TestRunnerCancelKillsChildren(t *testing.T) {
	dir := t.TempDir()
	pidFile := filepath.Join(dir, "child.pid")
	fakeTools(t, map[string]string{
		// The sleep is a grandchild of the runner that shares the output pipe.
		"quietTool": "sleep 31 &\necho $! > " + pidFile + "\nwait",
	})
	r := NewRunner(dir, 1, testLogger())
	r.Timeout = 200 * time.Millisecond

	start := time.Now()
	err := r.Run(context.Background(), Tool{Name: "quietTool"})
	elapsed := time.Since(start)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("error %v should be a cancellation", err)
	}
	if elapsed > time.Second {
		t.Errorf("run took %v after cancellation", elapsed)
	}

	b, err := ioutil.ReadFile(pidFile)
	if err != nil {
		t.Fatal(err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !processGone(pid) {
		if time.Now().After(deadline) {
			syscall.Kill(pid, syscall.SIGKILL)
			t.Fatalf("child process %d is still running", pid)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
