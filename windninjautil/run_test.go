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

package windninjautil

import (
	"bytes"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/PeterTFS/windninja"
	"github.com/PeterTFS/windninja/cloud"
	"github.com/spf13/cobra"
)

// fakeSurfaceTool puts a surfaceTransformPoints script that copies its
// input surface first on the PATH.
func fakeSurfaceTool(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools are shell scripts")
	}
	dir := t.TempDir()
	script := "#!/bin/sh\ncp \"$5\" \"$6\"\n"
	if err := ioutil.WriteFile(filepath.Join(dir, "surfaceTransformPoints"), []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRun(t *testing.T) {
	fakeSurfaceTool(t)
	os.Mkdir("testout", os.ModePerm)
	defer os.RemoveAll("testout")

	cfg := testConfig(t)
	cfg.Set("mode", "dicts")
	cfg.Set("CaseDir", t.TempDir())
	cfg.Set("OutputDir", "file://testout/run1")
	cfg.Set("TotalCells", 10000)
	opts, err := RunOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOutput(&buf)
	res, err := Run(context.Background(), cmd, "", opts)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Retained {
		t.Error("the case should be retained")
	}
	if _, err := os.Stat(filepath.Join(res.CaseDir, "constant", "polyMesh", "blockMeshDict")); err != nil {
		t.Error(err)
	}
	out := buf.String()
	for _, want := range []string{"WindNinja v" + windninja.Version, "starting stage", "stage=RenderMesh", "finished in"} {
		if !strings.Contains(out, want) {
			t.Errorf("output is missing %q:\n%s", want, out)
		}
	}

	// The log file is uploaded to the output directory.
	local, err := cloud.Download(context.Background(), "file://testout/run1/hill.log", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	b, err := ioutil.ReadFile(local)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "stopping at checkpoint") {
		t.Errorf("log file:\n%s", b)
	}
}

func TestRunFailure(t *testing.T) {
	cfg := testConfig(t)
	cfg.Set("TemplateDir", filepath.Join(t.TempDir(), "missing"))
	opts, err := RunOptions(cfg)
	if err != nil {
		t.Fatal(err)
	}
	logFile := filepath.Join(t.TempDir(), "run.log")
	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOutput(&buf)
	if _, err := Run(context.Background(), cmd, logFile, opts); err == nil {
		t.Fatal("expected an error")
	}
	b, err := ioutil.ReadFile(logFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Run failed") {
		t.Errorf("log file:\n%s", b)
	}
}
