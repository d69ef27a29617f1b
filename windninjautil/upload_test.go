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
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/PeterTFS/windninja/cloud"
)

func TestUploaderLocal(t *testing.T) {
	var u uploader
	if have := u.maybeUpload("out/hill.log"); have != "out/hill.log" {
		t.Errorf("have %s", have)
	}
	if have := u.maybeUploadDir("out"); have != "out" {
		t.Errorf("have %s", have)
	}
	u.add("out/hill_270_5_100m.nc")
	if len(u.files) != 0 || u.dir != "" {
		t.Errorf("nothing should be staged: %+v", u)
	}
	if err := u.upload(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestUploader(t *testing.T) {
	noRetry(t)
	os.Mkdir("testupload", os.ModePerm)
	defer os.RemoveAll("testupload")

	var u uploader
	logFile := u.maybeUpload("file://testupload/runs/hill.log")
	dir := u.maybeUploadDir("file://testupload/runs/")
	if u.err != nil {
		t.Fatal(u.err)
	}
	defer os.RemoveAll(dir)
	if filepath.Dir(logFile) != dir {
		t.Errorf("log file %s should be staged in %s", logFile, dir)
	}

	out := filepath.Join(dir, "hill_270_5_100m.nc")
	for _, f := range []string{logFile, out} {
		if err := ioutil.WriteFile(f, []byte(filepath.Base(f)), 0644); err != nil {
			t.Fatal(err)
		}
	}
	u.add(out, filepath.Join(t.TempDir(), "elsewhere.nc"))
	want := [][2]string{
		{logFile, "file://testupload/runs/hill.log"},
		{out, "file://testupload/runs/hill_270_5_100m.nc"},
	}
	if !reflect.DeepEqual(u.files, want) {
		t.Errorf("have %v, want %v", u.files, want)
	}

	if err := u.upload(context.Background()); err != nil {
		t.Fatal(err)
	}
	for _, f := range want {
		local, err := cloud.Download(context.Background(), f[1], t.TempDir())
		if err != nil {
			t.Fatal(err)
		}
		b, err := ioutil.ReadFile(local)
		if err != nil {
			t.Fatal(err)
		}
		if string(b) != filepath.Base(f[0]) {
			t.Errorf("%s: have %q", f[1], b)
		}
	}
}
