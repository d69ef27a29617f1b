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
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"

	"github.com/PeterTFS/windninja/cloud"
)

// uploader stages files bound for blob storage in a local directory
// and uploads them once the run is finished.
type uploader struct {
	// files is a set of file path pairs. The first of each pair
	// is a local file path and the second is a blob storage
	// path where it should be uploaded to.
	files [][2]string

	// remoteDir is the blob storage directory that dir stands in for.
	remoteDir string

	err error
	dir string
}

func (u *uploader) stagingDir() string {
	if u.dir == "" {
		u.dir, u.err = ioutil.TempDir("", "windninja")
	}
	return u.dir
}

// maybeUpload checks whether the given output file path refers to
// a blob storage location. If it does, then a temporary file location
// is returned. The file will then be uploaded to blob storage when
// the upload method is run.
func (u *uploader) maybeUpload(path string) string {
	if u.err != nil {
		return ""
	}
	if !cloud.IsBlob(path) {
		return path
	}
	local := filepath.Join(u.stagingDir(), filepath.Base(path))
	if u.err != nil {
		return ""
	}
	u.files = append(u.files, [2]string{local, path})
	return local
}

// maybeUploadDir is like maybeUpload for an output directory. Files
// written to the returned directory are uploaded once they are passed
// to add.
func (u *uploader) maybeUploadDir(path string) string {
	if u.err != nil {
		return ""
	}
	if !cloud.IsBlob(path) {
		return path
	}
	u.remoteDir = strings.TrimSuffix(path, "/")
	return u.stagingDir()
}

// add registers files written to the staged output directory for upload.
func (u *uploader) add(files ...string) {
	if u.remoteDir == "" {
		return
	}
	for _, f := range files {
		if filepath.Dir(f) != filepath.Clean(u.dir) {
			continue
		}
		u.files = append(u.files, [2]string{f, u.remoteDir + "/" + filepath.Base(f)})
	}
}

// upload copies the registered files to blob storage.
func (u *uploader) upload(ctx context.Context) error {
	if u.err != nil {
		return u.err
	}
	for _, f := range u.files {
		local, remote := f[0], f[1]
		err := retry(ctx, "uploading "+remote, func() error {
			return cloud.Upload(ctx, local, remote)
		})
		if err != nil {
			return fmt.Errorf("windninjautil: uploading file '%s' to '%s': %v", local, remote, err)
		}
	}
	return nil
}
