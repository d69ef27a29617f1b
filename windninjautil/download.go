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
	"io"
	"io/ioutil"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/PeterTFS/windninja/cloud"
	"github.com/cenkalti/backoff"
)

// retryBackOff returns the back-off policy used for transfers to and
// from remote storage.
var retryBackOff = func() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)
}

// retry runs op until it succeeds, the retries are used up or ctx
// is done.
func retry(ctx context.Context, what string, op func() error) error {
	return backoff.RetryNotify(op,
		backoff.WithContext(retryBackOff(), ctx),
		func(err error, d time.Duration) {
			log.Printf("%s: %v: retrying in %v", what, err, d)
		},
	)
}

// isRemote returns whether path is a URL or a blob storage location.
func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") || cloud.IsBlob(path)
}

// maybeDownload checks if the input is an existing file locally.
// If not, it checks if the file is a URL or a blob storage location.
// If it is, it downloads the file and returns the path to the
// downloaded file.
func maybeDownload(ctx context.Context, path string) (string, error) {
	if path == "" {
		return path, nil
	}
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path, nil
	}
	if !isRemote(path) {
		return path, nil
	}
	dir, err := ioutil.TempDir("", "windninja")
	if err != nil {
		return "", fmt.Errorf("windninjautil: creating temporary download directory: %v", err)
	}
	var local string
	err = retry(ctx, "downloading "+path, func() error {
		var err error
		if cloud.IsBlob(path) {
			local, err = cloud.Download(ctx, path, dir)
		} else {
			local, err = downloadHTTP(ctx, path, dir)
		}
		return err
	})
	if err != nil {
		return "", fmt.Errorf("windninjautil: downloading %s: %v", path, err)
	}
	return local, nil
}

// downloadHTTP downloads a file from the specified URL into dir and
// returns the path to the downloaded file.
func downloadHTTP(ctx context.Context, path, dir string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %s", resp.Status)
	}
	local := filepath.Join(dir, filepath.Base(u.Path))
	w, err := os.Create(local)
	if err != nil {
		return "", err
	}
	if _, err = io.Copy(w, resp.Body); err != nil {
		w.Close()
		return "", err
	}
	return local, w.Close()
}
