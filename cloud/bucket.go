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

// Package cloud opens blob storage buckets and moves run inputs and
// outputs between them and the local file system.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// An opener opens the bucket with the given name for one storage
// provider.
type opener func(ctx context.Context, name string) (*blob.Bucket, error)

// providers maps URL schemes to the storage providers they select.
var providers = map[string]opener{
	"file": fileBucket,
	"gs":   gsBucket,
	"s3":   s3Bucket,
}

// Providers returns the accepted storage provider schemes, sorted.
func Providers() []string {
	var p []string
	for scheme := range providers {
		p = append(p, scheme)
	}
	sort.Strings(p)
	return p
}

// IsBlob returns whether path refers to blob storage, i.e. whether it
// starts with "<provider>://" for one of the accepted providers.
func IsBlob(path string) bool {
	i := strings.Index(path, "://")
	if i <= 0 {
		return false
	}
	_, ok := providers[path[:i]]
	return ok
}

// SplitPath splits a blob path of the form 'provider://bucket/key' into
// the bucket name, including the provider, and the key.
func SplitPath(path string) (bucketName, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("cloud: parsing blob path: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", "", fmt.Errorf("cloud: blob path '%s' should be in the format 'provider://bucket/key'", path)
	}
	return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
}

// OpenBucket opens the bucket named by bucketName, which has the form
// 'provider://name'. Any path after the name is ignored. For the "file"
// provider, name is a directory relative to the working directory.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	u, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket: %v", err)
	}
	open, ok := providers[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("cloud: invalid storage provider '%s' in '%s'; accepted providers are %s",
			u.Scheme, bucketName, strings.Join(Providers(), ", "))
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("cloud: bucket name is missing from '%s'", bucketName)
	}
	b, err := open(ctx, u.Hostname())
	if err != nil {
		return nil, fmt.Errorf("cloud: opening %s: %v", bucketName, err)
	}
	return b, nil
}

func fileBucket(_ context.Context, dir string) (*blob.Bucket, error) {
	return fileblob.OpenBucket(dir, nil)
}

// gsBucket uses the application default credentials.
func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// defaultRegion is used when AWS_REGION is not set.
const defaultRegion = "us-west-2"

// s3Config returns the AWS configuration for the environment. Keys in
// AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY take precedence; otherwise
// the SDK's default credential chain (shared profile, instance role)
// is used.
func s3Config() *aws.Config {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = defaultRegion
	}
	c := aws.NewConfig().WithRegion(region)
	if os.Getenv("AWS_ACCESS_KEY_ID") != "" {
		c = c.WithCredentials(credentials.NewEnvCredentials())
	}
	return c
}

func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	s, err := session.NewSession(s3Config())
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}
