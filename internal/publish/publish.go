// Package publish stores exported composites somewhere other than the
// caller's download: a local directory or an S3 bucket.
package publish

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// Publisher stores one exported image and returns where it ended up.
type Publisher interface {
	Publish(ctx context.Context, name string, data []byte) (string, error)
}

// Target describes where to publish.
type Target struct {
	Dir      string
	S3Bucket string
	S3Prefix string
}

// New picks the S3 publisher when a bucket is configured and the
// directory publisher otherwise.
func New(ctx context.Context, t Target) (Publisher, error) {
	if t.S3Bucket != "" {
		logrus.WithFields(logrus.Fields{"bucket": t.S3Bucket, "prefix": t.S3Prefix}).Debug("publishing to s3")
		return NewS3Publisher(ctx, t.S3Bucket, t.S3Prefix)
	}
	dir := t.Dir
	if dir == "" {
		dir = "."
	}
	logrus.WithField("dir", dir).Debug("publishing to directory")
	return &DirPublisher{Dir: dir}, nil
}

var newKey = func() string { return ulid.Make().String() }

// objectName prefixes name with a fresh id so repeated exports under the
// fixed filename never collide.
func objectName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." || path.Base(name) != name || strings.ContainsRune(name, '\\') {
		return "", fmt.Errorf("invalid name %q: must be a plain file name", name)
	}
	return newKey() + "_" + name, nil
}
