package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// DirPublisher writes into a local directory, creating it when missing.
type DirPublisher struct {
	Dir string
}

func (d *DirPublisher) Publish(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	obj, err := objectName(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", d.Dir, err)
	}
	p := filepath.Join(d.Dir, obj)
	log := logrus.WithField("file_path", p)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		log.WithError(err).Error("failed to publish export")
		return "", err
	}
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	log.WithField("bytes", len(data)).Info("export published")
	return p, nil
}
