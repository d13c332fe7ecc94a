// Package camera probes webcams and captures a single frame after a timed
// preview. The OpenCV backend is compiled only with the gocv build tag.
package camera

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"picbrand/internal/models"
)

var ErrUnavailable = errors.New("camera support not built in (rebuild with -tags gocv)")

type Camera struct {
	index      int
	preview    time.Duration
	probeLimit int
	now        func() time.Time
	logger     *zap.Logger
}

func New(cfg models.CameraConfig, logger *zap.Logger) *Camera {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Camera{
		index:      cfg.Index,
		preview:    time.Duration(cfg.PreviewSeconds) * time.Second,
		probeLimit: cfg.ProbeLimit,
		now:        time.Now,
		logger:     logger.With(zap.String("component", "camera")),
	}
	if c.probeLimit <= 0 {
		c.probeLimit = 5
	}
	return c
}

// Probe returns the device indexes below the probe limit that open.
func (c *Camera) Probe() ([]int, error) {
	return probe(c.probeLimit)
}

// Select picks the first available device and remembers it.
func (c *Camera) Select() (int, error) {
	const op = "camera.Select"

	found, err := c.Probe()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(found) == 0 {
		return 0, fmt.Errorf("%s: no camera available", op)
	}
	c.index = found[0]
	c.logger.Info("camera selected", zap.Int("index", c.index))
	return c.index, nil
}

// Capture previews the selected device, then writes one frame as
// image_<unix>.jpg inside dir and returns its path.
func (c *Camera) Capture(ctx context.Context, dir string) (string, error) {
	const op = "camera.Capture"

	if info, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	} else if !info.IsDir() {
		return "", fmt.Errorf("%s: %s is not a directory", op, dir)
	}

	path := filepath.Join(dir, captureName(c.now()))
	if err := capture(ctx, c.index, c.preview, path); err != nil {
		c.logger.Error("capture failed", zap.Int("index", c.index), zap.Error(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}
	c.logger.Info("image captured", zap.String("path", path))
	return path, nil
}

func captureName(t time.Time) string {
	return fmt.Sprintf("image_%d.jpg", t.Unix())
}
