//go:build !gocv

package camera

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"picbrand/internal/models"
)

func TestCaptureName(t *testing.T) {
	got := captureName(time.Unix(1700000000, 0))
	if got != "image_1700000000.jpg" {
		t.Fatalf("captureName = %q", got)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	c := New(models.CameraConfig{PreviewSeconds: 6}, nil)
	if c.preview != 6*time.Second {
		t.Fatalf("preview = %v", c.preview)
	}
	if c.probeLimit != 5 {
		t.Fatalf("probeLimit = %d", c.probeLimit)
	}
}

func TestWithoutBackendReportsUnavailable(t *testing.T) {
	c := New(models.CameraConfig{}, nil)

	if _, err := c.Probe(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Probe: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.Select(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Select: expected ErrUnavailable, got %v", err)
	}
	if _, err := c.Capture(context.Background(), t.TempDir()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Capture: expected ErrUnavailable, got %v", err)
	}
}

func TestCaptureRejectsMissingDirectory(t *testing.T) {
	c := New(models.CameraConfig{}, nil)
	if _, err := c.Capture(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil || errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected directory error, got %v", err)
	}
}
