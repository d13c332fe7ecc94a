//go:build gocv

package camera

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

const previewWindow = "Camera Preview"

func probe(limit int) ([]int, error) {
	var found []int
	for i := 0; i < limit; i++ {
		vc, err := gocv.OpenVideoCapture(i)
		if err != nil {
			continue
		}
		if vc.IsOpened() {
			found = append(found, i)
		}
		vc.Close()
	}
	return found, nil
}

func capture(ctx context.Context, index int, preview time.Duration, path string) error {
	vc, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return err
	}
	defer vc.Close()
	if !vc.IsOpened() {
		return fmt.Errorf("camera %d could not be opened", index)
	}

	window := gocv.NewWindow(previewWindow)
	defer window.Close()

	frame := gocv.NewMat()
	defer frame.Close()

	deadline := time.Now().Add(preview)
	for time.Now().Before(deadline) && ctx.Err() == nil {
		if vc.Read(&frame) && !frame.Empty() {
			window.IMShow(frame)
		}
		if window.WaitKey(1)&0xFF == 'q' {
			break
		}
	}

	if !vc.Read(&frame) || frame.Empty() {
		return errors.New("failed to read frame")
	}
	if !gocv.IMWrite(path, frame) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}
