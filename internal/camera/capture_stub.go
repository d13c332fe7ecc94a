//go:build !gocv

package camera

import (
	"context"
	"time"
)

func probe(int) ([]int, error) {
	return nil, ErrUnavailable
}

func capture(context.Context, int, time.Duration, string) error {
	return ErrUnavailable
}
