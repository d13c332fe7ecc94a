package effects

import (
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

var ErrNoImages = errors.New("no images to process")

// Result records the outcome for one source image.
type Result struct {
	Source string `json:"source"`
	Output string `json:"output,omitempty"`
	Err    error  `json:"-"`
}

type Option func(*Applier)

// WithContinueOnError makes Apply attempt every image and report failures
// per result instead of stopping at the first one.
func WithContinueOnError(enabled bool) Option {
	return func(a *Applier) {
		a.continueOnError = enabled
	}
}

type Applier struct {
	logger          *zap.Logger
	continueOnError bool
}

func NewApplier(logger *zap.Logger, opts ...Option) *Applier {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Applier{logger: logger.With(zap.String("component", "effects"))}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply writes one filtered sibling of every path. The filter name is
// validated before any file is touched. By default the first failing image
// ends the batch and later images are left unprocessed.
func (a *Applier) Apply(ctx context.Context, filterName string, paths []string) ([]Result, error) {
	const op = "effects.Apply"

	f, err := ParseFilter(filterName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoImages)
	}

	results := make([]Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, fmt.Errorf("%s: %w", op, err)
		}

		res := Result{Source: path}
		res.Output, res.Err = applyOne(f, path)
		results = append(results, res)

		if res.Err != nil {
			a.logger.Error("apply effect failed", zap.String("filter", f.String()), zap.String("path", path), zap.Error(res.Err))
			if !a.continueOnError {
				return results, fmt.Errorf("%s: %s on %s: %w", op, f, path, res.Err)
			}
			continue
		}
		a.logger.Info("effect applied", zap.String("filter", f.String()), zap.String("output", res.Output))
	}
	return results, nil
}

func applyOne(f Filter, path string) (string, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return "", err
	}
	out := OutputPath(path, f)
	if err := imaging.Save(f.Transform(src), out); err != nil {
		return "", err
	}
	return out, nil
}
