// Package printer submits full-page image prints to the CUPS spooler.
package printer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"picbrand/internal/models"
)

var ErrNoDefaultPrinter = errors.New("no default printer")

// Executor abstracts command execution for testability.
type Executor interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

type commandExecutor struct{}

func (commandExecutor) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

type Option func(*Printer)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(e Executor) Option {
	return func(p *Printer) {
		if e != nil {
			p.exec = e
		}
	}
}

type Printer struct {
	name     string
	dpi      int
	spoolDir string
	exec     Executor
	logger   *zap.Logger
}

func New(cfg models.PrinterConfig, logger *zap.Logger, opts ...Option) *Printer {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Printer{
		name:     strings.TrimSpace(cfg.Name),
		dpi:      cfg.DPI,
		spoolDir: cfg.SpoolDir,
		exec:     commandExecutor{},
		logger:   logger.With(zap.String("component", "printer")),
	}
	if p.dpi <= 0 {
		p.dpi = 150
	}
	if p.spoolDir == "" {
		p.spoolDir = os.TempDir()
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DefaultPrinter asks the spooler for the system default destination.
func (p *Printer) DefaultPrinter(ctx context.Context) (string, error) {
	const op = "printer.DefaultPrinter"

	out, err := p.exec.Output(ctx, "lpstat", "-d")
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	text := strings.TrimSpace(string(out))
	if strings.HasPrefix(text, "no system default") {
		return "", fmt.Errorf("%s: %w", op, ErrNoDefaultPrinter)
	}
	_, name, ok := strings.Cut(text, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", fmt.Errorf("%s: %w: unexpected lpstat output %q", op, ErrNoDefaultPrinter, text)
	}
	return name, nil
}

// Selected returns the configured printer, falling back to the default.
func (p *Printer) Selected(ctx context.Context) (string, error) {
	if p.name != "" {
		return p.name, nil
	}
	return p.DefaultPrinter(ctx)
}

var jobIDPattern = regexp.MustCompile(`request id is (\S+)`)

// Print renders path onto a full page and submits it. It returns the
// spooler job id when lp reports one.
func (p *Printer) Print(ctx context.Context, path string) (string, error) {
	const op = "printer.Print"

	dest, err := p.Selected(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	src, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	page, err := RenderPage(src, filepath.Base(path), p.dpi)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	spool := filepath.Join(p.spoolDir, "picbrand-"+uuid.NewString()+".png")
	if err := imaging.Save(page, spool); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer os.Remove(spool)

	out, err := p.exec.Output(ctx, "lp", "-d", dest, "-t", filepath.Base(path), "-o", "fit-to-page", spool)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var job string
	if m := jobIDPattern.FindStringSubmatch(string(out)); m != nil {
		job = m[1]
	}
	p.logger.Info("image printed", zap.String("path", path), zap.String("printer", dest), zap.String("job", job))
	return job, nil
}
