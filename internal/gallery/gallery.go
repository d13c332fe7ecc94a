// Package gallery owns the pending image list. A single goroutine (Run)
// is the only writer: the folder watcher, kafka ingest and camera capture
// hand paths to it, and every read is served by the same goroutine.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"picbrand/internal/effects"
	"picbrand/internal/events"
	"picbrand/internal/models"
	"picbrand/internal/watcher"
)

var (
	ErrNoImages    = effects.ErrNoImages
	ErrUnavailable = errors.New("feature not configured")
	ErrStopped     = errors.New("gallery stopped")
)

const (
	incomingBuffer = 64
	outboxBuffer   = 256
	flushTimeout   = 5 * time.Second
)

type EffectApplier interface {
	Apply(ctx context.Context, filter string, paths []string) ([]effects.Result, error)
}

type Uploader interface {
	UploadAll(ctx context.Context, paths []string) ([]string, error)
}

type Printer interface {
	Print(ctx context.Context, path string) (string, error)
}

type Capturer interface {
	Capture(ctx context.Context, dir string) (string, error)
}

// Deps are the collaborators a Gallery drives. Nil Uploader, Printer or
// Camera make the matching operation return ErrUnavailable.
type Deps struct {
	Effects  EffectApplier
	Uploader Uploader
	Printer  Printer
	Camera   Capturer
	Events   events.Publisher
	Logger   *zap.Logger
}

type Gallery struct {
	incoming chan string
	requests chan func(*PendingSet)
	outbox   chan models.Event
	stopped  chan struct{}

	watcher  *watcher.Watcher
	effects  EffectApplier
	uploader Uploader
	printer  Printer
	camera   Capturer
	events   events.Publisher
	logger   *zap.Logger
}

func New(deps Deps) *Gallery {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	fx := deps.Effects
	if fx == nil {
		fx = effects.NewApplier(logger)
	}

	g := &Gallery{
		incoming: make(chan string, incomingBuffer),
		requests: make(chan func(*PendingSet)),
		outbox:   make(chan models.Event, outboxBuffer),
		stopped:  make(chan struct{}),
		effects:  fx,
		uploader: deps.Uploader,
		printer:  deps.Printer,
		camera:   deps.Camera,
		events:   pub,
		logger:   logger.With(zap.String("component", "gallery")),
	}
	g.watcher = watcher.New(g.incoming, logger)
	return g
}

// Incoming is the channel producers send discovered paths on.
func (g *Gallery) Incoming() chan<- string {
	return g.incoming
}

// Done is closed once Run has returned and queued events were flushed.
func (g *Gallery) Done() <-chan struct{} {
	return g.stopped
}

// Run owns the pending set until ctx is cancelled. Requests always see
// every path that was sent on Incoming before they were issued. Events are
// sent from a separate goroutine.
func (g *Gallery) Run(ctx context.Context) {
	emitted := make(chan struct{})
	go g.emit(ctx, emitted)

	defer close(g.stopped)
	defer func() { <-emitted }()
	defer g.watcher.Stop()

	pending := NewPendingSet()
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-g.incoming:
			g.add(pending, path)
		case fn := <-g.requests:
			g.drain(pending)
			fn(pending)
		}
	}
}

func (g *Gallery) drain(pending *PendingSet) {
	for {
		select {
		case path := <-g.incoming:
			g.add(pending, path)
		default:
			return
		}
	}
}

func (g *Gallery) add(pending *PendingSet, path string) {
	if !pending.Add(path) {
		return
	}
	g.logger.Info("image added to list", zap.String("path", path), zap.Int("pending", pending.Len()))
	g.publish(models.NewEvent(models.EventDiscovered, path))
}

// publish queues ev without blocking. A full outbox drops the event.
func (g *Gallery) publish(ev models.Event) {
	select {
	case g.outbox <- ev:
	default:
		g.logger.Warn("event outbox full, dropping event", zap.String("kind", string(ev.Kind)), zap.String("path", ev.Path))
	}
}

func (g *Gallery) emit(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case ev := <-g.outbox:
			g.send(ctx, ev)
		case <-ctx.Done():
			g.flush()
			return
		}
	}
}

// flush sends whatever is still queued, bounded by flushTimeout.
func (g *Gallery) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	for {
		select {
		case ev := <-g.outbox:
			g.send(ctx, ev)
		default:
			return
		}
	}
}

func (g *Gallery) send(ctx context.Context, ev models.Event) {
	if err := g.events.Publish(ctx, ev); err != nil {
		g.logger.Warn("publish event failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

func (g *Gallery) do(ctx context.Context, fn func(*PendingSet)) error {
	done := make(chan struct{})
	req := func(p *PendingSet) {
		fn(p)
		close(done)
	}
	select {
	case g.requests <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.stopped:
		return ErrStopped
	}
	<-done
	return nil
}

// Enqueue adds path and returns once the pending set holds it.
func (g *Gallery) Enqueue(ctx context.Context, path string) error {
	return g.do(ctx, func(p *PendingSet) {
		g.add(p, path)
	})
}

// Pending returns a snapshot of the pending paths in discovery order.
func (g *Gallery) Pending(ctx context.Context) ([]string, error) {
	var paths []string
	err := g.do(ctx, func(p *PendingSet) {
		paths = p.Paths()
	})
	return paths, err
}

// PendingImages is Pending with EXIF capture times where available.
func (g *Gallery) PendingImages(ctx context.Context) ([]models.PendingImage, error) {
	paths, err := g.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.PendingImage, 0, len(paths))
	for _, p := range paths {
		img := models.PendingImage{Path: p}
		if t, ok := CaptureTime(p); ok {
			img.CapturedAt = &t
		}
		out = append(out, img)
	}
	return out, nil
}

func (g *Gallery) last(ctx context.Context) (string, error) {
	var (
		path string
		ok   bool
	)
	if err := g.do(ctx, func(p *PendingSet) {
		path, ok = p.Last()
	}); err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNoImages
	}
	return path, nil
}

// Watch switches the watched folder. The previous watch is stopped first.
func (g *Gallery) Watch(dir string) error {
	return g.watcher.Start(dir)
}

func (g *Gallery) WatchedDir() string {
	return g.watcher.Dir()
}

// ApplyEffect filters every pending image. The pending set itself is
// never modified.
func (g *Gallery) ApplyEffect(ctx context.Context, filter string) ([]effects.Result, error) {
	const op = "gallery.ApplyEffect"

	paths, err := g.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	results, err := g.effects.Apply(ctx, filter, paths)
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		ev := models.NewEvent(models.EventEffect, r.Source)
		ev.Output = r.Output
		ev.Filter = filter
		g.publish(ev)
	}
	if err != nil {
		return results, fmt.Errorf("%s: %w", op, err)
	}
	return results, nil
}

// Upload sends every pending image to the cloud drive.
func (g *Gallery) Upload(ctx context.Context) ([]string, error) {
	const op = "gallery.Upload"

	if g.uploader == nil {
		return nil, fmt.Errorf("%s: drive: %w", op, ErrUnavailable)
	}
	paths, err := g.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoImages)
	}

	ids, err := g.uploader.UploadAll(ctx, paths)
	for _, p := range paths[:len(ids)] {
		g.publish(models.NewEvent(models.EventUploaded, p))
	}
	if err != nil {
		return ids, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

// PrintLast prints the most recently discovered image.
func (g *Gallery) PrintLast(ctx context.Context) (string, error) {
	const op = "gallery.PrintLast"

	if g.printer == nil {
		return "", fmt.Errorf("%s: printer: %w", op, ErrUnavailable)
	}
	path, err := g.last(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	job, err := g.printer.Print(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	g.publish(models.NewEvent(models.EventPrinted, path))
	return job, nil
}

// Capture takes a photo into dir and adds it to the pending set.
func (g *Gallery) Capture(ctx context.Context, dir string) (string, error) {
	const op = "gallery.Capture"

	if g.camera == nil {
		return "", fmt.Errorf("%s: camera: %w", op, ErrUnavailable)
	}
	path, err := g.camera.Capture(ctx, dir)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err := g.Enqueue(ctx, path); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return path, nil
}
