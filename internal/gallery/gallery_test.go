package gallery

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"

	"picbrand/internal/effects"
	"picbrand/internal/models"
)

func TestPendingSetDeduplicates(t *testing.T) {
	p := NewPendingSet()
	if !p.Add("/in/a.jpg") {
		t.Fatal("first add should report new")
	}
	if p.Add("/in/a.jpg") {
		t.Fatal("second add should report duplicate")
	}
	p.Add("/in/b.jpg")

	if got := p.Paths(); !reflect.DeepEqual(got, []string{"/in/a.jpg", "/in/b.jpg"}) {
		t.Fatalf("Paths = %v", got)
	}
	if last, ok := p.Last(); !ok || last != "/in/b.jpg" {
		t.Fatalf("Last = %q, %v", last, ok)
	}
}

func TestPendingSetPathsIsCopy(t *testing.T) {
	p := NewPendingSet()
	p.Add("a")
	snap := p.Paths()
	snap[0] = "mutated"
	if p.Paths()[0] != "a" {
		t.Fatal("Paths must return a copy")
	}
	if _, ok := NewPendingSet().Last(); ok {
		t.Fatal("empty set has no last entry")
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev models.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) kinds() []models.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.EventKind
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}

// waitForKinds polls until pub has seen n events.
func waitForKinds(t *testing.T, pub *recordingPublisher, n int) []models.EventKind {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		kinds := pub.kinds()
		if len(kinds) >= n {
			return kinds
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d events, got %v", n, kinds)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

type slowPublisher struct {
	delay time.Duration
	recordingPublisher
}

func (s *slowPublisher) Publish(ctx context.Context, ev models.Event) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.recordingPublisher.Publish(ctx, ev)
}

type stubUploader struct {
	paths []string
	err   error
}

func (s *stubUploader) UploadAll(_ context.Context, paths []string) ([]string, error) {
	s.paths = paths
	if s.err != nil {
		return nil, s.err
	}
	ids := make([]string, len(paths))
	for i := range paths {
		ids[i] = "id-" + filepath.Base(paths[i])
	}
	return ids, nil
}

type stubPrinter struct{ printed []string }

func (s *stubPrinter) Print(_ context.Context, path string) (string, error) {
	s.printed = append(s.printed, path)
	return "job-1", nil
}

type stubCamera struct{ path string }

func (s *stubCamera) Capture(_ context.Context, dir string) (string, error) {
	return filepath.Join(dir, s.path), nil
}

func startGallery(t *testing.T, deps Deps) *Gallery {
	t.Helper()
	g := New(deps)
	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-g.stopped
	})
	return g
}

func TestGalleryDeduplicatesAcrossProducers(t *testing.T) {
	pub := &recordingPublisher{}
	g := startGallery(t, Deps{Events: pub})
	ctx := context.Background()

	g.Incoming() <- "/in/a.jpg"
	g.Incoming() <- "/in/a.jpg"
	g.Incoming() <- "/in/b.jpg"
	if err := g.Enqueue(ctx, "/in/a.jpg"); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}

	got, err := g.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"/in/a.jpg", "/in/b.jpg"}) {
		t.Fatalf("Pending = %v", got)
	}
	kinds := waitForKinds(t, pub, 2)
	if len(kinds) != 2 || kinds[0] != models.EventDiscovered || kinds[1] != models.EventDiscovered {
		t.Fatalf("expected two discovery events, got %v", kinds)
	}
}

func TestSlowPublisherDoesNotDelayRequests(t *testing.T) {
	pub := &slowPublisher{delay: 200 * time.Millisecond}
	g := startGallery(t, Deps{Events: pub})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		g.Incoming() <- filepath.Join("/in", string(rune('a'+i))+".jpg")
	}

	start := time.Now()
	got, err := g.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Fatalf("Pending took %v with a slow publisher", elapsed)
	}
	if len(got) != 5 {
		t.Fatalf("Pending = %v", got)
	}
	waitForKinds(t, &pub.recordingPublisher, 5)
}

func TestStopFlushesQueuedEvents(t *testing.T) {
	pub := &recordingPublisher{}
	g := New(Deps{Events: pub})
	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)

	if err := g.Enqueue(context.Background(), "/in/a.jpg"); err != nil {
		t.Fatalf("Enqueue returned error: %v", err)
	}
	cancel()
	<-g.Done()

	if kinds := pub.kinds(); len(kinds) != 1 || kinds[0] != models.EventDiscovered {
		t.Fatalf("expected queued discovery event to be flushed, got %v", kinds)
	}
}

func TestGalleryWatchFeedsPending(t *testing.T) {
	dir := t.TempDir()
	g := startGallery(t, Deps{})
	if err := g.Watch(dir); err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
	if g.WatchedDir() != dir {
		t.Fatalf("WatchedDir = %q", g.WatchedDir())
	}

	img := filepath.Join(dir, "new.png")
	if err := os.WriteFile(img, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := g.Pending(context.Background())
		if err != nil {
			t.Fatalf("Pending returned error: %v", err)
		}
		if len(got) == 1 && got[0] == img {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("watched image never reached pending set, got %v", got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestApplyEffectUnknownFilterLeavesPendingUntouched(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	if err := imaging.Save(imaging.New(4, 4, color.White), src); err != nil {
		t.Fatalf("save: %v", err)
	}
	g := startGallery(t, Deps{})
	ctx := context.Background()
	if err := g.Enqueue(ctx, src); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if _, err := g.ApplyEffect(ctx, "Vignette"); !errors.Is(err, effects.ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
	got, _ := g.Pending(ctx)
	if !reflect.DeepEqual(got, []string{src}) {
		t.Fatalf("pending changed: %v", got)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected no output files, found %d entries", len(entries))
	}
}

func TestApplyEffectPublishesOutputs(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.jpg")
	if err := imaging.Save(imaging.New(4, 4, color.White), src); err != nil {
		t.Fatalf("save: %v", err)
	}
	pub := &recordingPublisher{}
	g := startGallery(t, Deps{Events: pub})
	ctx := context.Background()
	if err := g.Enqueue(ctx, src); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	results, err := g.ApplyEffect(ctx, "Emboss")
	if err != nil {
		t.Fatalf("ApplyEffect returned error: %v", err)
	}
	if len(results) != 1 || results[0].Output != filepath.Join(dir, "a_emboss.jpg") {
		t.Fatalf("unexpected results %+v", results)
	}
	if kinds := waitForKinds(t, pub, 2); kinds[len(kinds)-1] != models.EventEffect {
		t.Fatalf("expected effect event last, got %v", kinds)
	}
}

func TestApplyEffectWithoutImages(t *testing.T) {
	g := startGallery(t, Deps{})
	if _, err := g.ApplyEffect(context.Background(), "Blur"); !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestUploadSendsAllPending(t *testing.T) {
	up := &stubUploader{}
	g := startGallery(t, Deps{Uploader: up})
	ctx := context.Background()
	g.Enqueue(ctx, "/in/a.jpg")
	g.Enqueue(ctx, "/in/b.jpg")

	ids, err := g.Upload(ctx)
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"id-a.jpg", "id-b.jpg"}) {
		t.Fatalf("ids = %v", ids)
	}
	if len(up.paths) != 2 {
		t.Fatalf("uploader saw %v", up.paths)
	}
}

func TestUploadUnavailableAndEmpty(t *testing.T) {
	g := startGallery(t, Deps{})
	if _, err := g.Upload(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	g2 := startGallery(t, Deps{Uploader: &stubUploader{}})
	if _, err := g2.Upload(context.Background()); !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages, got %v", err)
	}
}

func TestPrintLastUsesMostRecent(t *testing.T) {
	pr := &stubPrinter{}
	g := startGallery(t, Deps{Printer: pr})
	ctx := context.Background()

	if _, err := g.PrintLast(ctx); !errors.Is(err, ErrNoImages) {
		t.Fatalf("expected ErrNoImages on empty set, got %v", err)
	}

	g.Enqueue(ctx, "/in/a.jpg")
	g.Enqueue(ctx, "/in/b.jpg")
	job, err := g.PrintLast(ctx)
	if err != nil {
		t.Fatalf("PrintLast returned error: %v", err)
	}
	if job != "job-1" || !reflect.DeepEqual(pr.printed, []string{"/in/b.jpg"}) {
		t.Fatalf("job=%q printed=%v", job, pr.printed)
	}
}

func TestCaptureEnqueues(t *testing.T) {
	g := startGallery(t, Deps{Camera: &stubCamera{path: "image_1.jpg"}})
	ctx := context.Background()

	path, err := g.Capture(ctx, "/shots")
	if err != nil {
		t.Fatalf("Capture returned error: %v", err)
	}
	got, _ := g.Pending(ctx)
	if !reflect.DeepEqual(got, []string{path}) {
		t.Fatalf("Pending = %v, want [%s]", got, path)
	}
}

func TestRequestsAfterStopFail(t *testing.T) {
	g := New(Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	go g.Run(ctx)
	cancel()
	<-g.stopped

	if _, err := g.Pending(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
}

func TestPendingImagesWithoutExif(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.png")
	if err := imaging.Save(imaging.New(2, 2, color.White), src); err != nil {
		t.Fatalf("save: %v", err)
	}
	g := startGallery(t, Deps{})
	g.Enqueue(context.Background(), src)

	imgs, err := g.PendingImages(context.Background())
	if err != nil {
		t.Fatalf("PendingImages returned error: %v", err)
	}
	if len(imgs) != 1 || imgs[0].Path != src || imgs[0].CapturedAt != nil {
		t.Fatalf("unexpected images %+v", imgs)
	}
}
