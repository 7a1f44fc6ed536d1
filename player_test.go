package avsync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

type stubProber struct {
	mu        sync.Mutex
	durations map[string]float64
	failing   map[string]bool
}

func (s *stubProber) Probe(ctx context.Context, locator string, stream StreamType) (*ResourceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing[locator] {
		return nil, errors.New("404 not found")
	}
	return &ResourceInfo{Duration: s.durations[locator]}, nil
}

func (s *stubProber) heal(locator string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.failing, locator)
}

var testSource = Source{
	VideoID:      "dQw4w9WgXcQ",
	VideoLocator: "https://cdn.example/v.mp4",
	AudioLocator: "https://cdn.example/a.m4a",
}

func newTestPlayer(t *testing.T, prober *stubProber, clock clockwork.Clock, configure func(*Options)) *Player {
	t.Helper()
	opts := Options{
		Platform: NewClockedPlatform(ClockedOptions{
			Prober: prober,
			Clock:  clock,
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		}),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	if configure != nil {
		configure(&opts)
	}
	p := NewPlayer(opts)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newDualProber() *stubProber {
	return &stubProber{durations: map[string]float64{
		testSource.VideoLocator: 120,
		testSource.AudioLocator: 120,
	}}
}

// waitState polls until cond holds for the presentation snapshot.
func waitState(t *testing.T, p *Player, what string, cond func(Presentation) bool) Presentation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		st := p.State()
		if cond(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s, last state %#v", what, st)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewPlayerPanicsWithoutPlatform(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewPlayer(Options{})
}

func TestCommandsBeforeLoad(t *testing.T) {
	p := newTestPlayer(t, newDualProber(), clockwork.NewFakeClock(), nil)

	if err := p.TogglePlayPause(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if err := p.Retry(context.Background()); !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession from retry, got %v", err)
	}

	st := p.State()
	if st.State != PlayStopped || st.Volume != DefaultVolume || st.TimeLabel != "0:00 / 0:00" || st.OffsetLabel != "0.0s" {
		t.Fatalf("unexpected idle presentation: %#v", st)
	}
}

func TestLoadRequiresVideoLocator(t *testing.T) {
	p := newTestPlayer(t, newDualProber(), clockwork.NewFakeClock(), nil)
	if err := p.Load(context.Background(), Source{AudioLocator: "a"}); !errors.Is(err, ErrNoVideoLocator) {
		t.Fatalf("expected ErrNoVideoLocator, got %v", err)
	}
}

func TestPlayerPlaysInSync(t *testing.T) {
	clock := clockwork.NewFakeClock()
	p := newTestPlayer(t, newDualProber(), clock, nil)

	if err := p.Load(context.Background(), testSource); err != nil {
		t.Fatalf("load: %v", err)
	}
	st := waitState(t, p, "duration", func(st Presentation) bool { return st.DurationKnown })
	if st.Duration != 120 || !st.DualTrack || st.TimeLabel != "0:00 / 2:00" {
		t.Fatalf("unexpected presentation: %#v", st)
	}

	if err := p.TogglePlayPause(context.Background()); err != nil {
		t.Fatalf("play: %v", err)
	}
	if !p.State().IsPlaying {
		t.Fatalf("expected playing")
	}

	// One ticker per track.
	clock.BlockUntil(2)
	clock.Advance(time.Second)
	waitState(t, p, "position update", func(st Presentation) bool { return st.CurrentTime >= 1 })

	if err := p.TogglePlayPause(context.Background()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if st := p.State(); st.State != PlayPaused || st.IsPlaying {
		t.Fatalf("expected paused, got %#v", st)
	}
}

func TestPlayerSeekAndTrim(t *testing.T) {
	p := newTestPlayer(t, newDualProber(), clockwork.NewFakeClock(), nil)
	if err := p.Load(context.Background(), testSource); err != nil {
		t.Fatalf("load: %v", err)
	}
	waitState(t, p, "duration", func(st Presentation) bool { return st.DurationKnown })

	if err := p.SeekToFraction(0.5); err != nil {
		t.Fatalf("seek: %v", err)
	}
	for i := 0; i < 3; i++ {
		_ = p.AdjustOffset(-OffsetStep)
	}
	st := p.State()
	if st.CurrentTime != 60 || st.OffsetLabel != "-0.3s" {
		t.Fatalf("unexpected presentation: %#v", st)
	}

	_ = p.ResetOffset()
	if st := p.State(); st.SyncOffset != 0 {
		t.Fatalf("offset after reset = %v", st.SyncOffset)
	}
}

func TestPlayerErrorAndRetry(t *testing.T) {
	prober := newDualProber()
	prober.failing = map[string]bool{testSource.VideoLocator: true}
	p := newTestPlayer(t, prober, clockwork.NewFakeClock(), nil)

	if err := p.Load(context.Background(), testSource); err != nil {
		t.Fatalf("load: %v", err)
	}
	st := waitState(t, p, "erroring", func(st Presentation) bool { return st.State == PlayErroring })
	if st.ErrorMessage != "failed to load video" {
		t.Fatalf("error message = %q", st.ErrorMessage)
	}
	if !errors.Is(p.Err(), ErrResourceLoad) {
		t.Fatalf("Err() = %v", p.Err())
	}
	if err := p.TogglePlayPause(context.Background()); !errors.Is(err, ErrErroring) {
		t.Fatalf("expected ErrErroring, got %v", err)
	}

	prober.heal(testSource.VideoLocator)
	if err := p.Retry(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	st = waitState(t, p, "recovered", func(st Presentation) bool { return st.DurationKnown })
	if st.State != PlayStopped || st.ErrorMessage != "" {
		t.Fatalf("retry should start over from stopped, got %#v", st)
	}
}

func TestPlayerRemembersOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "offsets.db")
	store, err := OpenOffsetStore(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	p := newTestPlayer(t, newDualProber(), clockwork.NewFakeClock(), func(o *Options) { o.OffsetStore = store })
	if err := p.Load(context.Background(), testSource); err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = p.AdjustOffset(0.2)

	if err := p.Load(context.Background(), testSource); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got := p.State().OffsetLabel; got != "0.2s" {
		t.Fatalf("offset label after reload = %q, want 0.2s", got)
	}
}

func TestPlayerClosed(t *testing.T) {
	p := newTestPlayer(t, newDualProber(), clockwork.NewFakeClock(), nil)
	if err := p.Load(context.Background(), testSource); err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = p.Close()

	if err := p.Seek(1); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
	if err := p.Load(context.Background(), testSource); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed on load, got %v", err)
	}
}

func TestFormatTime(t *testing.T) {
	cases := map[float64]string{
		0:      "0:00",
		59.9:   "0:59",
		61:     "1:01",
		3600:   "1:00:00",
		3725.5: "1:02:05",
	}
	for in, want := range cases {
		if got := FormatTime(in); got != want {
			t.Fatalf("FormatTime(%v) = %q, want %q", in, got, want)
		}
	}
}
