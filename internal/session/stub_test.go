package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"

	"github.com/eleven-am/avsync/internal/domain"
)

type stubTimeline struct {
	stream domain.StreamType

	mu            sync.Mutex
	listener      domain.Listener
	pos           float64
	seeks         []float64
	playCalls     int
	pauseCalls    int
	playErr       error
	playGate      chan struct{}
	volume        float64
	muted         bool
	closed        bool
	fullscreenErr error
	fullscreens   int
}

func (t *stubTimeline) Play(ctx context.Context) error {
	t.mu.Lock()
	t.playCalls++
	gate := t.playGate
	err := t.playErr
	t.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	t.emit(domain.Event{Kind: domain.EventPlay})
	return nil
}

func (t *stubTimeline) Pause() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pauseCalls++
	return nil
}

func (t *stubTimeline) SetPosition(seconds float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos = seconds
	t.seeks = append(t.seeks, seconds)
	return nil
}

func (t *stubTimeline) Position() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pos
}

func (t *stubTimeline) SetVolume(volume float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = volume
	return nil
}

func (t *stubTimeline) SetMuted(muted bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.muted = muted
	return nil
}

func (t *stubTimeline) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	return nil
}

func (t *stubTimeline) RequestFullscreen() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fullscreens++
	return t.fullscreenErr
}

func (t *stubTimeline) emit(ev domain.Event) {
	t.mu.Lock()
	l := t.listener
	t.mu.Unlock()
	if l != nil {
		l(ev)
	}
}

// wander simulates the track wandering on its own.
func (t *stubTimeline) wander(pos float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pos = pos
}

func (t *stubTimeline) seekCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.seeks)
}

func (t *stubTimeline) lastSeek() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.seeks) == 0 {
		return math.NaN()
	}
	return t.seeks[len(t.seeks)-1]
}

func (t *stubTimeline) counts() (plays, pauses int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playCalls, t.pauseCalls
}

type stubPlatform struct {
	video   *stubTimeline
	audio   *stubTimeline
	openErr map[domain.StreamType]error
	opened  []string
}

func newStubPlatform() *stubPlatform {
	return &stubPlatform{
		video: &stubTimeline{stream: domain.StreamVideo},
		audio: &stubTimeline{stream: domain.StreamAudio},
	}
}

func (p *stubPlatform) Open(ctx context.Context, locator string, stream domain.StreamType, listener domain.Listener) (domain.Timeline, error) {
	if err := p.openErr[stream]; err != nil {
		return nil, err
	}
	p.opened = append(p.opened, locator)
	tl := p.video
	if stream == domain.StreamAudio {
		tl = p.audio
	}
	tl.mu.Lock()
	tl.listener = listener
	tl.mu.Unlock()
	return tl, nil
}

type stubOffsetStore struct {
	mu     sync.Mutex
	values map[string]float64
	saves  int
}

func (s *stubOffsetStore) LoadOffset(ctx context.Context, videoID string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[videoID]
	return v, ok, nil
}

func (s *stubOffsetStore) SaveOffset(ctx context.Context, videoID string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values == nil {
		s.values = make(map[string]float64)
	}
	s.values[videoID] = seconds
	s.saves++
	return nil
}

var dualSource = domain.Source{
	VideoID:      "vid123",
	VideoLocator: "https://cdn.example/video.mp4",
	AudioLocator: "https://cdn.example/audio.m4a",
}

var singleSource = domain.Source{
	VideoID:      "vid123",
	VideoLocator: "https://cdn.example/combined.mp4",
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSession(t *testing.T, p *stubPlatform, src domain.Source, configure func(*Config)) *Session {
	t.Helper()
	cfg := Config{Platform: p, Logger: quietLogger(), Volume: 0.8}
	if configure != nil {
		configure(&cfg)
	}
	s, err := New(context.Background(), cfg, src)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// flush waits until every event queued so far has been handled.
func flush(t *testing.T, s *Session) {
	t.Helper()
	if err := s.do(func() {}); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

func loadAll(t *testing.T, s *Session, p *stubPlatform, duration float64) {
	t.Helper()
	p.video.emit(domain.Event{Kind: domain.EventMetadata, Duration: duration})
	if s.source.DualTrack() {
		p.audio.emit(domain.Event{Kind: domain.EventMetadata, Duration: duration})
	}
	flush(t, s)
}

func startPlaying(t *testing.T, s *Session) {
	t.Helper()
	if err := s.TogglePlayPause(context.Background()); err != nil {
		t.Fatalf("toggle play: %v", err)
	}
	if got := s.State().State; got != domain.PlayPlaying {
		t.Fatalf("state = %s, want playing", got)
	}
}

func tick(t *testing.T, s *Session, tl *stubTimeline, pos float64) {
	t.Helper()
	tl.wander(pos)
	tl.emit(domain.Event{Kind: domain.EventPosition, Position: pos})
	flush(t, s)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

var errAutoplay = errors.New("NotAllowedError: play() failed because the user didn't interact with the document first")
