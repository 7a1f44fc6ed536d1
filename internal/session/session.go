// Package session implements the synchronization core: one SyncSession owns a
// video timeline and an optional audio timeline and keeps them aligned.
//
// All session state is owned by a single loop goroutine. Commands and
// timeline events are queued onto it and run one at a time, which is what
// serializes overlapping transport calls and makes locking unnecessary.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/eleven-am/avsync/internal/domain"
	"github.com/eleven-am/avsync/internal/drift"
	"github.com/eleven-am/avsync/internal/present"
	"github.com/eleven-am/avsync/internal/trim"

	"github.com/google/uuid"
)

type Config struct {
	Platform domain.Platform
	Logger   *slog.Logger

	DriftTolerance float64
	Volume         float64
	Muted          bool

	OffsetStore          domain.OffsetStore
	FailOnSecondaryError bool

	// Hooks run on the session loop and must not call back into the
	// session synchronously.
	OnTimeUpdate     func(seconds float64)
	OnDurationChange func(seconds float64)
}

type track struct {
	stream   domain.StreamType
	tl       domain.Timeline
	loaded   bool
	duration float64
	playing  bool
	errored  bool
	// selfPlays counts EventPlay echoes still owed for Play calls the
	// session issued itself.
	selfPlays int
}

func (t *track) usable() bool {
	return t != nil && t.tl != nil && !t.errored
}

type snapshot struct {
	view domain.Presentation
	err  error
}

type Session struct {
	id     uuid.UUID
	source domain.Source
	cfg    Config
	log    *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	queue     *queue
	done      chan struct{}
	closeOnce sync.Once

	snapMu sync.RWMutex
	snap   snapshot

	primary     *track
	secondary   *track
	state       domain.PlayState
	offset      trim.Offset
	drift       *drift.Monitor
	volume      float64
	muted       bool
	currentTime float64
	errMsg      string
	lastErr     error
	started     bool
	closed      bool
}

// New opens the timelines for src and returns a session in the Stopped state.
// Resource failures do not fail New; they move the session to Erroring and
// are reported through State and Err.
func New(ctx context.Context, cfg Config, src domain.Source) (*Session, error) {
	if src.VideoLocator == "" {
		return nil, domain.ErrNoVideoLocator
	}
	if cfg.Platform == nil {
		return nil, errors.New("session: platform is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.New()
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	s := &Session{
		id:     id,
		source: src,
		cfg:    cfg,
		log:    cfg.Logger.With("session_id", id.String(), "video_id", src.VideoID),
		ctx:    sctx,
		cancel: cancel,
		queue:  newQueue(),
		done:   make(chan struct{}),
		state:  domain.PlayStopped,
		drift:  drift.NewMonitor(cfg.DriftTolerance),
		volume: present.Clamp(cfg.Volume, 0, 1),
		muted:  cfg.Muted,
	}

	go s.run()

	if err := s.do(func() { s.open(ctx) }); err != nil {
		return nil, err
	}

	s.log.Debug("session created", "dual_track", src.DualTrack(), "drift_tolerance", s.drift.Tolerance())
	return s, nil
}

func (s *Session) ID() string {
	return s.id.String()
}

// State returns the latest presentation snapshot.
func (s *Session) State() domain.Presentation {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap.view
}

// Err returns the error behind the current ErrorMessage, if any.
func (s *Session) Err() error {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snap.err
}

// Close stops and releases both timelines. Events still in flight are
// dropped. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		_ = s.do(s.teardown)
		<-s.done
		s.log.Debug("session closed")
	})
	return nil
}

func (s *Session) open(ctx context.Context) {
	s.primary = &track{stream: domain.StreamVideo}
	if s.source.DualTrack() {
		s.secondary = &track{stream: domain.StreamAudio}
		s.restoreOffset(ctx)
	}

	for _, t := range s.tracks() {
		locator := s.source.VideoLocator
		if t == s.secondary {
			locator = s.source.AudioLocator
		}

		tl, err := s.cfg.Platform.Open(s.ctx, locator, t.stream, s.listener(t))
		if err != nil {
			s.trackFailed(t, fmt.Errorf("%w: %v", domain.ErrResourceLoad, err))
			return
		}
		t.tl = tl
		s.applyLevels(t)
	}
}

func (s *Session) teardown() {
	s.queue.close()
	for _, t := range s.tracks() {
		if t.tl == nil {
			continue
		}
		s.pauseTrack(t)
		if err := t.tl.Close(); err != nil {
			s.log.Warn("close timeline", "stream", t.stream, "error", err)
		}
		t.playing = false
	}
	if s.state != domain.PlayErroring {
		s.state = domain.PlayStopped
	}
	s.closed = true
}

func (s *Session) run() {
	defer close(s.done)
	for range s.queue.ready {
		for _, fn := range s.queue.drain() {
			fn()
			if s.closed {
				return
			}
		}
	}
}

// do runs fn on the loop and waits for it.
func (s *Session) do(fn func()) error {
	finished := make(chan struct{})
	ok := s.queue.push(func() {
		defer close(finished)
		fn()
		s.publish()
	})
	if !ok {
		return domain.ErrSessionClosed
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		select {
		case <-finished:
			return nil
		default:
			return domain.ErrSessionClosed
		}
	}
}

func (s *Session) listener(t *track) domain.Listener {
	return func(ev domain.Event) {
		s.queue.push(func() {
			s.handle(t, ev)
			s.publish()
		})
	}
}

func (s *Session) tracks() []*track {
	var out []*track
	if s.primary != nil {
		out = append(out, s.primary)
	}
	if s.secondary != nil {
		out = append(out, s.secondary)
	}
	return out
}

func (s *Session) liveTracks() []*track {
	var out []*track
	for _, t := range s.tracks() {
		if t.usable() {
			out = append(out, t)
		}
	}
	return out
}

func (s *Session) trackFor(stream domain.StreamType) *track {
	if stream == domain.StreamAudio {
		return s.secondary
	}
	return s.primary
}

func (s *Session) publish() {
	var duration float64
	known := s.primary != nil && s.primary.loaded
	if known {
		duration = s.primary.duration
	}

	view := domain.Presentation{
		SessionID:     s.id.String(),
		VideoID:       s.source.VideoID,
		State:         s.state,
		CurrentTime:   s.currentTime,
		Duration:      duration,
		DurationKnown: known,
		IsPlaying:     s.state == domain.PlayPlaying,
		IsMuted:       s.muted,
		Volume:        s.volume,
		SyncOffset:    s.offset.Seconds(),
		ErrorMessage:  s.errMsg,
		DualTrack:     s.secondary.usable(),
		Progress:      present.Progress(s.currentTime, duration),
		TimeLabel:     present.TimeLabel(s.currentTime, duration),
		OffsetLabel:   s.offset.Label(),
	}

	s.snapMu.Lock()
	s.snap = snapshot{view: view, err: s.lastErr}
	s.snapMu.Unlock()
}
