package session

import (
	"context"
	"errors"

	"github.com/eleven-am/avsync/internal/domain"
	"github.com/eleven-am/avsync/internal/present"

	"golang.org/x/sync/errgroup"
)

// TogglePlayPause pauses both timelines when playing. Otherwise it aligns
// audio to video, starts both concurrently and reports Playing only after
// both have acknowledged.
//
// A rejected start (for example an autoplay policy) leaves the session in
// its previous Paused or Stopped state with ErrorMessage set. A start that
// fails because a resource cannot load moves the session to Erroring.
func (s *Session) TogglePlayPause(ctx context.Context) error {
	var err error
	if derr := s.do(func() { err = s.togglePlayPause(ctx) }); derr != nil {
		return derr
	}
	return err
}

func (s *Session) togglePlayPause(ctx context.Context) error {
	switch s.state {
	case domain.PlayErroring:
		return domain.ErrErroring
	case domain.PlayPlaying:
		s.pauseAll()
		s.state = domain.PlayPaused
		return nil
	}
	return s.start(ctx)
}

func (s *Session) start(parent context.Context) error {
	s.errMsg = ""
	s.lastErr = nil
	s.alignSecondary()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	tracks := s.liveTracks()
	if len(tracks) == 0 {
		return domain.ErrErroring
	}

	started := make([]bool, len(tracks))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tracks {
		i := i
		tl, stream := t.tl, t.stream
		g.Go(func() error {
			if err := tl.Play(gctx); err != nil {
				return &domain.PlaybackError{Kind: domain.KindPlaybackStart, Stream: stream, Err: err}
			}
			started[i] = true
			return nil
		})
	}

	err := g.Wait()
	for i, t := range tracks {
		if started[i] {
			t.selfPlays++
		}
	}
	if err == nil {
		for _, t := range tracks {
			t.playing = true
		}
		s.state = domain.PlayPlaying
		s.started = true
		return nil
	}

	s.pauseAll()

	if s.ctx.Err() != nil {
		return domain.ErrSessionClosed
	}

	var perr *domain.PlaybackError
	if errors.Is(err, domain.ErrResourceLoad) && errors.As(err, &perr) {
		s.trackFailed(s.trackFor(perr.Stream), perr.Err)
		if s.state == domain.PlayErroring {
			return err
		}
		// Audio died and playback may continue on video alone.
		return s.start(parent)
	}

	s.errMsg = "playback failed to start"
	s.lastErr = err
	s.log.Warn("playback start rejected", "error", err)
	return err
}

func (s *Session) pauseAll() {
	for _, t := range s.tracks() {
		s.pauseTrack(t)
	}
}

func (s *Session) pauseTrack(t *track) {
	if !t.usable() {
		return
	}
	if err := t.tl.Pause(); err != nil {
		s.log.Warn("pause timeline", "stream", t.stream, "error", err)
	}
	t.playing = false
}

// Seek moves video to seconds, clamped to [0, duration] when the duration
// is known, and audio to the same point plus the sync offset. The play state
// does not change.
func (s *Session) Seek(seconds float64) error {
	var err error
	if derr := s.do(func() { err = s.seek(seconds) }); derr != nil {
		return derr
	}
	return err
}

// SeekToFraction maps a progress-bar fraction onto the video duration. It is
// a no-op until the duration is known.
func (s *Session) SeekToFraction(fraction float64) error {
	var err error
	derr := s.do(func() {
		if !s.primary.loaded {
			return
		}
		target, ok := present.FractionToSeconds(fraction, s.primary.duration)
		if !ok {
			return
		}
		err = s.seek(target)
	})
	if derr != nil {
		return derr
	}
	return err
}

func (s *Session) seek(target float64) error {
	if s.state == domain.PlayErroring {
		return domain.ErrErroring
	}
	if !s.primary.usable() {
		return nil
	}

	target = present.ClampSeek(target, s.primary.duration, s.primary.loaded)
	if err := s.primary.tl.SetPosition(target); err != nil {
		s.log.Warn("set video position", "target", target, "error", err)
	}
	s.currentTime = target
	s.setSecondary(target + s.offset.Seconds())
	return nil
}

// SetVolume applies the same level to both timelines. Values outside [0,1]
// are clamped.
func (s *Session) SetVolume(volume float64) error {
	return s.do(func() {
		s.volume = present.Clamp(volume, 0, 1)
		for _, t := range s.liveTracks() {
			if err := t.tl.SetVolume(s.volume); err != nil {
				s.log.Warn("set volume", "stream", t.stream, "error", err)
			}
		}
	})
}

func (s *Session) SetMuted(muted bool) error {
	return s.do(func() { s.setMuted(muted) })
}

func (s *Session) ToggleMute() error {
	return s.do(func() { s.setMuted(!s.muted) })
}

func (s *Session) setMuted(muted bool) {
	s.muted = muted
	for _, t := range s.liveTracks() {
		if err := t.tl.SetMuted(muted); err != nil {
			s.log.Warn("set muted", "stream", t.stream, "error", err)
		}
	}
}

func (s *Session) applyLevels(t *track) {
	if !t.usable() {
		return
	}
	if err := t.tl.SetVolume(s.volume); err != nil {
		s.log.Warn("set volume", "stream", t.stream, "error", err)
	}
	if err := t.tl.SetMuted(s.muted); err != nil {
		s.log.Warn("set muted", "stream", t.stream, "error", err)
	}
}

// RequestFullscreen asks the video surface to go fullscreen. Failure is
// logged and otherwise ignored.
func (s *Session) RequestFullscreen() error {
	return s.do(func() {
		if !s.primary.usable() {
			return
		}
		fs, ok := s.primary.tl.(domain.Fullscreener)
		if !ok {
			s.log.Debug("fullscreen request ignored", "error", domain.ErrFullscreenUnsupported)
			return
		}
		if err := fs.RequestFullscreen(); err != nil {
			s.log.Debug("fullscreen request ignored", "error", err)
		}
	})
}
