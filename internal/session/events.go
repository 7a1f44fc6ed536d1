package session

import (
	"errors"

	"github.com/eleven-am/avsync/internal/domain"
)

func (s *Session) handle(t *track, ev domain.Event) {
	if t.errored && ev.Kind != domain.EventError {
		return
	}

	switch ev.Kind {
	case domain.EventMetadata:
		t.loaded = true
		t.duration = ev.Duration
		if t == s.primary && s.cfg.OnDurationChange != nil {
			s.cfg.OnDurationChange(ev.Duration)
		}

	case domain.EventPosition:
		if t != s.primary || !t.loaded {
			return
		}
		s.currentTime = ev.Position
		if s.cfg.OnTimeUpdate != nil {
			s.cfg.OnTimeUpdate(ev.Position)
		}
		s.correctDrift(ev.Position)

	case domain.EventPlay:
		t.playing = true
		if t.selfPlays > 0 {
			t.selfPlays--
			return
		}
		if t == s.primary {
			s.followPrimaryPlay()
		}

	case domain.EventPause:
		t.playing = false
		// The platform paused the video on its own, typically at the end
		// of the stream. Follow it rather than leave audio running.
		if t == s.primary && s.state == domain.PlayPlaying {
			s.log.Debug("video paused by platform", "position", s.currentTime)
			s.pauseTrack(s.secondary)
			s.state = domain.PlayPaused
		}

	case domain.EventError:
		s.trackFailed(t, ev.Err)
	}
}

// followPrimaryPlay brings the audio along when the platform starts the
// video on its own, for example from media keys.
func (s *Session) followPrimaryPlay() {
	if s.state != domain.PlayPaused && s.state != domain.PlayStopped {
		return
	}
	s.log.Debug("video started by platform", "position", s.currentTime)
	s.errMsg = ""
	s.lastErr = nil
	s.alignSecondary()

	if sec := s.secondary; sec.usable() {
		err := sec.tl.Play(s.ctx)
		switch {
		case err == nil:
			sec.selfPlays++
			sec.playing = true
		case errors.Is(err, domain.ErrResourceLoad):
			s.trackFailed(sec, err)
			if s.state == domain.PlayErroring {
				return
			}
		default:
			s.pauseTrack(s.primary)
			perr := &domain.PlaybackError{Kind: domain.KindPlaybackStart, Stream: sec.stream, Err: err}
			s.errMsg = perr.Message()
			s.lastErr = perr
			s.log.Warn("audio did not follow video start", "error", err)
			return
		}
	}

	s.state = domain.PlayPlaying
	s.started = true
}

func (s *Session) trackFailed(t *track, err error) {
	if t == nil || t.errored {
		return
	}
	t.errored = true

	if t == s.secondary && s.started {
		if !s.cfg.FailOnSecondaryError {
			s.drift.Disable()
			if t.tl != nil {
				_ = t.tl.Pause()
				_ = t.tl.SetMuted(true)
			}
			t.playing = false
			s.log.Warn("audio track failed, continuing video-only", "error", err)
			return
		}
		s.fail(&domain.PlaybackError{Kind: domain.KindSecondaryTrack, Stream: t.stream, Err: err})
		return
	}

	s.fail(&domain.PlaybackError{Kind: domain.KindResourceLoad, Stream: t.stream, Err: err})
}

// fail moves the session to Erroring. Only a new session leaves it.
func (s *Session) fail(perr *domain.PlaybackError) {
	if s.state == domain.PlayErroring {
		return
	}
	for _, t := range s.tracks() {
		s.pauseTrack(t)
	}
	s.state = domain.PlayErroring
	s.errMsg = perr.Message()
	s.lastErr = perr
	s.log.Error("playback failed", "stream", perr.Stream, "kind", perr.Kind.String(), "error", perr.Err)
}
