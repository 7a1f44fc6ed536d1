package session

import "github.com/eleven-am/avsync/internal/domain"

// correctDrift runs on every video position update. Audio is the follower:
// it is snapped to video+offset, video is never moved.
func (s *Session) correctDrift(primaryPos float64) {
	if s.state != domain.PlayPlaying || !s.drift.Enabled() || !s.secondary.usable() || !s.secondary.loaded {
		return
	}

	// The delta is measured without the offset, so an offset above the
	// tolerance re-snaps on every update.
	target, ok := s.drift.Evaluate(primaryPos, s.secondary.tl.Position(), s.offset.Seconds())
	if !ok {
		return
	}
	s.log.Debug("drift correction", "video", primaryPos, "audio_target", target, "corrections", s.drift.Corrections())
	s.setSecondary(target)
}

func (s *Session) setSecondary(target float64) {
	if !s.secondary.usable() {
		return
	}
	if target < 0 {
		target = 0
	}
	if err := s.secondary.tl.SetPosition(target); err != nil {
		s.log.Warn("set audio position", "target", target, "error", err)
	}
}

// alignSecondary puts audio at video+offset. Before the video has loaded
// its position is undefined, so there is nothing to align to.
func (s *Session) alignSecondary() {
	if !s.primary.usable() || !s.primary.loaded || !s.secondary.usable() {
		return
	}
	s.setSecondary(s.primary.tl.Position() + s.offset.Seconds())
}
