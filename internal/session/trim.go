package session

import "context"

// AdjustOffset adds delta seconds to the sync offset and realigns audio
// immediately.
func (s *Session) AdjustOffset(delta float64) error {
	return s.do(func() {
		s.offset.Adjust(delta)
		s.offsetChanged()
	})
}

func (s *Session) ResetOffset() error {
	return s.do(func() {
		s.offset.Reset()
		s.offsetChanged()
	})
}

func (s *Session) offsetChanged() {
	s.alignSecondary()
	if s.secondary == nil || s.cfg.OffsetStore == nil || s.source.VideoID == "" {
		return
	}
	if err := s.cfg.OffsetStore.SaveOffset(s.ctx, s.source.VideoID, s.offset.Seconds()); err != nil {
		s.log.Warn("save sync offset", "error", err)
	}
}

func (s *Session) restoreOffset(ctx context.Context) {
	if s.cfg.OffsetStore == nil || s.source.VideoID == "" {
		return
	}
	seconds, ok, err := s.cfg.OffsetStore.LoadOffset(ctx, s.source.VideoID)
	if err != nil {
		s.log.Warn("load sync offset", "error", err)
		return
	}
	if ok {
		s.offset.Set(seconds)
	}
}
