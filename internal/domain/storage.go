package domain

import "context"

// OffsetStore remembers the manual sync offset per video.
type OffsetStore interface {
	LoadOffset(ctx context.Context, videoID string) (float64, bool, error)
	SaveOffset(ctx context.Context, videoID string, seconds float64) error
}
