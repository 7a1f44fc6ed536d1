package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNoVideoLocator        = errors.New("video locator is required")
	ErrResourceLoad          = errors.New("resource failed to load")
	ErrPlaybackStart         = errors.New("playback failed to start")
	ErrSecondaryTrack        = errors.New("secondary track failed")
	ErrFullscreenUnsupported = errors.New("fullscreen not supported")
	ErrErroring              = errors.New("player is in error state, retry required")
	ErrSessionClosed         = errors.New("session closed")
	ErrNoSession             = errors.New("no source loaded")
	ErrTimelineClosed        = errors.New("timeline closed")
)

type ErrorKind int

const (
	KindResourceLoad ErrorKind = iota
	KindPlaybackStart
	KindSecondaryTrack
)

func (k ErrorKind) String() string {
	switch k {
	case KindResourceLoad:
		return "resource load"
	case KindPlaybackStart:
		return "playback start"
	case KindSecondaryTrack:
		return "secondary track"
	default:
		return "unknown"
	}
}

// PlaybackError carries the failing stream and the classification used to
// pick the resulting play state.
type PlaybackError struct {
	Kind   ErrorKind
	Stream StreamType
	Err    error
}

func (e *PlaybackError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stream, e.Kind, e.Err)
}

func (e *PlaybackError) Unwrap() error {
	return e.Err
}

func (e *PlaybackError) Is(target error) bool {
	switch e.Kind {
	case KindResourceLoad:
		return target == ErrResourceLoad
	case KindPlaybackStart:
		return target == ErrPlaybackStart
	case KindSecondaryTrack:
		return target == ErrSecondaryTrack
	}
	return false
}

// Message is the viewer-facing text for the error.
func (e *PlaybackError) Message() string {
	switch e.Kind {
	case KindResourceLoad:
		return fmt.Sprintf("failed to load %s", e.Stream)
	case KindPlaybackStart:
		return "playback failed to start"
	default:
		return fmt.Sprintf("%s track failed", e.Stream)
	}
}
