package domain

import "context"

type EventKind int

const (
	EventMetadata EventKind = iota
	EventPosition
	EventPlay
	EventPause
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventMetadata:
		return "metadata"
	case EventPosition:
		return "position"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification reported by a timeline. Position is set for
// EventPosition, Duration for EventMetadata and Err for EventError.
type Event struct {
	Kind     EventKind
	Position float64
	Duration float64
	Err      error
}

// Listener receives timeline events. It may be called from any goroutine,
// including from inside a Timeline method.
type Listener func(Event)

// Timeline is one independently buffering media resource.
type Timeline interface {
	// Play resolves once the resource has actually started, or returns the
	// platform's rejection. Every successful Play is reported with exactly
	// one EventPlay. An EventPlay nobody asked for means the platform
	// started the resource on its own.
	Play(ctx context.Context) error
	Pause() error
	SetPosition(seconds float64) error
	Position() float64
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	// Close stops the resource and releases any network or decoder activity.
	Close() error
}

// Fullscreener is implemented by timelines backed by a visible surface.
type Fullscreener interface {
	RequestFullscreen() error
}

// Platform opens timelines for resource locators. Open must not block on
// loading; readiness and failures are reported through the listener.
type Platform interface {
	Open(ctx context.Context, locator string, stream StreamType, listener Listener) (Timeline, error)
}
