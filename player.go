// Package avsync keeps a video-only and an audio-only media timeline playing
// as one.
//
// Sources that ship picture and sound as separate resources need two players
// that buffer and clock independently. avsync owns both, exposes a single
// transport (play, pause, seek, volume, mute, fullscreen) and keeps the audio
// aligned to the video within a small tolerance while playback runs.
//
// # Architecture
//
// The library is built around two interfaces supplied by the host:
//
//   - Platform: Opens a Timeline for a resource locator and reports its
//     events (metadata, position, play, pause, error) through a Listener
//   - OffsetStore: Optional. Remembers the viewer's sync offset per video
//
// A headless Platform driven by a clock and ffprobe is available through
// NewClockedPlatform, and a SQLite OffsetStore through OpenOffsetStore.
//
// # Basic Usage
//
//	player := avsync.NewPlayer(avsync.Options{
//	    Platform: avsync.NewClockedPlatform(avsync.ClockedOptions{}),
//	})
//	defer player.Close()
//
//	err := player.Load(ctx, avsync.Source{
//	    VideoID:      "abc123",
//	    VideoLocator: "https://cdn.example/video.mp4",
//	    AudioLocator: "https://cdn.example/audio.m4a",
//	})
//
//	// Start both tracks; Playing is reported only once both have started
//	if err := player.TogglePlayPause(ctx); err != nil {
//	    log.Println(player.State().ErrorMessage)
//	}
//
// # Synchronization
//
// The video is the authority for the current time. On every video position
// update while playing:
//
//  1. The audio position is compared with the video position
//  2. If they differ by more than the drift tolerance (0.2s by default)
//     the audio is snapped to video position plus the sync offset
//  3. The video is never adjusted
//
// The sync offset is a signed viewer correction changed with AdjustOffset
// and ResetOffset. It is applied on every alignment: starts, seeks, drift
// corrections and the offset change itself.
//
// # Errors
//
// A resource that fails to load moves the player to the Erroring state,
// which only Retry leaves. A rejected start (for example an autoplay policy)
// is reported in ErrorMessage and keeps the previous state. If the audio
// track fails after playback has started, the video keeps playing alone.
package avsync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/avsync/internal/domain"
	"github.com/eleven-am/avsync/internal/drift"
	"github.com/eleven-am/avsync/internal/offsetstore"
	"github.com/eleven-am/avsync/internal/present"
	"github.com/eleven-am/avsync/internal/probe"
	"github.com/eleven-am/avsync/internal/session"
	"github.com/eleven-am/avsync/internal/timeline"
	"github.com/eleven-am/avsync/internal/trim"

	"github.com/jonboulle/clockwork"
)

type (
	// Source identifies the media to play. VideoLocator is required. When
	// AudioLocator is empty or equal to VideoLocator the video resource
	// carries its own sound and no synchronization takes place.
	Source = domain.Source

	// Presentation is a snapshot of everything a player UI renders.
	Presentation = domain.Presentation

	// PlayState is one of Stopped, Playing, Paused or Erroring.
	PlayState = domain.PlayState

	// StreamType identifies the track (video or audio).
	StreamType = domain.StreamType

	// Timeline is one independently buffering, independently clocked media
	// resource. Implementations may deliver events from any goroutine.
	Timeline = domain.Timeline

	// Platform opens timelines. It is the seam to the actual media engine.
	Platform = domain.Platform

	// Fullscreener is implemented by video timelines that can present
	// fullscreen.
	Fullscreener = domain.Fullscreener

	Listener  = domain.Listener
	Event     = domain.Event
	EventKind = domain.EventKind

	// OffsetStore persists the sync offset per video.
	OffsetStore = domain.OffsetStore

	// PlaybackError carries the failing track and the kind of failure. It
	// matches ErrResourceLoad, ErrPlaybackStart or ErrSecondaryTrack with
	// errors.Is.
	PlaybackError = domain.PlaybackError
	ErrorKind     = domain.ErrorKind

	// ResourceInfo is what a Prober reports about a resource.
	ResourceInfo = domain.ResourceInfo
)

const (
	StreamVideo = domain.StreamVideo
	StreamAudio = domain.StreamAudio

	PlayStopped  = domain.PlayStopped
	PlayPlaying  = domain.PlayPlaying
	PlayPaused   = domain.PlayPaused
	PlayErroring = domain.PlayErroring

	EventMetadata = domain.EventMetadata
	EventPosition = domain.EventPosition
	EventPlay     = domain.EventPlay
	EventPause    = domain.EventPause
	EventError    = domain.EventError

	KindResourceLoad   = domain.KindResourceLoad
	KindPlaybackStart  = domain.KindPlaybackStart
	KindSecondaryTrack = domain.KindSecondaryTrack
)

const (
	// DefaultDriftTolerance is the audio/video divergence in seconds that
	// triggers a resync.
	DefaultDriftTolerance = drift.DefaultTolerance

	// DefaultVolume is the initial volume of a new player.
	DefaultVolume = 0.8

	// OffsetStep is the usual AdjustOffset increment.
	OffsetStep = trim.Step
)

var (
	ErrNoVideoLocator        = domain.ErrNoVideoLocator
	ErrResourceLoad          = domain.ErrResourceLoad
	ErrPlaybackStart         = domain.ErrPlaybackStart
	ErrSecondaryTrack        = domain.ErrSecondaryTrack
	ErrFullscreenUnsupported = domain.ErrFullscreenUnsupported
	ErrErroring              = domain.ErrErroring
	ErrSessionClosed         = domain.ErrSessionClosed
	ErrNoSession             = domain.ErrNoSession
	ErrTimelineClosed        = domain.ErrTimelineClosed
)

// Options configures the Player behavior and dependencies.
type Options struct {
	// Platform is required. Opens the video and audio timelines.
	Platform Platform

	// Logger receives structured logs. Default: slog.Default().
	Logger *slog.Logger

	// DriftTolerance is the divergence in seconds above which the audio is
	// snapped back to the video.
	// Default: 0.2 seconds.
	DriftTolerance float64

	// Volume is the initial volume in [0,1].
	// Default: 0.8.
	Volume float64

	// Muted starts the player muted.
	Muted bool

	// OffsetStore, if set, restores the sync offset when a video is loaded
	// and saves it on every change.
	OffsetStore OffsetStore

	// FailOnSecondaryError moves the player to Erroring when the audio track
	// fails mid-playback, instead of continuing with video only.
	FailOnSecondaryError bool

	// OnTimeUpdate is called with the video position on every update.
	// It runs on the session goroutine and must not call back into the
	// Player synchronously.
	OnTimeUpdate func(seconds float64)

	// OnDurationChange is called when the video duration becomes known.
	// Same restrictions as OnTimeUpdate.
	OnDurationChange func(seconds float64)
}

func (o *Options) setDefaults() {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.DriftTolerance == 0 {
		o.DriftTolerance = DefaultDriftTolerance
	}
	if o.Volume == 0 {
		o.Volume = DefaultVolume
	}
}

func (o *Options) validate() {
	if o.Platform == nil {
		panic("avsync: Platform is required")
	}
	if o.DriftTolerance < 0 {
		panic("avsync: DriftTolerance must not be negative")
	}
}

func (o *Options) sessionConfig() session.Config {
	return session.Config{
		Platform:             o.Platform,
		Logger:               o.Logger,
		DriftTolerance:       o.DriftTolerance,
		Volume:               o.Volume,
		Muted:                o.Muted,
		OffsetStore:          o.OffsetStore,
		FailOnSecondaryError: o.FailOnSecondaryError,
		OnTimeUpdate:         o.OnTimeUpdate,
		OnDurationChange:     o.OnDurationChange,
	}
}

// Player is the host-facing transport for one dual-track source at a time.
//
// Each Load creates a new sync session that owns both timelines; the previous
// session is torn down first. All methods are safe for concurrent use.
// Transport commands are serialized per session, so rapid repeated calls
// never race start against stop.
type Player struct {
	opts Options

	mu      sync.Mutex
	source  Source
	loaded  bool
	session *session.Session
	closed  bool
}

// NewPlayer creates a Player with the given options.
// It panics if Platform is nil.
func NewPlayer(opts Options) *Player {
	opts.validate()
	opts.setDefaults()
	return &Player{opts: opts}
}

// Load tears down any current session and opens src in a new one, in the
// Stopped state. Resource failures are not returned here; they show up in
// State as Erroring once the platform reports them.
func (p *Player) Load(ctx context.Context, src Source) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrSessionClosed
	}
	if src.VideoLocator == "" {
		return ErrNoVideoLocator
	}

	p.teardownLocked()

	s, err := session.New(ctx, p.opts.sessionConfig(), src)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	p.source = src
	p.loaded = true
	p.session = s
	return nil
}

// Retry recreates the session for the current source from Stopped. The sync
// offset starts over unless an OffsetStore remembers it.
func (p *Player) Retry(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrSessionClosed
	}
	if !p.loaded {
		return ErrNoSession
	}

	p.teardownLocked()

	s, err := session.New(ctx, p.opts.sessionConfig(), p.source)
	if err != nil {
		return fmt.Errorf("reopen session: %w", err)
	}
	p.session = s
	p.opts.Logger.Info("playback retried", "video_id", p.source.VideoID, "session_id", s.ID())
	return nil
}

// Close stops and releases both timelines. The Player cannot be used
// afterwards.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.teardownLocked()
	p.closed = true
	return nil
}

func (p *Player) teardownLocked() {
	if p.session == nil {
		return
	}
	if err := p.session.Close(); err != nil {
		p.opts.Logger.Warn("close session", "session_id", p.session.ID(), "error", err)
	}
	p.session = nil
}

func (p *Player) current() (*session.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		if p.closed {
			return nil, ErrSessionClosed
		}
		return nil, ErrNoSession
	}
	return p.session, nil
}

// State returns the current presentation snapshot. It never blocks on an
// in-flight command.
func (p *Player) State() Presentation {
	s, err := p.current()
	if err != nil {
		return Presentation{
			State:       PlayStopped,
			Volume:      p.opts.Volume,
			IsMuted:     p.opts.Muted,
			TimeLabel:   present.TimeLabel(0, 0),
			OffsetLabel: (&trim.Offset{}).Label(),
		}
	}
	return s.State()
}

// Err returns the error behind State().ErrorMessage, or nil.
func (p *Player) Err() error {
	s, err := p.current()
	if err != nil {
		return nil
	}
	return s.Err()
}

// Source returns the currently loaded source.
func (p *Player) Source() (Source, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source, p.loaded
}

// TogglePlayPause pauses both tracks when playing, otherwise aligns the audio
// to the video and starts both. It returns once both tracks have acknowledged
// or one of them has failed.
func (p *Player) TogglePlayPause(ctx context.Context) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.TogglePlayPause(ctx)
}

// Seek moves both tracks to seconds, the audio shifted by the sync offset.
func (p *Player) Seek(seconds float64) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.Seek(seconds)
}

// SeekToFraction seeks to a fraction in [0,1] of the video duration.
func (p *Player) SeekToFraction(fraction float64) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.SeekToFraction(fraction)
}

func (p *Player) SetVolume(volume float64) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.SetVolume(volume)
}

func (p *Player) SetMuted(muted bool) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.SetMuted(muted)
}

func (p *Player) ToggleMute() error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.ToggleMute()
}

// AdjustOffset adds delta seconds to the sync offset. Positive values move
// the audio later relative to the video.
func (p *Player) AdjustOffset(delta float64) error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.AdjustOffset(delta)
}

func (p *Player) ResetOffset() error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.ResetOffset()
}

// RequestFullscreen forwards to the video timeline if it implements
// Fullscreener. Failures are logged, never returned.
func (p *Player) RequestFullscreen() error {
	s, err := p.current()
	if err != nil {
		return err
	}
	return s.RequestFullscreen()
}

// FormatTime renders seconds as m:ss, or h:mm:ss from one hour up.
func FormatTime(seconds float64) string {
	return present.FormatTime(seconds)
}

// Prober reports the duration and stream details of a resource.
type Prober = timeline.Prober

// ClockedOptions configures the headless platform.
type ClockedOptions struct {
	// Prober resolves resource metadata. Default: ffprobe at FFprobePath.
	Prober Prober

	// FFprobePath is the ffprobe binary used by the default Prober.
	// Default: "ffprobe" from PATH.
	FFprobePath string

	// Clock drives positions. Default: the real clock.
	Clock clockwork.Clock

	// TickInterval is the period of position updates while playing.
	// Default: 250ms.
	TickInterval time.Duration

	Logger *slog.Logger
}

// ClockedPlatform opens timelines that advance with a clock rather than a
// decoder. Useful for servers, CLIs and tests that need the sync behavior
// without rendering media.
type ClockedPlatform = timeline.Platform

// NewClockedPlatform creates a headless Platform.
func NewClockedPlatform(opts ClockedOptions) *ClockedPlatform {
	prober := opts.Prober
	if prober == nil {
		prober = probe.NewProber(opts.FFprobePath)
	}
	return timeline.NewPlatform(timeline.Options{
		Prober:       prober,
		Clock:        opts.Clock,
		TickInterval: opts.TickInterval,
		Logger:       opts.Logger,
	})
}

// SQLiteOffsetStore is an OffsetStore backed by a SQLite file.
type SQLiteOffsetStore = offsetstore.Store

// OpenOffsetStore opens or creates the offset database at path.
func OpenOffsetStore(path string) (*SQLiteOffsetStore, error) {
	store, err := offsetstore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open offset store: %w", err)
	}
	return store, nil
}
