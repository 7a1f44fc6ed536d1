// Package timeline provides a headless Platform whose timelines advance with
// a clock instead of a decoder. Resource metadata comes from a Prober, and
// position updates are emitted at a fixed tick interval while playing.
package timeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/eleven-am/avsync/internal/domain"

	"github.com/jonboulle/clockwork"
)

// DefaultTickInterval matches the cadence at which browsers fire timeupdate.
const DefaultTickInterval = 250 * time.Millisecond

var errEmptyLocator = errors.New("empty locator")

type Prober interface {
	Probe(ctx context.Context, locator string, stream domain.StreamType) (*domain.ResourceInfo, error)
}

type Options struct {
	// Prober is required. It turns a locator into duration and codec info.
	Prober Prober

	// Clock drives positions and ticks. Default: the real clock.
	Clock clockwork.Clock

	// TickInterval is the period of position updates while playing.
	// Default: 250ms.
	TickInterval time.Duration

	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type Platform struct {
	opts Options
}

func NewPlatform(opts Options) *Platform {
	if opts.Prober == nil {
		panic("timeline: Prober is required")
	}
	opts.setDefaults()
	return &Platform{opts: opts}
}

func (p *Platform) Open(ctx context.Context, locator string, stream domain.StreamType, listener domain.Listener) (domain.Timeline, error) {
	if locator == "" {
		return nil, errEmptyLocator
	}

	loadCtx, cancel := context.WithCancel(ctx)
	c := &Clocked{
		locator:  locator,
		stream:   stream,
		clock:    p.opts.Clock,
		prober:   p.opts.Prober,
		tick:     p.opts.TickInterval,
		listener: listener,
		log:      p.opts.Logger.With("stream", string(stream)),
		ready:    make(chan struct{}),
		cancel:   cancel,
		volume:   1,
	}

	c.wg.Add(1)
	go c.load(loadCtx)

	return c, nil
}
