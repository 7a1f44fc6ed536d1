package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/avsync/internal/domain"

	"github.com/jonboulle/clockwork"
)

// Clocked is a timeline whose position is base + elapsed clock time while
// playing. It stops by itself at the end of the resource.
type Clocked struct {
	locator  string
	stream   domain.StreamType
	clock    clockwork.Clock
	prober   Prober
	tick     time.Duration
	listener domain.Listener
	log      *slog.Logger

	ready  chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	info     *domain.ResourceInfo
	loadErr  error
	base     float64
	anchor   time.Time
	playing  bool
	volume   float64
	muted    bool
	stopTick chan struct{}
	closed   bool
}

func (c *Clocked) load(ctx context.Context) {
	defer c.wg.Done()
	defer close(c.ready)

	info, err := c.prober.Probe(ctx, c.locator, c.stream)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if err != nil {
		c.loadErr = fmt.Errorf("%w: %v", domain.ErrResourceLoad, err)
		loadErr := c.loadErr
		c.mu.Unlock()
		c.log.Debug("timeline load failed", "locator", c.locator, "error", err)
		c.emit(domain.Event{Kind: domain.EventError, Err: loadErr})
		return
	}
	c.info = info
	c.mu.Unlock()

	c.emit(domain.Event{Kind: domain.EventMetadata, Duration: info.Duration})
}

// Play waits for the resource to load, then starts the clock.
func (c *Clocked) Play(ctx context.Context) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrTimelineClosed
	}
	if c.loadErr != nil {
		err := c.loadErr
		c.mu.Unlock()
		return err
	}
	if c.playing {
		c.mu.Unlock()
		c.emit(domain.Event{Kind: domain.EventPlay})
		return nil
	}
	if d := c.info.Duration; d > 0 && c.base >= d {
		c.base = 0
	}
	c.playing = true
	c.anchor = c.clock.Now()
	stop := make(chan struct{})
	c.stopTick = stop
	c.wg.Add(1)
	go c.run(stop)
	c.mu.Unlock()

	c.emit(domain.Event{Kind: domain.EventPlay})
	return nil
}

func (c *Clocked) Pause() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrTimelineClosed
	}
	if !c.playing {
		c.mu.Unlock()
		return nil
	}
	c.base = c.positionLocked()
	c.stopLocked()
	c.mu.Unlock()

	c.emit(domain.Event{Kind: domain.EventPause})
	return nil
}

func (c *Clocked) SetPosition(seconds float64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrTimelineClosed
	}
	if seconds < 0 {
		seconds = 0
	}
	if c.info != nil && c.info.Duration > 0 && seconds > c.info.Duration {
		seconds = c.info.Duration
	}
	c.base = seconds
	c.anchor = c.clock.Now()
	loaded := c.info != nil
	c.mu.Unlock()

	if loaded {
		c.emit(domain.Event{Kind: domain.EventPosition, Position: seconds})
	}
	return nil
}

func (c *Clocked) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positionLocked()
}

func (c *Clocked) SetVolume(volume float64) error {
	if volume < 0 || volume > 1 {
		return fmt.Errorf("volume %v out of range [0,1]", volume)
	}
	c.mu.Lock()
	c.volume = volume
	c.mu.Unlock()
	return nil
}

func (c *Clocked) SetMuted(muted bool) error {
	c.mu.Lock()
	c.muted = muted
	c.mu.Unlock()
	return nil
}

func (c *Clocked) Volume() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.volume
}

func (c *Clocked) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

func (c *Clocked) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// RequestFullscreen always fails: a headless timeline has no surface.
func (c *Clocked) RequestFullscreen() error {
	return domain.ErrFullscreenUnsupported
}

func (c *Clocked) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.playing {
		c.base = c.positionLocked()
		c.stopLocked()
	}
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Clocked) run(stop <-chan struct{}) {
	defer c.wg.Done()

	ticker := c.clock.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			pos, ok, ended := c.advance()
			if !ok {
				return
			}
			c.emit(domain.Event{Kind: domain.EventPosition, Position: pos})
			if ended {
				c.emit(domain.Event{Kind: domain.EventPause})
				return
			}
		}
	}
}

func (c *Clocked) advance() (float64, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.playing || c.closed {
		return 0, false, false
	}
	pos := c.positionLocked()
	if d := c.info.Duration; d > 0 && pos >= d {
		c.base = d
		c.stopLocked()
		return d, true, true
	}
	return pos, true, false
}

func (c *Clocked) positionLocked() float64 {
	pos := c.base
	if c.playing {
		pos += c.clock.Since(c.anchor).Seconds()
	}
	if c.info != nil && c.info.Duration > 0 && pos > c.info.Duration {
		pos = c.info.Duration
	}
	return pos
}

func (c *Clocked) stopLocked() {
	c.playing = false
	if c.stopTick != nil {
		close(c.stopTick)
		c.stopTick = nil
	}
}

func (c *Clocked) emit(ev domain.Event) {
	if c.listener != nil {
		c.listener(ev)
	}
}
