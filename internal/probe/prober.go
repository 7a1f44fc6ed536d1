package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/eleven-am/avsync/internal/domain"
)

var ErrNoStream = errors.New("no matching stream")

type cacheKey struct {
	locator string
	stream  domain.StreamType
}

// Prober reads resource metadata with ffprobe. Results are cached per
// locator and stream type for the life of the Prober.
type Prober struct {
	binary string

	mu    sync.Mutex
	cache map[cacheKey]*domain.ResourceInfo
}

func NewProber(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{
		binary: binary,
		cache:  make(map[cacheKey]*domain.ResourceInfo),
	}
}

func (p *Prober) Probe(ctx context.Context, locator string, stream domain.StreamType) (*domain.ResourceInfo, error) {
	key := cacheKey{locator: locator, stream: stream}

	p.mu.Lock()
	if info, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return info, nil
	}
	p.mu.Unlock()

	info, err := p.probe(ctx, locator, stream)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[key] = info
	p.mu.Unlock()

	return info, nil
}

type ffprobeOutput struct {
	Streams []ffprobeStream `json:"streams"`
	Format  ffprobeFormat   `json:"format"`
}

type ffprobeStream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	RFrameRate string            `json:"r_frame_rate"`
	Channels   int               `json:"channels"`
	BitRate    string            `json:"bit_rate"`
	Duration   string            `json:"duration"`
	Tags       map[string]string `json:"tags"`
}

type ffprobeFormat struct {
	Duration string `json:"duration"`
}

func (p *Prober) probe(ctx context.Context, locator string, stream domain.StreamType) (*domain.ResourceInfo, error) {
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "error",
		"-show_format",
		"-show_streams",
		"-of", "json",
		locator,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w", stream, err)
	}

	var ff ffprobeOutput
	if err := json.Unmarshal(output, &ff); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var match *ffprobeStream
	for i := range ff.Streams {
		if ff.Streams[i].CodecType == string(stream) {
			match = &ff.Streams[i]
			break
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%s in %s: %w", stream, locator, ErrNoStream)
	}

	info := &domain.ResourceInfo{
		Codec:    match.CodecName,
		Width:    match.Width,
		Height:   match.Height,
		Channels: match.Channels,
	}

	if dur, err := strconv.ParseFloat(ff.Format.Duration, 64); err == nil {
		info.Duration = dur
	} else if dur, err := strconv.ParseFloat(match.Duration, 64); err == nil {
		info.Duration = dur
	}

	switch stream {
	case domain.StreamVideo:
		info.FrameRate = parseFrameRate(match.RFrameRate)
		info.Bitrate = parseBitrate(match.Tags["BPS"])
		if info.Bitrate == 0 {
			info.Bitrate = parseBitrate(match.BitRate)
		}
	case domain.StreamAudio:
		info.Bitrate = parseBitrate(match.BitRate)
	}

	return info, nil
}

func parseBitrate(s string) int {
	if s == "" {
		return 0
	}
	v, _ := strconv.Atoi(s)
	return v
}

func parseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, _ := strconv.ParseFloat(parts[0], 64)
	den, _ := strconv.ParseFloat(parts[1], 64)
	if den == 0 {
		return 0
	}
	return num / den
}
