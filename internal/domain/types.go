package domain

type StreamType string

const (
	StreamVideo StreamType = "video"
	StreamAudio StreamType = "audio"
)

// Source identifies one playable item. AudioLocator is optional; when it is
// empty or equal to VideoLocator the item plays as a single timeline.
type Source struct {
	VideoID      string
	VideoLocator string
	AudioLocator string
}

func (s Source) DualTrack() bool {
	return s.AudioLocator != "" && s.AudioLocator != s.VideoLocator
}

type PlayState int

const (
	PlayStopped PlayState = iota
	PlayPlaying
	PlayPaused
	PlayErroring
)

func (s PlayState) String() string {
	switch s {
	case PlayStopped:
		return "stopped"
	case PlayPlaying:
		return "playing"
	case PlayPaused:
		return "paused"
	case PlayErroring:
		return "erroring"
	default:
		return "unknown"
	}
}

// ResourceInfo is the metadata reported once a resource becomes decodable.
type ResourceInfo struct {
	Duration  float64
	Codec     string
	Width     int
	Height    int
	FrameRate float64
	Channels  int
	Bitrate   int
}

// Presentation is the read-only view of a session handed to the embedding UI.
type Presentation struct {
	SessionID     string
	VideoID       string
	State         PlayState
	CurrentTime   float64
	Duration      float64
	DurationKnown bool
	IsPlaying     bool
	IsMuted       bool
	Volume        float64
	SyncOffset    float64
	ErrorMessage  string
	DualTrack     bool
	Progress      float64
	TimeLabel     string
	OffsetLabel   string
}
