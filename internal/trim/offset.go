// Package trim holds the viewer-adjustable offset added to the follower
// timeline's target position.
package trim

import (
	"fmt"
	"math"
)

// Step is the offset change applied per viewer action.
const Step = 0.1

// Offset is a signed number of seconds kept at millisecond resolution so that
// repeated adjustments add up exactly regardless of order.
type Offset struct {
	millis int64
}

func toMillis(seconds float64) int64 {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

// Adjust adds delta seconds and returns the new offset.
func (o *Offset) Adjust(delta float64) float64 {
	o.millis += toMillis(delta)
	return o.Seconds()
}

func (o *Offset) Set(seconds float64) {
	o.millis = toMillis(seconds)
}

func (o *Offset) Reset() {
	o.millis = 0
}

func (o *Offset) Seconds() float64 {
	return float64(o.millis) / 1000
}

// Label renders the offset for display, one decimal place.
func (o *Offset) Label() string {
	s := o.Seconds()
	if math.Abs(s) < 0.05 {
		s = 0
	}
	return fmt.Sprintf("%.1fs", s)
}
