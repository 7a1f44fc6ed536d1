// Package present maps timeline state to what the viewer sees: the time
// readout and the progress bar.
package present

import (
	"fmt"
	"math"
)

// FormatTime renders seconds as m:ss, or h:mm:ss from one hour up.
// Unknown or negative values render as 0:00.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	total := int64(math.Floor(seconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%d:%02d", minutes, secs)
}

// TimeLabel is the "current / total" readout.
func TimeLabel(current, duration float64) string {
	return FormatTime(current) + " / " + FormatTime(duration)
}

// Progress returns the filled fraction of the progress bar, 0 while the
// duration is unknown.
func Progress(current, duration float64) float64 {
	if !validDuration(duration) {
		return 0
	}
	return Clamp(current/duration, 0, 1)
}

// FractionToSeconds maps a progress-bar fraction to an absolute position.
// It reports false when the duration is not known yet.
func FractionToSeconds(fraction, duration float64) (float64, bool) {
	if !validDuration(duration) || math.IsNaN(fraction) {
		return 0, false
	}
	return Clamp(fraction, 0, 1) * duration, true
}

// ClampSeek bounds a seek target to [0, duration]; with an unknown duration
// only the lower bound applies.
func ClampSeek(target, duration float64, durationKnown bool) float64 {
	if math.IsNaN(target) || target < 0 {
		return 0
	}
	if durationKnown && validDuration(duration) && target > duration {
		return duration
	}
	return target
}

func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func validDuration(d float64) bool {
	return d > 0 && !math.IsNaN(d) && !math.IsInf(d, 0)
}
