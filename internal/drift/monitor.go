package drift

import "math"

// DefaultTolerance is the divergence in seconds above which the follower is
// snapped back to the leader.
const DefaultTolerance = 0.2

// Monitor decides when the follower timeline must be hard-resynced to the
// leader. It never adjusts the leader and never smooths: a correction is a
// single jump to leader+offset.
type Monitor struct {
	tolerance   float64
	disabled    bool
	corrections int
}

func NewMonitor(tolerance float64) *Monitor {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Monitor{tolerance: tolerance}
}

// Evaluate compares the two reported positions and returns the follower
// target when they diverge by more than the tolerance.
func (m *Monitor) Evaluate(leader, follower, offset float64) (float64, bool) {
	if m.disabled {
		return 0, false
	}
	if math.IsNaN(leader) || math.IsNaN(follower) {
		return 0, false
	}
	if math.Abs(leader-follower) <= m.tolerance {
		return 0, false
	}
	m.corrections++
	return leader + offset, true
}

// Disable stops all further corrections. It is permanent for the monitor.
func (m *Monitor) Disable() {
	m.disabled = true
}

func (m *Monitor) Enabled() bool {
	return !m.disabled
}

func (m *Monitor) Tolerance() float64 {
	return m.tolerance
}

func (m *Monitor) Corrections() int {
	return m.corrections
}
