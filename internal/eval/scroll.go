package eval

// ScrollPolicy holds the doom-scroll thresholds.
type ScrollPolicy struct {
	// ViewportMultiple: distance must exceed this many viewports (condition A).
	ViewportMultiple float64
	// MinRatio is the average px/s required for condition A.
	MinRatio float64
	// ExpansionThreshold is the number of page-height doublings for condition B.
	ExpansionThreshold int
	// ExpansionMultiple: distance must exceed this many viewports (condition B).
	ExpansionMultiple float64
}

// DefaultScrollPolicy returns the stock thresholds.
func DefaultScrollPolicy() ScrollPolicy {
	return ScrollPolicy{
		ViewportMultiple:   5,
		MinRatio:           50,
		ExpansionThreshold: 3,
		ExpansionMultiple:  2.5,
	}
}

// ScrollMetrics is a snapshot of one page's scroll accumulator.
type ScrollMetrics struct {
	Distance   float64
	Viewport   float64
	Elapsed    float64 // seconds
	Expansions int
}

// MindfulnessRatio is the average downward speed in px/s, 0 when no time
// has elapsed.
func MindfulnessRatio(distance, elapsedSeconds float64) float64 {
	if elapsedSeconds <= 0 {
		return 0
	}
	return distance / elapsedSeconds
}

// DoomScroll reports whether the metrics match the doom-scroll signature.
// Without a known viewport height nothing matches.
func DoomScroll(m ScrollMetrics, p ScrollPolicy) bool {
	if m.Viewport <= 0 {
		return false
	}
	ratio := MindfulnessRatio(m.Distance, m.Elapsed)
	fastAndFar := m.Distance > p.ViewportMultiple*m.Viewport && ratio > p.MinRatio
	infiniteFeed := m.Expansions >= p.ExpansionThreshold && m.Distance > p.ExpansionMultiple*m.Viewport
	return fastAndFar || infiniteFeed
}
