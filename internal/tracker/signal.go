// Package tracker turns raw browsing telemetry into drift signals. Trackers
// only raise candidates; whether a nudge is shown is the arbiter's call.
package tracker

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

type Kind int

const (
	DoomScroll Kind = iota
	RapidSwitch
	Absence
	StableContext
)

func (k Kind) String() string {
	switch k {
	case DoomScroll:
		return "doom_scroll"
	case RapidSwitch:
		return "rapid_switch"
	case Absence:
		return "absence"
	case StableContext:
		return "stable_context"
	default:
		return "unknown"
	}
}

// NeedsVerdict reports whether the signal must be confirmed semantically
// before it can become a nudge.
func (k Kind) NeedsVerdict() bool {
	return k == RapidSwitch || k == StableContext
}

// Signal is a drift candidate raised by a tracker.
type Signal struct {
	Kind  Kind
	TabID int
	URL   string
	Title string
	// Visits is set for RapidSwitch: the in-window visits, focus page excluded.
	Visits []session.URLVisit
	At     time.Time
}
