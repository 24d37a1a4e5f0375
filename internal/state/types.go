package state

import (
	"errors"
	"slices"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

const (
	DefaultVisitLimit = 50
	CheckedURLLimit   = 200
)

var (
	ErrNoFocusSession = errors.New("no focus session")
	ErrStaleSession   = errors.New("focus session changed")
)

// State is the top-level structure stored in the state file.
type State struct {
	Focus      *session.FocusSession `json:"focus,omitempty"`
	LastNudge  time.Time             `json:"last_nudge"`
	Generation uint64                `json:"generation"`
	Version    int                   `json:"version"`
	HeartBeat  time.Time             `json:"-"` // not stored in JSON
}

// Gate is the process-wide nudge throttle.
type Gate struct {
	LastNudge      time.Time
	LastDriftCheck time.Time
	// Checking is held while a semantic verdict is outstanding.
	Checking bool
	// Presenting is held while a nudge delivery is outstanding.
	Presenting     bool
	LastFocusVisit time.Time
	LastCheckedURL string
	Checked        []string

	// checkGen is the session generation the outstanding check belongs to.
	checkGen uint64
}

// IsChecked reports whether the sampler already checked base this session.
func (g Gate) IsChecked(base string) bool {
	return slices.Contains(g.Checked, base)
}

// MarkChecked records base, evicting the oldest entry past the cap.
func (g *Gate) MarkChecked(base string) {
	if g.IsChecked(base) {
		return
	}
	g.Checked = append(g.Checked, base)
	if over := len(g.Checked) - CheckedURLLimit; over > 0 {
		g.Checked = slices.Clone(g.Checked[over:])
	}
}

func (g *Gate) clearChecked() {
	g.Checked = nil
	g.LastCheckedURL = ""
}

func (g Gate) clone() Gate {
	g.Checked = slices.Clone(g.Checked)
	return g
}

// TabInfo is what the daemon knows about one browser tab.
type TabInfo struct {
	ID       int       `json:"id"`
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Content  string    `json:"-"`
	OpenedAt time.Time `json:"opened_at"`
}

type Event int

const (
	SessionStarted Event = iota
	SessionEnded
)

func (e Event) String() string {
	switch e {
	case SessionStarted:
		return "session_started"
	case SessionEnded:
		return "session_ended"
	default:
		return "unknown"
	}
}

// Listener receives lifecycle notifications outside the state lock.
type Listener func(Event, *session.FocusSession)
