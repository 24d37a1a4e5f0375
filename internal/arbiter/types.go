package arbiter

import (
	"context"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

type State int

const (
	Idle State = iota
	Armed
	Checking
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Checking:
		return "checking"
	default:
		return "unknown"
	}
}

type Outcome int

const (
	// Rejected: no session, cooldown, or per-tab gate.
	Rejected Outcome = iota
	// Dropped: another semantic check was already in flight.
	Dropped
	NotDrifted
	Delivered
	// Undelivered: the presenter could not reach the user.
	Undelivered
	// Stale: the session changed while the verdict was pending.
	Stale
)

func (o Outcome) String() string {
	switch o {
	case Rejected:
		return "rejected"
	case Dropped:
		return "dropped"
	case NotDrifted:
		return "not_drifted"
	case Delivered:
		return "delivered"
	case Undelivered:
		return "undelivered"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

// Decision is the result of handling one signal.
type Decision struct {
	Outcome Outcome
	Reason  string
	Nudge   *Nudge
}

type Category string

const (
	CategoryDoomScroll   Category = "doomScroll"
	CategoryRapidSwitch  Category = "rapidSwitch"
	CategoryStagnantTab  Category = "stagnantTab"
	CategoryFocusTabAway Category = "focusTabAway"
	CategoryStandard     Category = "standard"
)

// FocusInfo is how the focus page is shown inside a nudge.
type FocusInfo struct {
	Title       string `json:"title"`
	DisplayName string `json:"display_name"`
	URL         string `json:"url"`
	FaviconURL  string `json:"favicon_url,omitempty"`
	OriginTabID *int   `json:"origin_tab_id,omitempty"`
}

// Nudge is an instruction to interrupt the user.
type Nudge struct {
	ID       string    `json:"id"`
	Category Category  `json:"category"`
	Title    string    `json:"title"`
	Body     string    `json:"body"`
	Reason   string    `json:"reason,omitempty"`
	Focus    FocusInfo `json:"focus"`
	TabID    int       `json:"tab_id"`
	At       time.Time `json:"at"`
}

// Choice is the user's answer to a nudge.
type Choice string

const (
	ChoiceDismiss       Choice = "dismiss"
	ChoiceMarkResearch  Choice = "markResearch"
	ChoiceReturnToFocus Choice = "returnToFocus"
)

func (c Choice) Valid() bool {
	switch c {
	case ChoiceDismiss, ChoiceMarkResearch, ChoiceReturnToFocus:
		return true
	default:
		return false
	}
}

// Verdict is a semantic judgment about the current browsing.
type Verdict struct {
	IsDrifted bool   `json:"is_drifted"`
	Reason    string `json:"reason"`
}

// ContentInput is what the content-similarity check compares.
type ContentInput struct {
	Session  *session.FocusSession
	Title    string
	Content  string
	URL      string
	Language string
}

type SettingsSource interface {
	Settings() (session.Settings, error)
}

// Summarizer produces bounded plain-text digests of page content. An empty
// digest means no content was available.
type Summarizer interface {
	TabSummary(ctx context.Context, tabID int) (string, error)
	BatchSummary(ctx context.Context, visits []session.URLVisit) (string, error)
}

type Verdicts interface {
	CheckContentSimilarity(ctx context.Context, in ContentInput) (Verdict, error)
	AnalyzeTabSwitching(ctx context.Context, s *session.FocusSession, summary, language string) (Verdict, error)
}

// Presenter shows a nudge. It reports false when the target surface could
// not be reached.
type Presenter interface {
	Present(ctx context.Context, tabID int, n Nudge) (bool, error)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(ctx context.Context, tabID int, n Nudge) (bool, error)

func (f PresenterFunc) Present(ctx context.Context, tabID int, n Nudge) (bool, error) {
	return f(ctx, tabID, n)
}
