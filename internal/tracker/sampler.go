package tracker

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/state"
)

// ContextSampler raises StableContext once per page per session, when the
// active tab shows the same base URL on two consecutive ticks.
type ContextSampler struct {
	state *state.Manager
}

func NewContextSampler(sm *state.Manager) *ContextSampler {
	return &ContextSampler{state: sm}
}

func (c *ContextSampler) Tick(tabID int, url, title string, now time.Time) (Signal, bool) {
	if url == "" {
		return Signal{}, false
	}
	base := eval.BaseURL(url)

	fire := false
	c.state.UpdateGate(func(g *state.Gate) {
		if g.IsChecked(base) {
			return
		}
		if g.LastCheckedURL == base {
			g.MarkChecked(base)
			fire = true
		}
		g.LastCheckedURL = base
	})
	if !fire {
		return Signal{}, false
	}
	return Signal{Kind: StableContext, TabID: tabID, URL: url, Title: title, At: now}, true
}

// Reset forgets the previous tick, so switching tabs restarts the dwell.
func (c *ContextSampler) Reset() {
	c.state.ResetLastCheckedURL()
}
