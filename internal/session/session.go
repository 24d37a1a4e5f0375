package session

import (
	"slices"
	"strings"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
)

// NewVisit builds a URLVisit, bounding its content.
func NewVisit(tabID int, url, title, content string, at time.Time) URLVisit {
	return URLVisit{
		TabID:     tabID,
		URL:       url,
		Title:     title,
		Timestamp: at,
		Content:   eval.Truncate(content, MaxVisitContent),
	}
}

func (s *FocusSession) HasOriginTab() bool {
	return s != nil && s.OriginTabID != nil
}

func (s *FocusSession) IsOriginTab(tabID int) bool {
	return s.HasOriginTab() && *s.OriginTabID == tabID
}

// DisplayTitle is the label nudges use for the focus page.
func (s *FocusSession) DisplayTitle() string {
	if s == nil {
		return ""
	}
	return eval.DisplayName(s.PageTitle, s.PageURL)
}

// TaskName is what gets recorded when the session is completed.
func (s *FocusSession) TaskName() string {
	switch {
	case strings.TrimSpace(s.Description) != "":
		return s.Description
	case s.PageTitle != "":
		return s.PageTitle
	default:
		return "Focus Session"
	}
}

// CompareTitle is the text compared against page titles when no semantic
// verdict is available.
func (s *FocusSession) CompareTitle() string {
	if s.PageTitle != "" {
		return s.PageTitle
	}
	return s.Description
}

// IsResearchPage reports whether url was declared as research.
func (s *FocusSession) IsResearchPage(url string) bool {
	if s == nil || len(s.ResearchPages) == 0 {
		return false
	}
	target := eval.ContextURL(url)
	for _, p := range s.ResearchPages {
		if eval.ContextURL(p.URL) == target {
			return true
		}
	}
	return false
}

// AddResearchPage appends page unless its URL is already present. It
// reports whether the page was added.
func (s *FocusSession) AddResearchPage(page ResearchPage) bool {
	if s.IsResearchPage(page.URL) {
		return false
	}
	s.ResearchPages = append(s.ResearchPages, page)
	return true
}

// Duration is how long the session has been running at now.
func (s *FocusSession) Duration(now time.Time) time.Duration {
	if s.StartTime.IsZero() || now.Before(s.StartTime) {
		return 0
	}
	return now.Sub(s.StartTime)
}

// Clone returns a deep copy safe to hand out of the state lock.
func (s *FocusSession) Clone() *FocusSession {
	if s == nil {
		return nil
	}
	c := *s
	if s.OriginTabID != nil {
		id := *s.OriginTabID
		c.OriginTabID = &id
	}
	if s.OriginWindowID != nil {
		id := *s.OriginWindowID
		c.OriginWindowID = &id
	}
	c.Keywords = slices.Clone(s.Keywords)
	c.ResearchPages = slices.Clone(s.ResearchPages)
	return &c
}
