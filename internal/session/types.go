package session

import "time"

// MaxVisitContent bounds the page text kept on a URLVisit.
const MaxVisitContent = 4000

// FocusSession is the user-declared task drift is measured against.
type FocusSession struct {
	OriginTabID    *int           `json:"origin_tab_id,omitempty"`
	OriginWindowID *int           `json:"origin_window_id,omitempty"`
	PageTitle      string         `json:"page_title,omitempty"`
	PageURL        string         `json:"page_url,omitempty"`
	FaviconURL     string         `json:"favicon_url,omitempty"`
	Description    string         `json:"description,omitempty"`
	Keywords       []string       `json:"keywords,omitempty"`
	ContentSummary string         `json:"content_summary,omitempty"`
	ResearchPages  []ResearchPage `json:"research_pages,omitempty"`
	StartTime      time.Time      `json:"start_time"`
	Generation     uint64         `json:"generation"`
}

// ResearchPage is a URL the user declared a legitimate detour.
type ResearchPage struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// URLVisit records one observation of a tab showing a URL.
type URLVisit struct {
	TabID     int       `json:"tab_id"`
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content,omitempty"`
}

type CompletedTask struct {
	ID            string        `json:"id"`
	TaskName      string        `json:"task_name"`
	CompletedAt   time.Time     `json:"completed_at"`
	FocusDuration time.Duration `json:"focus_duration,omitempty"`
}

type Todo struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Completed bool     `json:"completed"`
	Keywords  []string `json:"keywords,omitempty"`
}

type KeywordEntry struct {
	Keyword  string    `json:"keyword"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"last_used"`
}

// ListEntry is one blacklist or whitelist pattern.
type ListEntry struct {
	Pattern string    `json:"pattern"`
	AddedAt time.Time `json:"added_at"`
}

type Settings struct {
	AIEnabled bool `json:"ai_enabled"`
}
