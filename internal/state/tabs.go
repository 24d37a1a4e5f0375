package state

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// RecordVisit appends v to the recent-visit log, trimming the oldest
// entries past the limit.
func (m *Manager) RecordVisit(v session.URLVisit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.visits = append(m.visits, v)
	if over := len(m.visits) - m.visitLimit; over > 0 {
		m.visits = slices.Clone(m.visits[over:])
	}
}

// RecentVisits returns the visits strictly newer than since, oldest first.
func (m *Manager) RecentVisits(since time.Time) []session.URLVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []session.URLVisit
	for _, v := range m.visits {
		if v.Timestamp.After(since) {
			out = append(out, v)
		}
	}
	return out
}

// Visits returns the whole recent-visit log.
func (m *Manager) Visits() []session.URLVisit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.visits)
}

func (m *Manager) tab(id int) *TabInfo {
	t, ok := m.tabs[id]
	if !ok {
		t = &TabInfo{ID: id}
		m.tabs[id] = t
	}
	return t
}

// TabOpened records when a tab was created. Later calls keep the first time.
func (m *Manager) TabOpened(id int, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tab(id)
	if t.OpenedAt.IsZero() {
		t.OpenedAt = at
	}
}

// TabLoaded restarts a tab's open time when it finishes loading a page.
func (m *Manager) TabLoaded(id int, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tab(id).OpenedAt = at
}

// EnsureTabOpened synthesizes an open time for tabs the daemon never saw
// being created.
func (m *Manager) EnsureTabOpened(id int, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tab(id)
	if t.OpenedAt.IsZero() {
		t.OpenedAt = now.Add(-eval.MissingTabAge)
	}
}

// UpdateTab stores the latest URL, title and page text of a tab. Empty
// content keeps what was there for the same URL.
func (m *Manager) UpdateTab(id int, url, title, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tab(id)
	if t.URL != url {
		t.Content = ""
	}
	t.URL = url
	if title != "" {
		t.Title = title
	}
	if content != "" {
		t.Content = eval.Truncate(content, session.MaxVisitContent)
	}
}

// TabClosed forgets a tab.
func (m *Manager) TabClosed(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tabs, id)
	if m.hasActive && m.activeTab == id {
		m.hasActive = false
	}
}

func (m *Manager) TabOpenedAt(id int) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[id]
	if !ok || t.OpenedAt.IsZero() {
		return time.Time{}, false
	}
	return t.OpenedAt, true
}

func (m *Manager) Tab(id int) (TabInfo, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tabs[id]
	if !ok {
		return TabInfo{}, false
	}
	return *t, true
}

// Tabs lists known tabs ordered by ID.
func (m *Manager) Tabs() []TabInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TabInfo, 0, len(m.tabs))
	for _, t := range m.tabs {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) SetActiveTab(id int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeTab = id
	m.hasActive = true
}

func (m *Manager) ActiveTab() (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTab, m.hasActive
}

// PageText returns the last page text reported for a tab.
func (m *Manager) PageText(_ context.Context, id int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tabs[id]; ok {
		return t.Content, nil
	}
	return "", nil
}
