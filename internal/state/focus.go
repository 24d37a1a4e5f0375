package state

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// Focus returns a copy of the active session, or nil.
func (m *Manager) Focus() *session.FocusSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Focus.Clone()
}

func (m *Manager) HasFocus() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Focus != nil
}

// Generation is bumped on every session start and end.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Generation
}

// StartFocus replaces any active session with s and resets per-session
// state: the checked-URL set, the recent-visit log and the absence
// baseline.
func (m *Manager) StartFocus(s session.FocusSession, now time.Time) *session.FocusSession {
	m.mu.Lock()
	m.state.Generation++
	s.Generation = m.state.Generation
	if s.StartTime.IsZero() {
		s.StartTime = now
	}
	m.state.Focus = s.Clone()

	m.gate.Checking = false
	m.gate.clearChecked()
	m.gate.LastFocusVisit = now
	m.visits = nil

	m.persist()
	started := m.state.Focus.Clone()
	m.mu.Unlock()

	m.notify(SessionStarted, started)
	return started
}

// EndFocus clears the active session and returns it. In-flight work bound
// to the old generation becomes stale.
func (m *Manager) EndFocus() (*session.FocusSession, bool) {
	m.mu.Lock()
	ended := m.state.Focus
	if ended == nil {
		m.mu.Unlock()
		return nil, false
	}
	m.state.Focus = nil
	m.state.Generation++

	m.gate.Checking = false
	m.gate.clearChecked()
	m.gate.LastFocusVisit = time.Time{}

	m.persist()
	m.mu.Unlock()

	m.notify(SessionEnded, ended)
	return ended.Clone(), true
}

// UpdateFocus applies fn to the active session if it still carries
// generation gen.
func (m *Manager) UpdateFocus(gen uint64, fn func(*session.FocusSession)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Focus == nil {
		return ErrNoFocusSession
	}
	if m.state.Focus.Generation != gen {
		return ErrStaleSession
	}
	fn(m.state.Focus)
	m.persist()
	return nil
}

// ModifyFocus applies fn to whichever session is active.
func (m *Manager) ModifyFocus(fn func(*session.FocusSession)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Focus == nil {
		return ErrNoFocusSession
	}
	fn(m.state.Focus)
	m.persist()
	return nil
}
