package state

import (
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
)

// Gate returns a snapshot of the throttle state.
func (m *Manager) Gate() Gate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gate.clone()
}

// UpdateGate runs fn with exclusive access to the throttle state.
func (m *Manager) UpdateGate(fn func(*Gate)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.gate)
}

// BeginCheck claims the single semantic-check slot for the current session
// and returns the generation that owns it.
func (m *Manager) BeginCheck() (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate.Checking {
		return 0, false
	}
	m.gate.Checking = true
	m.gate.checkGen = m.state.Generation
	return m.state.Generation, true
}

// EndCheck releases the check slot claimed for generation gen. A check
// whose session has since ended or been replaced no longer owns the slot
// and leaves it alone. stampThrottle restarts the drift-check throttle
// window at now.
func (m *Manager) EndCheck(gen uint64, now time.Time, stampThrottle bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.gate.Checking || m.gate.checkGen != gen {
		return
	}
	m.gate.Checking = false
	if stampThrottle {
		m.gate.LastDriftCheck = now
	}
}

// ReserveNudge claims the delivery slot if the cooldown has elapsed and no
// other delivery is outstanding. Every successful reservation must be
// followed by CompleteNudge.
func (m *Manager) ReserveNudge(now time.Time, cooldown time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gate.Presenting || !eval.CooldownElapsed(m.gate.LastNudge, now, cooldown) {
		return false
	}
	m.gate.Presenting = true
	return true
}

// CompleteNudge releases the delivery slot and, on delivery, starts the
// cooldown at now.
func (m *Manager) CompleteNudge(delivered bool, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate.Presenting = false
	if delivered {
		m.gate.LastNudge = now
		m.state.LastNudge = now
		m.persist()
	}
}

// StampNudge restarts the cooldown without a delivery, e.g. after the user
// answered a nudge.
func (m *Manager) StampNudge(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate.LastNudge = now
	m.state.LastNudge = now
	m.persist()
}

func (m *Manager) CooldownElapsed(now time.Time, cooldown time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return eval.CooldownElapsed(m.gate.LastNudge, now, cooldown)
}

// StampFocusVisit restarts the absence window.
func (m *Manager) StampFocusVisit(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate.LastFocusVisit = now
}

// ResetLastCheckedURL forgets the sampler's previous observation.
func (m *Manager) ResetLastCheckedURL() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate.LastCheckedURL = ""
}
