package state

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// Manager owns all process-wide mutable state: the focus session, the nudge
// gate, the recent-visit log and the tab table. An empty path keeps
// everything in memory.
type Manager struct {
	path       string
	mu         sync.Mutex
	state      *State
	gate       Gate
	visits     []session.URLVisit
	visitLimit int
	tabs       map[int]*TabInfo
	activeTab  int
	hasActive  bool
	listeners  []Listener
	logger     *slog.Logger
}

type Option func(*Manager)

func WithVisitLimit(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.visitLimit = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager loads or initializes a state manager.
func NewManager(path string, opts ...Option) (*Manager, error) {
	m := &Manager{
		path:       path,
		visitLimit: DefaultVisitLimit,
		tabs:       make(map[int]*TabInfo),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if path == "" {
		m.state = &State{HeartBeat: time.Now(), Version: 1}
		return m, nil
	}

	if err := m.load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.state = &State{HeartBeat: time.Now(), Version: 1}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, err
			}
			if err := m.save(); err != nil {
				return nil, err
			}
			return m, nil
		}
		return nil, err
	}

	m.startUpChecks()
	return m, nil
}

// NewMemoryManager returns a manager that never touches disk.
func NewMemoryManager(opts ...Option) *Manager {
	m, _ := NewManager("", opts...)
	return m
}

// load reads the state file into memory.
func (m *Manager) load() error {
	var s State

	info, err := os.Stat(m.path)
	if err != nil {
		return err
	}
	s.HeartBeat = info.ModTime()

	data, err := os.ReadFile(m.path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	m.state = &s
	return nil
}

// save atomically writes the state file to disk. Callers hold mu.
func (m *Manager) save() error {
	if m.path == "" {
		return nil
	}

	tmp := m.path + ".tmp"
	data, err := json.MarshalIndent(m.state, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, m.path)
}

func (m *Manager) persist() {
	if err := m.save(); err != nil {
		m.logger.Warn("failed to save state", "path", m.path, "err", err)
	}
}

// startUpChecks clears a focus session left over from a previous run. Tab
// identifiers do not survive a browser or daemon restart, so the session
// cannot be resumed.
func (m *Manager) startUpChecks() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Focus != nil {
		m.logger.Info("clearing stale focus session", "started", m.state.Focus.StartTime)
		m.state.Focus = nil
		m.state.Generation++
	}
	m.gate.LastNudge = m.state.LastNudge
	m.gate.clearChecked()

	m.state.HeartBeat = time.Now()
	m.persist()
}

// Heartbeat touches the state file so its mtime tracks daemon liveness.
func (m *Manager) Heartbeat() {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := time.Now()
	if m.path != "" {
		os.Chtimes(m.path, t, t)
	}
	m.state.HeartBeat = t
}

// Subscribe registers fn for session lifecycle events.
func (m *Manager) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notify(ev Event, s *session.FocusSession) {
	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(ev, s.Clone())
	}
}
