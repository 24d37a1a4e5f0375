// Package store persists user data that outlives a focus session: settings,
// todos, site lists, keyword history, completed tasks and blacklist bypasses.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

var ErrNotFound = errors.New("not found")

const (
	keywordLimit   = 50
	completedLimit = 1000
	bypassLimit    = 100
)

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS todos (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	id         TEXT NOT NULL UNIQUE,
	text       TEXT NOT NULL,
	completed  INTEGER NOT NULL DEFAULT 0,
	keywords   TEXT NOT NULL DEFAULT '[]'
);
CREATE TABLE IF NOT EXISTS site_lists (
	list     TEXT NOT NULL,
	pattern  TEXT NOT NULL,
	added_at INTEGER NOT NULL,
	PRIMARY KEY (list, pattern)
);
CREATE TABLE IF NOT EXISTS keyword_history (
	norm      TEXT PRIMARY KEY,
	keyword   TEXT NOT NULL,
	count     INTEGER NOT NULL,
	last_used INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS completed_tasks (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	id           TEXT NOT NULL UNIQUE,
	task_name    TEXT NOT NULL,
	completed_at INTEGER NOT NULL,
	duration_ms  INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS completed_tasks_at ON completed_tasks(completed_at);
CREATE TABLE IF NOT EXISTS bypassed_tabs (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	tab_id INTEGER NOT NULL,
	url    TEXT NOT NULL,
	UNIQUE (tab_id, url)
);
`

// Store is a SQLite-backed persistence layer. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	settings  *session.Settings
	listeners map[int]func(session.Settings)
	nextID    int
}

type Option func(*Store)

func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// Open opens or creates the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	// pragmas are per connection
	db.SetMaxOpenConns(1)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}

	s := &Store{
		db:        db,
		logger:    slog.Default(),
		now:       time.Now,
		listeners: make(map[int]func(session.Settings)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

// Settings returns the current settings, defaulting to AI disabled.
func (s *Store) Settings() (session.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.settings != nil {
		return *s.settings, nil
	}

	var raw string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = 'settings'`).Scan(&raw)
	var settings session.Settings
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return session.Settings{}, fmt.Errorf("read settings: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			return session.Settings{}, fmt.Errorf("decode settings: %w", err)
		}
	}
	s.settings = &settings
	return settings, nil
}

// SetSettings stores settings and notifies OnSettingsChange listeners.
func (s *Store) SetSettings(settings session.Settings) error {
	raw, err := json.Marshal(settings)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT INTO settings (key, value) VALUES ('settings', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, string(raw))
	if err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	s.mu.Lock()
	s.settings = &settings
	listeners := make([]func(session.Settings), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(settings)
	}
	return nil
}

// OnSettingsChange registers fn and returns a function that removes it.
func (s *Store) OnSettingsChange(fn func(session.Settings)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
