// Package bridge connects the browser extension to the daemon: an HTTP API
// for tab events and a queue the extension polls for nudges and commands.
package bridge

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
)

type Action string

const (
	ActionActivate Action = "activate"
	ActionClose    Action = "close"
)

// Command is a tab action the extension should perform.
type Command struct {
	Action Action `json:"action"`
	TabID  int    `json:"tab_id"`
}

// Pending is what a tab's content script picks up on each poll.
type Pending struct {
	Nudge     *arbiter.Nudge `json:"nudge,omitempty"`
	Blacklist string         `json:"blacklist_url,omitempty"`
}

// Queue holds nudges until the tab's content script collects them. A nudge
// is only accepted for tabs whose script polled within the surface TTL.
type Queue struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
	seen     map[int]time.Time
	nudges   map[int]arbiter.Nudge
	warnings map[int]string
	commands []Command
}

type QueueOption func(*Queue)

func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) { q.now = now }
}

func WithQueueLogger(l *slog.Logger) QueueOption {
	return func(q *Queue) { q.logger = l }
}

func NewQueue(ttl time.Duration, opts ...QueueOption) *Queue {
	q := &Queue{
		ttl:      ttl,
		now:      time.Now,
		logger:   slog.Default(),
		seen:     make(map[int]time.Time),
		nudges:   make(map[int]arbiter.Nudge),
		warnings: make(map[int]string),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Touch records that the content script of tabID is alive.
func (q *Queue) Touch(tabID int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[tabID] = q.now()
}

func (q *Queue) alive(tabID int) bool {
	last, ok := q.seen[tabID]
	return ok && q.now().Sub(last) <= q.ttl
}

// Present queues n for tabID. A newer nudge replaces one not yet collected.
func (q *Queue) Present(_ context.Context, tabID int, n arbiter.Nudge) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.alive(tabID) {
		q.logger.Debug("no content script for tab", "tab", tabID)
		return false, nil
	}
	q.nudges[tabID] = n
	return true, nil
}

// Drain hands the pending nudge and blacklist warning of tabID to its
// content script and marks the script alive.
func (q *Queue) Drain(tabID int) Pending {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[tabID] = q.now()

	var p Pending
	if n, ok := q.nudges[tabID]; ok {
		p.Nudge = &n
		delete(q.nudges, tabID)
	}
	if url, ok := q.warnings[tabID]; ok {
		p.Blacklist = url
		delete(q.warnings, tabID)
	}
	return p
}

// Discard drops the queued nudge of tabID if it is still the one with id.
func (q *Queue) Discard(tabID int, id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if n, ok := q.nudges[tabID]; ok && n.ID == id {
		delete(q.nudges, tabID)
	}
}

// Forget drops everything queued for a closed tab.
func (q *Queue) Forget(tabID int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.seen, tabID)
	delete(q.nudges, tabID)
	delete(q.warnings, tabID)
}

// Commands returns and clears the queued tab actions.
func (q *Queue) Commands() []Command {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmds := q.commands
	q.commands = nil
	return cmds
}

func (q *Queue) push(c Command) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.commands = append(q.commands, c)
}

func (q *Queue) ActivateTab(_ context.Context, tabID int) error {
	q.push(Command{Action: ActionActivate, TabID: tabID})
	return nil
}

func (q *Queue) CloseTab(_ context.Context, tabID int) error {
	q.push(Command{Action: ActionClose, TabID: tabID})
	q.Forget(tabID)
	return nil
}

func (q *Queue) WarnBlacklisted(_ context.Context, tabID int, url string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.warnings[tabID] = url
	return nil
}
