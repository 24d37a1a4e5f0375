package store

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// AddKeywords bumps the use count of each keyword, keeping the 50 most used.
func (s *Store) AddKeywords(keywords []string) error {
	now := toMillis(s.now())

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		norm := strings.ToLower(kw)
		if norm == "" {
			continue
		}
		_, err := tx.Exec(`INSERT INTO keyword_history (norm, keyword, count, last_used) VALUES (?, ?, 1, ?)
			ON CONFLICT(norm) DO UPDATE SET count = count + 1, last_used = excluded.last_used`,
			norm, kw, now)
		if err != nil {
			return fmt.Errorf("add keyword %q: %w", kw, err)
		}
	}

	_, err = tx.Exec(`DELETE FROM keyword_history WHERE norm NOT IN (
		SELECT norm FROM keyword_history ORDER BY count DESC, last_used DESC LIMIT ?)`, keywordLimit)
	if err != nil {
		return fmt.Errorf("trim keywords: %w", err)
	}
	return tx.Commit()
}

func (s *Store) KeywordHistory() ([]session.KeywordEntry, error) {
	rows, err := s.db.Query(`SELECT keyword, count, last_used FROM keyword_history ORDER BY count DESC, last_used DESC`)
	if err != nil {
		return nil, fmt.Errorf("keyword history: %w", err)
	}
	defer rows.Close()

	var entries []session.KeywordEntry
	for rows.Next() {
		var (
			e  session.KeywordEntry
			ms int64
		)
		if err := rows.Scan(&e.Keyword, &e.Count, &ms); err != nil {
			return nil, err
		}
		e.LastUsed = fromMillis(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// KeywordSuggestions returns the most used keywords containing query. An
// empty query returns the most used keywords overall.
func (s *Store) KeywordSuggestions(query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 5
	}
	history, err := s.KeywordHistory()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	var out []string
	for _, e := range history {
		if len(out) == limit {
			break
		}
		if query == "" || strings.Contains(strings.ToLower(e.Keyword), query) {
			out = append(out, e.Keyword)
		}
	}
	return out, nil
}

// RecordCompletedTask stores a finished focus session, keeping the newest 1000.
func (s *Store) RecordCompletedTask(name string, duration time.Duration) (session.CompletedTask, error) {
	task := session.CompletedTask{
		ID:            uuid.NewString(),
		TaskName:      name,
		CompletedAt:   s.now(),
		FocusDuration: duration,
	}

	tx, err := s.db.Begin()
	if err != nil {
		return session.CompletedTask{}, err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO completed_tasks (id, task_name, completed_at, duration_ms) VALUES (?, ?, ?, ?)`,
		task.ID, task.TaskName, toMillis(task.CompletedAt), duration.Milliseconds())
	if err != nil {
		return session.CompletedTask{}, fmt.Errorf("record task: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM completed_tasks WHERE seq NOT IN (
		SELECT seq FROM completed_tasks ORDER BY seq DESC LIMIT ?)`, completedLimit)
	if err != nil {
		return session.CompletedTask{}, fmt.Errorf("trim tasks: %w", err)
	}
	return task, tx.Commit()
}

// CompletedTasksInRange returns tasks completed within [start, end].
func (s *Store) CompletedTasksInRange(start, end time.Time) ([]session.CompletedTask, error) {
	rows, err := s.db.Query(`SELECT id, task_name, completed_at, duration_ms FROM completed_tasks
		WHERE completed_at >= ? AND completed_at <= ? ORDER BY completed_at`, toMillis(start), toMillis(end))
	if err != nil {
		return nil, fmt.Errorf("completed tasks: %w", err)
	}
	defer rows.Close()

	var tasks []session.CompletedTask
	for rows.Next() {
		var (
			t      session.CompletedTask
			at, ms int64
		)
		if err := rows.Scan(&t.ID, &t.TaskName, &at, &ms); err != nil {
			return nil, err
		}
		t.CompletedAt = fromMillis(at)
		t.FocusDuration = time.Duration(ms) * time.Millisecond
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// AddBypass lets a tab keep showing a blacklisted URL. The newest 100
// bypasses are kept.
func (s *Store) AddBypass(tabID int, url string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT OR IGNORE INTO bypassed_tabs (tab_id, url) VALUES (?, ?)`, tabID, url); err != nil {
		return fmt.Errorf("add bypass: %w", err)
	}
	_, err = tx.Exec(`DELETE FROM bypassed_tabs WHERE seq NOT IN (
		SELECT seq FROM bypassed_tabs ORDER BY seq DESC LIMIT ?)`, bypassLimit)
	if err != nil {
		return fmt.Errorf("trim bypasses: %w", err)
	}
	return tx.Commit()
}

func (s *Store) IsBypassed(tabID int, url string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM bypassed_tabs WHERE tab_id = ? AND url = ?`, tabID, url).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check bypass: %w", err)
	}
	return n > 0, nil
}

// RemoveBypasses forgets every bypass of a tab.
func (s *Store) RemoveBypasses(tabID int) error {
	if _, err := s.db.Exec(`DELETE FROM bypassed_tabs WHERE tab_id = ?`, tabID); err != nil {
		return fmt.Errorf("remove bypasses: %w", err)
	}
	return nil
}
