package store

import (
	"fmt"
	"strings"

	"github.com/SoarinFerret/FocusWarden/internal/eval"
	"github.com/SoarinFerret/FocusWarden/internal/session"
)

// List names a site pattern list.
type List string

const (
	Blacklist List = "blacklist"
	Whitelist List = "whitelist"
)

func (l List) Valid() bool {
	return l == Blacklist || l == Whitelist
}

func (s *Store) Entries(list List) ([]session.ListEntry, error) {
	rows, err := s.db.Query(`SELECT pattern, added_at FROM site_lists WHERE list = ? ORDER BY added_at, pattern`, string(list))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", list, err)
	}
	defer rows.Close()

	var entries []session.ListEntry
	for rows.Next() {
		var (
			e  session.ListEntry
			ms int64
		)
		if err := rows.Scan(&e.Pattern, &ms); err != nil {
			return nil, err
		}
		e.AddedAt = fromMillis(ms)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Patterns returns just the patterns of a list.
func (s *Store) Patterns(list List) ([]string, error) {
	entries, err := s.Entries(list)
	if err != nil {
		return nil, err
	}
	patterns := make([]string, len(entries))
	for i, e := range entries {
		patterns[i] = e.Pattern
	}
	return patterns, nil
}

// AddPattern adds a pattern. It reports false if it was already present.
func (s *Store) AddPattern(list List, pattern string) (bool, error) {
	if !list.Valid() {
		return false, fmt.Errorf("unknown list %q", list)
	}
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return false, fmt.Errorf("empty pattern")
	}
	res, err := s.db.Exec(`INSERT OR IGNORE INTO site_lists (list, pattern, added_at) VALUES (?, ?, ?)`,
		string(list), pattern, toMillis(s.now()))
	if err != nil {
		return false, fmt.Errorf("add to %s: %w", list, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) RemovePattern(list List, pattern string) error {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	res, err := s.db.Exec(`DELETE FROM site_lists WHERE list = ? AND pattern = ?`, string(list), pattern)
	if err != nil {
		return fmt.Errorf("remove from %s: %w", list, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Matches reports whether the URL's host matches any pattern in the list.
func (s *Store) Matches(list List, url string) (bool, error) {
	patterns, err := s.Patterns(list)
	if err != nil {
		return false, err
	}
	return eval.MatchDomain(url, patterns), nil
}
