package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/SoarinFerret/FocusWarden/internal/session"
)

func (s *Store) Todos() ([]session.Todo, error) {
	rows, err := s.db.Query(`SELECT id, text, completed, keywords FROM todos ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	var todos []session.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		todos = append(todos, t)
	}
	return todos, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTodo(row scanner) (session.Todo, error) {
	var (
		t        session.Todo
		keywords string
	)
	if err := row.Scan(&t.ID, &t.Text, &t.Completed, &keywords); err != nil {
		return session.Todo{}, err
	}
	if err := json.Unmarshal([]byte(keywords), &t.Keywords); err != nil {
		return session.Todo{}, fmt.Errorf("decode todo %s keywords: %w", t.ID, err)
	}
	return t, nil
}

func (s *Store) AddTodo(text string, keywords []string) (session.Todo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return session.Todo{}, fmt.Errorf("empty todo")
	}
	if keywords == nil {
		keywords = []string{}
	}
	raw, err := json.Marshal(keywords)
	if err != nil {
		return session.Todo{}, err
	}

	t := session.Todo{ID: uuid.NewString(), Text: text, Keywords: keywords}
	if _, err := s.db.Exec(`INSERT INTO todos (id, text, keywords) VALUES (?, ?, ?)`, t.ID, t.Text, string(raw)); err != nil {
		return session.Todo{}, fmt.Errorf("add todo: %w", err)
	}
	return t, nil
}

// ToggleTodo flips the completed flag and returns the updated todo.
func (s *Store) ToggleTodo(id string) (session.Todo, error) {
	res, err := s.db.Exec(`UPDATE todos SET completed = 1 - completed WHERE id = ?`, id)
	if err != nil {
		return session.Todo{}, fmt.Errorf("toggle todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.Todo{}, ErrNotFound
	}

	t, err := scanTodo(s.db.QueryRow(`SELECT id, text, completed, keywords FROM todos WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return session.Todo{}, ErrNotFound
	}
	return t, err
}

func (s *Store) DeleteTodo(id string) error {
	res, err := s.db.Exec(`DELETE FROM todos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
