package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/engine"
	"github.com/SoarinFerret/FocusWarden/internal/pagetext"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/store"
	"github.com/SoarinFerret/FocusWarden/internal/tracker"
)

// Store is the persistence the HTTP API exposes directly.
type Store interface {
	Settings() (session.Settings, error)
	SetSettings(session.Settings) error
	Entries(list store.List) ([]session.ListEntry, error)
	AddPattern(list store.List, pattern string) (bool, error)
	RemovePattern(list store.List, pattern string) error
	Todos() ([]session.Todo, error)
	AddTodo(text string, keywords []string) (session.Todo, error)
	ToggleTodo(id string) (session.Todo, error)
	DeleteTodo(id string) error
	KeywordSuggestions(query string, limit int) ([]string, error)
	CompletedTasksInRange(start, end time.Time) ([]session.CompletedTask, error)
}

type Server struct {
	engine *engine.Engine
	store  Store
	queue  *Queue
	logger *slog.Logger
	now    func() time.Time
}

func NewServer(eng *engine.Engine, st Store, q *Queue, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: eng, store: st, queue: q, logger: logger, now: time.Now}
}

// Serve listens on addr until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/focus", func(r chi.Router) {
			r.Get("/", s.getFocus)
			r.Post("/start", s.startFocus)
			r.Post("/end", s.endFocus)
			r.Post("/complete", s.completeFocus)
			r.Post("/return", s.returnToFocus)
			r.Post("/research", s.addResearch)
		})

		r.Route("/tabs/{tabID}", func(r chi.Router) {
			r.Post("/activated", s.tabActivated)
			r.Post("/navigated", s.tabNavigated)
			r.Delete("/", s.tabRemoved)
			r.Post("/scroll", s.scrollSamples)
			r.Post("/should-nudge", s.shouldNudge)
			r.Get("/pending", s.pending)
			r.Post("/choice", s.nudgeChoice)
			r.Get("/blacklist", s.checkBlacklist)
			r.Post("/blacklist/bypass", s.bypassBlacklist)
		})

		r.Get("/commands", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, s.queue.Commands())
		})

		r.Route("/lists/{list}", func(r chi.Router) {
			r.Get("/", s.listEntries)
			r.Post("/", s.addPattern)
			r.Delete("/", s.removePattern)
		})

		r.Route("/todos", func(r chi.Router) {
			r.Get("/", s.listTodos)
			r.Post("/", s.addTodo)
			r.Post("/{id}/toggle", s.toggleTodo)
			r.Delete("/{id}", s.deleteTodo)
		})

		r.Get("/tasks", s.completedTasks)
		r.Get("/keywords", s.keywordSuggestions)
		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "duration", time.Since(start))
	})
}

var (
	errInvalidBody  = errors.New("invalid_body")
	errInvalidTabID = errors.New("invalid_tab_id")
	errInvalidList  = errors.New("invalid_list")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to the codes the extension understands.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code, status := "internal_error", http.StatusInternalServerError
	switch {
	case errors.Is(err, state.ErrNoFocusSession):
		code, status = "no_focus_session", http.StatusConflict
	case errors.Is(err, engine.ErrOriginTabClosed):
		code, status = "origin_tab_closed", http.StatusGone
	case errors.Is(err, engine.ErrMissingPageURL):
		code, status = "missing_page_url", http.StatusBadRequest
	case errors.Is(err, engine.ErrInvalidChoice):
		code, status = "invalid_choice", http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		code, status = "not_found", http.StatusNotFound
	case errors.Is(err, errInvalidBody), errors.Is(err, errInvalidTabID), errors.Is(err, errInvalidList):
		code, status = err.Error(), http.StatusBadRequest
	default:
		s.logger.Error("request failed", "err", err)
	}
	writeJSON(w, status, map[string]string{"error": code})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func tabID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "tabID"))
	if err != nil || id < 0 {
		return 0, errInvalidTabID
	}
	return id, nil
}

func (s *Server) getFocus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) startFocus(w http.ResponseWriter, r *http.Request) {
	var req engine.StartRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.StartFocus(r.Context(), req))
}

func (s *Server) endFocus(w http.ResponseWriter, _ *http.Request) {
	_, ended := s.engine.EndFocus()
	writeJSON(w, http.StatusOK, map[string]bool{"ended": ended})
}

func (s *Server) completeFocus(w http.ResponseWriter, _ *http.Request) {
	task, ok, err := s.engine.CompleteFocus()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !ok {
		s.writeError(w, state.ErrNoFocusSession)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) returnToFocus(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ReturnToFocus(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type pageRequest struct {
	TabID int    `json:"tab_id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (s *Server) addResearch(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	pages, err := s.engine.AddResearch(r.Context(), req.TabID, req.URL, req.Title)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pages)
}

func (s *Server) tabActivated(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req pageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.engine.TabActivated(id, req.URL, req.Title)
	w.WriteHeader(http.StatusNoContent)
}

type navigationRequest struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	// HTML is the page markup; Text is used as-is when HTML is empty.
	HTML string `json:"html,omitempty"`
	Text string `json:"text,omitempty"`
}

func (s *Server) tabNavigated(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req navigationRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	title, text := req.Title, req.Text
	if req.HTML != "" {
		page, err := pagetext.ExtractString(req.HTML)
		if err != nil {
			s.logger.Warn("failed to extract page text", "tab", id, "err", err)
		} else {
			text = page.Text
			if title == "" {
				title = page.Title
			}
		}
	}
	s.engine.NavigationCompleted(id, req.URL, title, text)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) tabRemoved(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.engine.TabRemoved(id)
	s.queue.Forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) scrollSamples(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var samples []tracker.ScrollSample
	if err := decode(r, &samples); err != nil {
		s.writeError(w, err)
		return
	}
	s.queue.Touch(id)
	writeJSON(w, http.StatusOK, map[string]int{"fired": s.engine.ScrollSamples(id, samples)})
}

func (s *Server) shouldNudge(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.queue.Touch(id)
	d := s.engine.ShouldNudge(r.Context(), id)

	resp := struct {
		ShouldNudge bool           `json:"should_nudge"`
		Reason      string         `json:"reason,omitempty"`
		Nudge       *arbiter.Nudge `json:"nudge,omitempty"`
	}{Reason: d.Reason}
	if d.Outcome == arbiter.Delivered && d.Nudge != nil {
		// the caller shows the nudge itself
		s.queue.Discard(id, d.Nudge.ID)
		resp.ShouldNudge = true
		resp.Nudge = d.Nudge
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) pending(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.queue.Drain(id))
}

type choiceRequest struct {
	Choice arbiter.Choice `json:"choice"`
	URL    string         `json:"url"`
	Title  string         `json:"title"`
}

func (s *Server) nudgeChoice(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req choiceRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.NudgeChoice(r.Context(), id, req.Choice, req.URL, req.Title); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) checkBlacklist(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	blacklisted, reason := s.engine.CheckBlacklist(id, r.URL.Query().Get("url"))
	writeJSON(w, http.StatusOK, struct {
		Blacklisted bool   `json:"is_blacklisted"`
		Reason      string `json:"reason,omitempty"`
	}{blacklisted, reason})
}

func (s *Server) bypassBlacklist(w http.ResponseWriter, r *http.Request) {
	id, err := tabID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req pageRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.engine.BypassBlacklist(id, req.URL); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func listParam(r *http.Request) (store.List, error) {
	list := store.List(chi.URLParam(r, "list"))
	if !list.Valid() {
		return "", errInvalidList
	}
	return list, nil
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	list, err := listParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	entries, err := s.store.Entries(list)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type patternRequest struct {
	Pattern string `json:"pattern"`
}

func (s *Server) addPattern(w http.ResponseWriter, r *http.Request) {
	list, err := listParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var req patternRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Pattern) == "" {
		s.writeError(w, errInvalidBody)
		return
	}
	added, err := s.store.AddPattern(list, req.Pattern)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"added": added})
}

func (s *Server) removePattern(w http.ResponseWriter, r *http.Request) {
	list, err := listParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.RemovePattern(list, r.URL.Query().Get("pattern")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTodos(w http.ResponseWriter, _ *http.Request) {
	todos, err := s.store.Todos()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) addTodo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string   `json:"text"`
		Keywords []string `json:"keywords"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		s.writeError(w, errInvalidBody)
		return
	}
	todo, err := s.store.AddTodo(req.Text, req.Keywords)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, todo)
}

func (s *Server) toggleTodo(w http.ResponseWriter, r *http.Request) {
	todo, err := s.store.ToggleTodo(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todo)
}

func (s *Server) deleteTodo(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteTodo(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// completedTasks lists tasks finished in the last ?days= days (default 7).
func (s *Server) completedTasks(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, errInvalidBody)
			return
		}
		days = n
	}
	end := s.now()
	tasks, err := s.store.CompletedTasksInRange(end.AddDate(0, 0, -days), end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) keywordSuggestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	suggestions, err := s.store.KeywordSuggestions(r.URL.Query().Get("q"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) getSettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := s.store.Settings()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings session.Settings
	if err := decode(r, &settings); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.store.SetSettings(settings); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}
