package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/joho/godotenv"

	"github.com/SoarinFerret/FocusWarden/internal/arbiter"
	"github.com/SoarinFerret/FocusWarden/internal/bridge"
	"github.com/SoarinFerret/FocusWarden/internal/cdp"
	"github.com/SoarinFerret/FocusWarden/internal/config"
	"github.com/SoarinFerret/FocusWarden/internal/engine"
	"github.com/SoarinFerret/FocusWarden/internal/ipc"
	"github.com/SoarinFerret/FocusWarden/internal/llm"
	"github.com/SoarinFerret/FocusWarden/internal/loginctl"
	"github.com/SoarinFerret/FocusWarden/internal/notify"
	"github.com/SoarinFerret/FocusWarden/internal/pagetext"
	"github.com/SoarinFerret/FocusWarden/internal/session"
	"github.com/SoarinFerret/FocusWarden/internal/state"
	"github.com/SoarinFerret/FocusWarden/internal/store"
	"github.com/SoarinFerret/FocusWarden/internal/verdict"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	// check for argument to determine config location
	argPath := config.DefaultPath()
	if len(os.Args) > 1 {
		argPath = os.Args[1]
	}
	cfg, err := config.LoadConfigFromFile(argPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Daemon.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("using config file", "path", argPath)

	if err := run(cfg, logger); err != nil {
		logger.Error("focuswardend failed", "err", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	db, err := store.Open(cfg.Daemon.DBPath, store.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer db.Close()

	stateMgr, err := state.NewManager(cfg.Daemon.StatePath,
		state.WithVisitLimit(cfg.Policy.VisitLogSize),
		state.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to initialize state manager: %w", err)
	}
	stateMgr.Subscribe(func(ev state.Event, s *session.FocusSession) {
		logger.Debug("focus session event", "event", ev.String(), "task", s.TaskName())
	})

	var model llm.Model
	if *cfg.AI.Enabled {
		client := llm.NewClient(cfg.AI.Endpoint, cfg.AI.Model)
		if client.Available(ctx) {
			logger.Info("language model available", "endpoint", cfg.AI.Endpoint, "model", cfg.AI.Model)
		} else {
			logger.Warn("language model not reachable, title matching is used until it is", "endpoint", cfg.AI.Endpoint)
		}
		model = client
	}
	unsubscribe := db.OnSettingsChange(func(s session.Settings) {
		logger.Info("settings changed", "ai_enabled", s.AIEnabled, "model_configured", model != nil)
	})
	defer unsubscribe()

	queue := bridge.NewQueue(cfg.Notify.SurfaceTTL.Std(), bridge.WithQueueLogger(logger))
	presenters := notify.Chain{queue}

	systemConn, err := dbus.ConnectSystemBus()
	if err != nil {
		logger.Warn("system bus unavailable", "err", err)
		systemConn = nil
	} else {
		defer systemConn.Close()
	}

	if *cfg.Notify.Desktop {
		userConn, err := notify.ConnectUserBus(systemConn, os.Getpid())
		if err != nil {
			logger.Warn("desktop notifications disabled", "err", err)
		} else {
			defer userConn.Close()
			presenters = append(presenters, notify.NewDesktop(userConn, cfg.Notify.Expire.Std(), logger))
		}
	}

	// The extension bridge is the default browser; a CDP source replaces it
	// when configured.
	var (
		browser engine.Browser      = queue
		source  pagetext.TextSource = stateMgr
		cdpSrc  *cdp.Source
	)
	eng := &lazyEvents{}
	if cfg.Daemon.CDPURL != "" {
		cdpSrc, err = cdp.Connect(ctx, cfg.Daemon.CDPURL, eng, logger)
		if err != nil {
			return err
		}
		defer cdpSrc.Close()
		browser, source = cdpSrc, cdpSrc
	}

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithBrowser(browser),
		engine.WithSummarizer(pagetext.NewSummarizer(source, model, logger)),
	}
	if model != nil {
		opts = append(opts, engine.WithVerdicts(verdict.New(model)))
	}
	if path := os.Getenv("FOCUSWARDEN_MESSAGES"); path != "" {
		catalog, err := loadCatalog(path)
		if err != nil {
			return err
		}
		opts = append(opts, engine.WithArbiterOptions(arbiter.WithCatalog(catalog)))
	}
	focusEngine := engine.New(cfg, stateMgr, db, presenters, opts...)
	eng.set(focusEngine)

	var wg sync.WaitGroup

	// Start the periodic checker
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := focusEngine.Run(ctx); err != nil {
			logger.Error("engine error", "err", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		srv := bridge.NewServer(focusEngine, db, queue, logger)
		if err := srv.Serve(ctx, cfg.Daemon.Listen); err != nil {
			logger.Error("http api error", "err", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := serveFocusWarden(ctx, focusEngine, db, cfg.Daemon.Bus == "system"); err != nil {
			logger.Error("focuswarden d-bus service error", "err", err)
		}
	}()

	if *cfg.Daemon.WatchLogind {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("monitoring logind for sleep and lock")
			if err := loginctl.Watch(ctx, focusEngine, logger); err != nil {
				logger.Warn("logind watcher error", "err", err)
			}
		}()
	}

	if cdpSrc != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := cdpSrc.Run(ctx); err != nil {
				logger.Error("cdp source error", "err", err)
			}
		}()
	}

	wg.Wait()
	return nil
}

func serveFocusWarden(ctx context.Context, eng *engine.Engine, db *store.Store, system bool) error {
	var (
		conn *dbus.Conn
		err  error
	)
	if system {
		conn, err = dbus.ConnectSystemBus()
	} else {
		conn, err = dbus.ConnectSessionBus()
	}
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer conn.Close()

	if err := ipc.Export(conn, &ipc.FocusManager{Engine: eng, Store: db}); err != nil {
		return fmt.Errorf("failed to export interface: %w", err)
	}

	<-ctx.Done()
	return nil
}

func loadCatalog(path string) (*arbiter.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read messages: %w", err)
	}
	catalog, err := arbiter.LoadCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse messages %s: %w", path, err)
	}
	return catalog, nil
}

// lazyEvents lets the CDP source connect before the engine it feeds exists.
type lazyEvents struct {
	mu  sync.Mutex
	eng *engine.Engine
}

func (l *lazyEvents) set(e *engine.Engine) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.eng = e
}

func (l *lazyEvents) get() *engine.Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.eng
}

func (l *lazyEvents) TabActivated(tabID int, url, title string) {
	if e := l.get(); e != nil {
		e.TabActivated(tabID, url, title)
	}
}

func (l *lazyEvents) NavigationCompleted(tabID int, url, title, content string) {
	if e := l.get(); e != nil {
		e.NavigationCompleted(tabID, url, title, content)
	}
}

func (l *lazyEvents) TabRemoved(tabID int) {
	if e := l.get(); e != nil {
		e.TabRemoved(tabID)
	}
}
