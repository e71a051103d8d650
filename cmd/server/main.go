package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gridscope/internal/backend"
	"gridscope/internal/config"
	"gridscope/internal/handler"
	"gridscope/internal/hub"
	"gridscope/internal/loader"
	"gridscope/internal/repository"
	"gridscope/internal/repository/sqlite"
	"gridscope/internal/session"
	"gridscope/internal/watcher"
)

// shutdownTimeout bounds graceful HTTP shutdown
const shutdownTimeout = 10 * time.Second

func main() {
	// Command line flags
	configPath := flag.String("config", "", "Config file (default: search the usual locations)")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	dbPath := flag.String("db", "", "SQLite history database (overrides config)")
	caseFile := flag.String("case", "", "Startup case file (overrides config)")
	noWatch := flag.Bool("no-watch", false, "Do not reload the config and case file on change")
	flag.Parse()

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gridscope: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dbPath != "" {
		cfg.History.Path = *dbPath
	}
	if *caseFile != "" {
		cfg.Initial.CaseFile = *caseFile
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	logger.Info("starting gridscope server", "config", path)
	logger.Debug("configuration", "summary", cfg.Summary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, path, !*noWatch, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

func run(ctx context.Context, cfg *config.Config, cfgPath string, watch bool, log *slog.Logger) error {
	// Calculation history is optional
	var history repository.HistoryRepository
	if cfg.History.Path != "" {
		repo, err := sqlite.New(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("open history database: %w", err)
		}
		defer repo.Close()
		history = repo
		log.Info("history database opened", "path", cfg.History.Path)
	}

	client := backend.New(cfg.Backend.URL, cfg.Backend.Timeout.Duration())
	params := cfg.LayoutParams()
	runner := session.NewRunner(session.Deps{
		Backend:  client,
		History:  history,
		Logger:   log,
		Profiles: cfg.LayoutProfiles(),
		Params:   &params,
		Width:    cfg.Viewport.Width,
		Height:   cfg.Viewport.Height,
	})
	events := hub.New(log)

	h := handler.New(runner, events, log)
	h.HistoryLimit = cfg.History.Limit
	server := &http.Server{
		Addr:        cfg.Server.Addr,
		Handler:     h.Routes(),
		ReadTimeout: 10 * time.Second,
		// No write timeout: /events and /ws stay open
		IdleTimeout: 60 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return events.Run(gctx) })
	g.Go(func() error { return events.Forward(gctx, runner.Session().Bus()) })

	if err := runner.Do(gctx, func(s *session.Session) error {
		return initialTopology(gctx, s, cfg.Initial.CaseFile, log)
	}); err != nil {
		cancel()
		return errors.Join(err, g.Wait())
	}

	if watch {
		paths := watchedPaths(cfgPath, cfg.Initial.CaseFile)
		if len(paths) > 0 {
			g.Go(func() error {
				return watcher.WatchMultiple(gctx, paths, watcher.DefaultDebounce, func(path string) {
					reload(runner, path, cfgPath, cfg.Initial.CaseFile, log)
				})
			})
		}
	}

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(sctx)
	})

	return g.Wait()
}

// initialTopology loads the configured case file, falling back to the
// backend (and from there to the built-in sample) when it is missing or
// unreadable
func initialTopology(ctx context.Context, s *session.Session, caseFile string, log *slog.Logger) error {
	if caseFile != "" {
		res, err := loader.LoadFile(caseFile)
		if err == nil {
			return s.InitFrom(res)
		}
		log.Warn("initial case file unusable, asking the backend", "path", caseFile, "error", err)
	}
	return s.Init(ctx)
}

func watchedPaths(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		out = append(out, p)
	}
	return out
}

// reload re-reads whichever watched file changed and hands the result to
// the session goroutine
func reload(runner *session.Runner, changed, cfgPath, caseFile string, log *slog.Logger) {
	switch {
	case cfgPath != "" && samePath(changed, cfgPath):
		cfg, _, err := config.LoadFromPath(cfgPath)
		if err != nil {
			log.Warn("config reload failed, keeping the current layout settings", "error", err)
			return
		}
		profiles, params := cfg.LayoutProfiles(), cfg.LayoutParams()
		if err := runner.Post(func(s *session.Session) { s.ApplyConfig(profiles, params) }); err != nil {
			log.Debug("config reload dropped", "error", err)
			return
		}
		log.Info("config reloaded; server, backend and history settings apply on restart", "path", cfgPath)

	case caseFile != "" && samePath(changed, caseFile):
		res, err := loader.LoadFile(caseFile)
		if err != nil {
			log.Warn("case file reload failed, keeping the current topology", "error", err)
			return
		}
		if err := runner.Post(func(s *session.Session) {
			if err := s.InitFrom(res); err != nil {
				log.Warn("case file install failed", "error", err)
			}
		}); err != nil {
			log.Debug("case file reload dropped", "error", err)
		}
	}
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return absA == absB
}
