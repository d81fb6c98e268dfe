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
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"reelrate/internal/config"
	"reelrate/internal/fetcher"
	"reelrate/internal/log"
	"reelrate/internal/omdb"
	"reelrate/internal/ratelimit"
	"reelrate/internal/search"
	"reelrate/internal/server"
	"reelrate/internal/session"
	"reelrate/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("reelrated %s\n", Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting reelrated", "version", Version)

	st, err := store.Open(cfg.Cache.Dir, cfg.Cache.MemorySize, logger)
	if err != nil {
		return fmt.Errorf("failed to open cache store: %w", err)
	}
	defer st.Close()

	// Without a credential the daemon still serves cached data; lookups
	// that miss the cache report NO_API_KEY.
	var provider fetcher.Provider
	if cfg.HasAPIKey() {
		provider = omdb.NewClient(cfg.OMDB.BaseURL, cfg.OMDB.APIKey, cfg.OMDB.Timeout, logger)
	} else {
		logger.Warn("no omdb api key configured, serving cached data only")
	}

	limiter := ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window())
	f := fetcher.New(st, provider, limiter, logger)
	sess := session.New(f, logger)
	f.OnUpdate(sess.Put)
	searchSvc := search.NewService(st, logger)

	srv := server.New(sess, st, f, searchSvc, cfg.Display, logger)

	// Sweep runs share one singleflight key so overlapping ticks on a slow
	// sweep collapse into a single scan.
	var sweeps singleflight.Group
	janitor := cron.New()
	if _, err := janitor.AddFunc(cfg.Janitor.Schedule, func() {
		sweeps.Do("sweep", func() (interface{}, error) {
			removed := st.Sweep()
			if removed > 0 {
				logger.Info("janitor sweep finished", "removed", removed)
			}
			return nil, nil
		})
	}); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", cfg.Janitor.Schedule, err)
	}
	janitor.Start()
	defer janitor.Stop()

	httpSrv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	return nil
}
