// Command rfpx runs the RFP requirement extraction service: document
// upload, background extraction workers and the review/validation API.
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

	"github.com/tendertrace/rfpx/dbopen"
	"github.com/tendertrace/rfpx/ingest"
	"github.com/tendertrace/rfpx/server"
	"github.com/tendertrace/rfpx/store"
	"github.com/tendertrace/rfpx/trace"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rfpx:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "", "path to YAML config (optional)")
		listen     = flag.String("listen", "", "listen address (overrides config)")
	)
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.Listen = *listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SQL trace persistence: opened with the raw sqlite driver so the trace
	// store's own inserts are not themselves traced.
	if cfg.TraceDBPath != "" {
		traceDB, err := dbopen.Open(cfg.TraceDBPath,
			dbopen.WithMkdirAll(), dbopen.WithSchema(trace.Schema))
		if err != nil {
			return fmt.Errorf("open trace db: %w", err)
		}
		defer traceDB.Close()
		ts := trace.NewStore(traceDB)
		trace.SetStore(ts)
		defer ts.Close()
	}

	st, err := store.Open(cfg.DBPath, dbopen.WithTrace(), dbopen.WithMkdirAll())
	if err != nil {
		return err
	}
	defer st.Close()

	files, err := ingest.NewFileStore(cfg.BlobDir)
	if err != nil {
		return err
	}

	proc := ingest.NewProcessor(st, files, ingest.WithLogger(logger))
	pool := ingest.NewPool(proc, cfg.Workers, cfg.QueueDepth)
	pool.Start(ctx)
	defer pool.Stop()

	if n, err := pool.Recover(); err != nil {
		logger.Warn("recovery scan failed", "error", err)
	} else if n > 0 {
		logger.Info("re-queued interrupted documents", "count", n)
	}

	srv := server.New(cfg, st, files, pool, server.WithLogger(logger))
	srv.StartGC(ctx)
	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Listen)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func logLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
