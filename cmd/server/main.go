// Command server exposes a rowstore table over a small JSON API.
//
// Usage:
//
//	server [-config rowstore.yaml] [-db db.dat]
//
// The listen address comes from http_addr in the config; PORT overrides it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/oda/rowstore/internal/config"
	"github.com/oda/rowstore/internal/logging"
	"github.com/oda/rowstore/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	dbPath := fs.String("db", "", "database file to open at startup")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	srv := NewServer(cfg, metrics.New(), logger)
	if *dbPath != "" {
		if err := srv.Open(*dbPath); err != nil {
			logger.Error("failed to open table", zap.String("path", *dbPath), zap.Error(err))
			return err
		}
	}
	defer func() {
		if err := srv.Close(); err != nil {
			logger.Error("failed to close table", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           withCORS(srv.Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rowstore API server starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// withCORS allows browser clients from any origin.
func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		h.ServeHTTP(w, r)
	})
}
