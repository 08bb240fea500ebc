package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"fairroute/internal/api"
	"fairroute/internal/buildinfo"
	"fairroute/internal/config"
	"fairroute/internal/dispatch"
	"fairroute/internal/integrations/csvdir"
	"fairroute/internal/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.AppEnv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := api.NewServer(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to init server", zap.Error(err))
	}
	defer srv.Close()

	if cfg.ImportDir != "" {
		poller := dispatch.NewPoller(csvdir.New(cfg.ImportDir), srv.Dispatch, cfg.ImportTenant, cfg.ImportInterval)
		poller.Start()
		defer poller.Stop()
		log.Info("watching import directory",
			zap.String("dir", cfg.ImportDir), zap.String("tenant", cfg.ImportTenant), zap.Duration("every", cfg.ImportInterval))
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("API listening", zap.String("addr", httpSrv.Addr), zap.String("version", buildinfo.Version))
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", zap.Error(err))
		}
	case <-ctx.Done():
		log.Info("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			log.Error("shutdown", zap.Error(err))
		}
	}
}
