package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/gumlog/journal/internal/config"
	"github.com/gumlog/journal/internal/httpapi"
	"github.com/gumlog/journal/internal/journal"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("journald exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	clk := journal.NewClock()

	j, err := journal.Open(dir, cfg, clk, logger, reg)
	if err != nil {
		return err
	}
	j.Start()

	httpSrv := httpapi.NewServer(config.HTTPAddr(), j)
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server stopped unexpectedly", zap.Error(err))
		}
	}()
	logger.Info("journald started", zap.String("dir", dir), zap.String("addr", config.HTTPAddr()))

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("journald shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown failed", zap.Error(err))
	}
	return j.Shutdown()
}
