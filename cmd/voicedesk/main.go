package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/antoniostano/voicedesk/internal/app"
	"github.com/antoniostano/voicedesk/internal/config"
	"github.com/antoniostano/voicedesk/internal/logging"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("dotenv error: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	runCtx, runCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer runCancel()

	built, err := app.Build(runCtx, cfg, logger, app.Options{})
	if err != nil {
		logger.Fatal("build failed", zap.Error(err))
	}
	defer func() {
		if err := built.Cleanup(); err != nil {
			logger.Warn("device cleanup failed", zap.Error(err))
		}
	}()
	logger.Info("audio devices", zap.String("detail", built.DeviceDetail))

	recorderDone := make(chan struct{})
	go func() {
		defer close(recorderDone)
		if err := built.Recorder.Run(runCtx); err != nil {
			logger.Error("recorder stopped", zap.Error(err))
		}
	}()

	var httpServer *http.Server
	if cfg.ControlAPIEnabled() {
		httpServer = &http.Server{
			Addr:    cfg.BindAddr,
			Handler: built.API.Router(),
		}
		go func() {
			logger.Info("control api listening", zap.String("addr", cfg.BindAddr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("listen error", zap.Error(err))
				runCancel()
			}
		}()
	}

	console := app.NewConsole(logger.Named("console"), os.Stdout, built.Recorder, built.Speech, built.Feed)
	if err := console.Run(runCtx, os.Stdin); err != nil {
		logger.Warn("console stopped", zap.Error(err))
	}
	logger.Info("shutdown signal received")

	runCancel()
	<-recorderDone
	if httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed", zap.Error(err))
			_ = httpServer.Close()
		}
	}

	logger.Info("shutdown complete")
}
