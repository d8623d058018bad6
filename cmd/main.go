package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Nzyazin/miniwallet/internal/core/logger"
	"github.com/Nzyazin/miniwallet/internal/server"
	"github.com/Nzyazin/miniwallet/pkg/config"
)

func main() {
	cfg, err := config.Load("config.env")
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, cleanup, err := logger.NewLogger(cfg.App.LogDir, cfg.App.Env != "production")
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	srv, err := server.NewServer(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField("error", err))
		return
	}

	addr := ":" + cfg.App.Port
	go func() {
		log.Info("Starting server",
			logger.StringField("addr", addr),
			logger.StringField("storage", cfg.App.StorageDriver))

		var err error
		if cfg.App.TLSEnabled() {
			err = srv.RunTLS(addr, cfg.App.TLSCertFile, cfg.App.TLSKeyFile)
		} else {
			err = srv.Run(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", logger.ErrorField("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", logger.ErrorField("error", err))
	}

	log.Info("Server exited properly")
}
