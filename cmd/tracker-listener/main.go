package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"mototracker/internal/config"
	"mototracker/internal/listener"
	"mototracker/internal/logging"
	"mototracker/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := storage.Open(cfg.DBPath)
	must(err)
	defer db.Close()

	svc := listener.NewService(db, cfg)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("tracker listener started", "provider", cfg.MailListenerProvider, "interval_sec", cfg.MailListenerIntervalSec, "output_dir", cfg.OutputDir)
	must(svc.Run(ctx))
	slog.Info("tracker listener stopped")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
