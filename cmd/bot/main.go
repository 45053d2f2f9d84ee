package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/Armin-kho/price-drop-bot/internal/bot"
	"github.com/Armin-kho/price-drop-bot/internal/config"
	"github.com/Armin-kho/price-drop-bot/internal/logger"
)

func main() {
	cfgPath := flag.String("config", config.DefaultConfigPath(), "path to config file (json or yaml)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	lg := logger.NewLogger(cfg.LogLevel)
	if cfg.Debug {
		lg.SetLevel("debug")
	}

	app, err := bot.New(cfg, lg)
	if err != nil {
		log.Fatalf("init error: %v", err)
	}
	defer app.Close()

	// Graceful stop
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		lg.Error("run error", "err", err)
		return
	}
	lg.Info("shutting down")
}
