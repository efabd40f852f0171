package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/clickhub/clickhub/agent/internal/clicker"
	"github.com/clickhub/clickhub/agent/internal/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	verbose := flag.Bool("v", false, "log at debug level")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("clickhub-clicker starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_url", cfg.Clicker.ServerURL,
		"connections", cfg.Clicker.Connections,
		"click_interval", cfg.Clicker.ClickInterval,
		"clicks", cfg.Clicker.Clicks,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rep, err := clicker.New(cfg.Clicker).Run(ctx)

	attrs := []any{
		"sessions", rep.Sessions,
		"clicks_sent", rep.ClicksSent,
		"click_responses", rep.ClickResponses,
		"lost", rep.Lost(),
		"global_updates", rep.GlobalUpdates,
		"pongs", rep.Pongs,
		"last_total", rep.LastTotal,
	}
	if rep.Scraped {
		attrs = append(attrs, "server_clicks", rep.ServerClicks)
	}
	slog.Info("clickhub-clicker finished", attrs...)

	if err != nil {
		slog.Error("clicker run failed", "err", err)
		os.Exit(1)
	}
}
