package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/clickhub/clickhub/server/internal/api"
	"github.com/clickhub/clickhub/server/internal/config"
	"github.com/clickhub/clickhub/server/internal/counter"
	"github.com/clickhub/clickhub/server/internal/metrics"
	"github.com/clickhub/clickhub/server/internal/registry"
	"github.com/clickhub/clickhub/server/internal/ws"
)

const defaultConfigPath = "config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to config file")
	flag.Parse()

	cfg, fromFile, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	level := new(slog.LevelVar)
	level.Set(cfg.Server.Log.SlogLevel())
	slog.SetDefault(newLogger(cfg.Server.Log.Format, level))

	slog.Info("clickhub-server starting", "config", *configPath, "from_file", fromFile)
	slog.Info("config loaded",
		"addr", cfg.Server.Addr(),
		"ws_path", cfg.Server.WSPath,
		"ping_interval", cfg.Server.WebSocket.PingInterval,
		"metrics", cfg.Server.Metrics.Enabled,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Only the log level is applied live; everything else needs a restart.
	if fromFile {
		go func() {
			err := config.Watch(ctx, *configPath, func(c *config.Config) {
				level.Set(c.Server.Log.SlogLevel())
				slog.Info("log level updated", "level", level.Level())
			})
			if err != nil {
				slog.Error("config watcher stopped", "err", err)
			}
		}()
	}

	promReg := metrics.NewRegistry()
	clock := clockwork.NewRealClock()

	hub := ws.New(counter.New(), registry.New(), ws.Options{
		WriteTimeout: cfg.Server.WebSocket.WriteTimeout,
		PingInterval: cfg.Server.WebSocket.PingInterval,
		PongWait:     cfg.Server.WebSocket.PongWait,
		ReadLimit:    cfg.Server.WebSocket.ReadLimit,
		Clock:        clock,
		Metrics:      metrics.New(promReg),
		Logger:       slog.Default(),
	})
	go hub.Run(ctx)

	// REST API, metrics and the WebSocket hub share one listener. ServeMux
	// picks the longest matching prefix, so the hub at "/" only sees the rest.
	httpMux := http.NewServeMux()
	httpMux.Handle(config.APIPrefix, api.New(hub, clock))
	if cfg.Server.Metrics.Enabled {
		httpMux.Handle(cfg.Server.Metrics.Path, metrics.Handler(promReg))
	}
	httpMux.Handle(cfg.Server.WSPath, hub)

	lis, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		slog.Error("failed to listen", "addr", cfg.Server.Addr(), "err", err)
		os.Exit(1)
	}

	httpSrv := &http.Server{
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("clickhub-server listening", "url", "ws://"+lis.Addr().String()+cfg.Server.WSPath)
		if err := httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("clickhub-server shutting down")

	// Shutdown does not wait for hijacked WebSocket connections; hub.Run has
	// already closed their queues, so the sessions drain on their own.
	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
}

// loadConfig reads path. A missing file at the default path is not an error:
// the server then runs on built-in defaults. fromFile reports whether a file
// was actually read.
func loadConfig(path string) (cfg *config.Config, fromFile bool, err error) {
	cfg, err = config.Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, fs.ErrNotExist) && !flagSet("config") {
		return config.Defaults(), false, nil
	}
	return nil, false, err
}

func flagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func newLogger(format string, level *slog.LevelVar) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
