// Command lantern is a small development server built on the embeddable
// HTTP/1.1 + WebSocket engine. It loads an optional YAML configuration
// file, serves a hello handler and a WebSocket echo handler, and shuts down
// gracefully on SIGTERM or SIGINT.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lanternhq/lantern/internal/config"
	"github.com/lanternhq/lantern/server"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to YAML configuration file (optional)")
		addr       = flag.String("addr", "", "TCP listen address; overrides the config file")
		logLevel   = flag.String("log-level", "", "log level: debug | info | warn | error; overrides the config file")
	)
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lantern: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "lantern: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	// ── Server ────────────────────────────────────────────────────────────────
	opts := cfg.ServerOptions()
	opts.Logger = logger

	srv := server.New(opts,
		&server.AccessLogHandler{Logger: logger},
		server.HandlerFunc(echoSocketHandler),
		server.HandlerFunc(helloHandler),
	)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", slog.Any("error", err))
		os.Exit(1)
	}

	// ── Signal handling ───────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", slog.String("signal", sig.String()))
	srv.Shutdown()
}

// helloHandler answers every remaining request with a greeting.
func helloHandler(req *server.Request, res *server.Response) error {
	return res.ContentType("text/html; charset=utf-8").
		WriteString("<h1>lantern is running</h1>")
}

// echoSocketHandler upgrades /echo requests to a WebSocket session that
// echoes every message back to the client.
func echoSocketHandler(req *server.Request, res *server.Response) error {
	if req.Target != "/echo" {
		return nil
	}
	return server.UpgradeWebSocket(req, res, &echoSocket{}, server.WebSocketOptions{
		Compression: true,
	})
}

type echoSocket struct {
	server.BaseWebSocketHandler
}

func (e *echoSocket) OnText(s *server.WebSocketSession, text string) server.WebSocketHandler {
	if err := s.SendText(text); err != nil {
		slog.Debug("echo send failed", slog.Any("error", err))
	}
	return nil
}

func (e *echoSocket) OnBinary(s *server.WebSocketSession, data []byte) server.WebSocketHandler {
	if err := s.SendBinary(data); err != nil {
		slog.Debug("echo send failed", slog.Any("error", err))
	}
	return nil
}

// newLogger builds a text slog.Logger writing to stderr at the given level.
func newLogger(level string) *slog.Logger {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
