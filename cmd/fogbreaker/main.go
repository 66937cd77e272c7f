// Package main is the entry point for the Fogbreaker battle server.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fogbreaker/engine/internal/battle"
	"github.com/fogbreaker/engine/internal/config"
	"github.com/fogbreaker/engine/internal/dialogue"
	"github.com/fogbreaker/engine/internal/domain"
	"github.com/fogbreaker/engine/internal/guard"
	"github.com/fogbreaker/engine/internal/ipc"
	"github.com/fogbreaker/engine/internal/levels"
	"github.com/fogbreaker/engine/internal/store"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to configuration JSON file")
	flag.Parse()

	if *showVersion {
		fmt.Printf("fogbreaker %s (commit=%s, built=%s)\n", version, commit, date)
		os.Exit(0)
	}

	if err := config.LoadDotEnv(); err != nil {
		fatal(fmt.Sprintf("load .env: %v", err))
	}

	// Resolve config path: --config flag > FOG_CONFIG env > auto-discover.
	// With no file the server runs on environment and defaults.
	path := *configPath
	if path == "" {
		path = os.Getenv("FOG_CONFIG")
	}
	if path == "" {
		path = discoverConfig()
	}

	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Sprintf("load config: %v", err))
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		fatal(fmt.Sprintf("build logger: %v", err))
	}
	defer logger.Sync()

	ctx := context.Background()

	repo, err := store.Open(ctx, store.Options{
		Engine:        cfg.Store,
		SQLitePath:    cfg.DBPath,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	if err != nil {
		logger.Fatal("open store", zap.String("store", cfg.Store), zap.Error(err))
	}
	defer repo.Close(context.Background())

	lines, err := newLines(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("wire line generators", zap.Error(err))
	}

	catalog := levels.Default()
	engine := battle.NewEngine(repo, catalog, lines)
	g := guard.NewGuard(repo, catalog, guard.GuardConfig{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})

	handler := ipc.NewHandler(engine, g, domain.ParseMode(cfg.DefaultMode), logger)
	srv := ipc.NewServer(handler, cfg.ListenAddr)

	// Graceful shutdown on interrupt.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("fogbreaker listening",
		zap.String("url", ipc.FormatListenURL(cfg.ListenAddr)),
		zap.String("store", cfg.Store),
		zap.String("opponent", cfg.Opponent.Provider),
		zap.String("agent", cfg.Agent.Provider))

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", zap.Error(err))
		return
	}
}

// newLines builds the router used by the engine. Fast mode always uses the
// scripted lines; real mode uses whichever backends are configured.
func newLines(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*dialogue.Router, error) {
	scripted := dialogue.NewScripted(nil)
	router := &dialogue.Router{Scripted: scripted}

	if cfg.Opponent.Provider == config.ProviderGemini {
		g, err := dialogue.NewGemini(ctx, dialogue.GeminiConfig{
			APIKey:      cfg.Opponent.APIKey,
			Model:       cfg.Opponent.Model,
			Timeout:     cfg.Opponent.Timeout(),
			Temperature: cfg.Opponent.Temperature,
			MaxTokens:   cfg.Opponent.MaxTokens,
		}, scripted, logger.Named("gemini"))
		if err != nil {
			return nil, fmt.Errorf("gemini: %w", err)
		}
		router.Opponent = g
	}

	if cfg.Agent.Provider == config.ProviderOllama {
		o, err := dialogue.NewOllama(dialogue.OllamaConfig{
			Host:    cfg.Agent.Host,
			Model:   cfg.Agent.Model,
			Timeout: cfg.Agent.Timeout(),
		}, scripted, logger.Named("ollama"))
		if err != nil {
			return nil, fmt.Errorf("ollama: %w", err)
		}
		router.Agent = o
	}

	return router, nil
}

// discoverConfig looks for config.json next to the executable, then in the cwd.
func discoverConfig() string {
	if exe, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(exe), "config.json")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if _, err := os.Stat("config.json"); err == nil {
		return "config.json"
	}
	return ""
}

// fatal prints an error and, on Windows, waits for a keypress so the user can
// read the message when the exe is launched by double-click.
func fatal(msg string) {
	fmt.Fprintf(os.Stderr, "ERROR: %s\n", msg)
	if runtime.GOOS == "windows" {
		fmt.Fprintln(os.Stderr, "\nPress Enter to exit...")
		bufio.NewReader(os.Stdin).ReadBytes('\n')
	}
	os.Exit(1)
}
