package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codearena/internal/cli/bootstrap"
	"codearena/internal/cli/command"
	"codearena/internal/cli/config"
	"codearena/internal/cli/repl"
	"codearena/internal/cli/state"
	"codearena/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultConfigPath      = "configs/arena.yaml"
	defaultShutdownTimeout = 10 * time.Second
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	baseURL := flag.String("base", "", "Override judge base URL")
	timeout := flag.Duration("timeout", 0, "Override judge HTTP timeout (e.g. 10s)")
	token := flag.String("token", "", "Override access token")
	statePath := flag.String("state", "", "Override token state path")
	storage := flag.String("storage", "", "Override storage driver (file, redis)")
	notifyDriver := flag.String("notify", "", "Override notify driver (memory, websocket, kafka)")
	pretty := flag.Bool("pretty", false, "Pretty print JSON results")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return
	}
	if *baseURL != "" {
		cfg.Judge.BaseURL = *baseURL
	}
	if *timeout > 0 {
		cfg.Judge.Timeout = *timeout
	}
	if *statePath != "" {
		cfg.Judge.TokenStatePath = *statePath
	}
	if *storage != "" {
		cfg.Storage.Driver = *storage
	}
	if *notifyDriver != "" {
		cfg.Notify.Driver = *notifyDriver
	}
	if *pretty {
		trueValue := true
		cfg.PrettyJSON = &trueValue
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		return
	}

	if err := logger.Init(cfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() { _ = logger.Sync() }()

	tokenState, err := state.Load(cfg.Judge.TokenStatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load token state failed: %v\n", err)
		return
	}
	if *token != "" {
		tokenState.AccessToken = *token
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	session := repl.New(os.Stdin, os.Stdout, command.Registry(), tokenState, cfg.Judge.TokenStatePath, cfg.PrettyJSON != nil && *cfg.PrettyJSON)
	runtime, err := bootstrap.Build(ctx, cfg, session.Token, session)
	if err != nil {
		logger.Error(context.Background(), "build arena runtime failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "start failed: %v\n", err)
		return
	}

	errCh := make(chan error, 1)
	go func() { errCh <- session.Run(ctx, runtime.Controller) }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error(context.Background(), "repl stopped", zap.Error(err))
		}
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := runtime.Close(shutdownCtx); err != nil {
		logger.Error(context.Background(), "arena shutdown failed", zap.Error(err))
	}
}
