package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/comigor/joker/internal/config"
	"github.com/comigor/joker/internal/logger"
	"github.com/comigor/joker/internal/observability"
	"github.com/comigor/joker/internal/runner"
)

const prompt = "Tell me a joke about a pirate."

func main() {
	if err := run(); err != nil {
		logger.L.Error("joker failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	if err := loadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	logger.SetFormat(cfg.Log.Format, os.Stderr)
	logger.SetLevel(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := observability.Init(ctx, cfg.Observability)
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			logger.L.Warn("tracer shutdown error", "error", err)
		}
	}()

	res, err := runner.Do(ctx, cfg.LLM, cfg.Agent, prompt, runner.WithSensitiveData(cfg.Observability.SensitiveData))
	if err != nil {
		return err
	}

	fmt.Println(res.Text)
	return nil
}

// loadDotEnv loads environment variables from path. Missing files are ignored.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
