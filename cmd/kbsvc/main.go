package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkrupp/promptbank/internal/app"
	"github.com/mkrupp/promptbank/internal/infra/logging"
	"github.com/mkrupp/promptbank/internal/infra/transport/http"
)

const loggerName = "promptbank.kbsvc"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid configuration:", err)
		os.Exit(1)
	}

	logging.Configure(ctx, cfg.Log, loggerName)

	if err := run(ctx, cfg); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg app.ServiceConfig) (err error) {
	log := logging.GetLogger("cmd.kbsvc")

	defer func() {
		if err != nil {
			log.ErrorContext(ctx, "error", "err", err)
		} else {
			log.InfoContext(ctx, "shutdown")
		}
	}()

	kb, err := app.New(ctx, cfg.App, nil)
	if err != nil {
		return fmt.Errorf("new app: %w", err)
	}

	defer func() {
		if closeErr := kb.Close(); closeErr != nil {
			log.WarnContext(ctx, "close app", "err", closeErr)
		}
	}()

	if err := http.ListenAndServe(ctx, kb, cfg.HTTP); err != nil {
		return fmt.Errorf("listen and serve: %w", err)
	}

	return nil
}
