package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"contact-intake/internal/app"
	"contact-intake/internal/config"
	"contact-intake/internal/logging"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		slog.Error("invalid configuration", "err", err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	// ---- Handler ----
	h, cleanup, err := app.Build(ctx, cfg)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		cleanup()
		os.Exit(1)
	}
	defer cleanup()

	lambda.Start(h.Handle)
}
