// Sweeps pending orders against the payment provider. Intended to run on a
// schedule (cron or a job runner); the exit code reports whether every
// pending order was processed.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ACI-plugin/aci-commerce-gateway/internal/aci"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/config"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/orders"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/modules/reconcile"
	"github.com/ACI-plugin/aci-commerce-gateway/internal/storage"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("sweep failed", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	db, err := gorm.Open(mysql.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}

	archive, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("archive store: %w", err)
	}

	client := aci.NewClient(cfg.ACI.Settings())
	client.SetLogger(logger)

	repo := orders.NewRepo(db)
	repo.SetLogger(logger)

	job := reconcile.NewSweepJob(repo, client, archive)
	job.SetLogger(logger)

	return job.Run(ctx)
}
