// kosh-billrun fires due recurring bills for one user and exits. Run it
// from cron or by hand; firing is idempotent per due date, so overlapping
// runs cannot double-book a bill.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"kosh/internal/config"
	"kosh/internal/core"
	"kosh/internal/services"
	"kosh/internal/storage"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	userID := flag.Int64("user", 0, "user id to process (required)")
	dateStr := flag.String("date", "", "run date as YYYY-MM-DD (default today)")
	flag.Parse()

	if *userID == 0 {
		logger.Error("Missing required -user flag")
		flag.Usage()
		os.Exit(2)
	}

	runDate := core.Today()
	if *dateStr != "" {
		parsed, err := core.ParseDate(*dateStr)
		if err != nil {
			logger.Error("Invalid -date value", "date", *dateStr, "error", err)
			os.Exit(2)
		}
		runDate = parsed
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	processor := services.NewRecurringProcessor(repo)
	fired, err := processor.RunDueBills(context.Background(), *userID, runDate)
	if err != nil {
		logger.Error("Bill run failed", "error", err, "user_id", *userID)
		os.Exit(1)
	}

	logger.Info("Bill run complete",
		"user_id", *userID,
		"run_date", runDate.String(),
		"fired", fired)
}
