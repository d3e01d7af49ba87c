package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cargobot/internal/orders"
	"cargobot/internal/report"
	"cargobot/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// runMigrate creates or upgrades the schema.
func runMigrate(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	ctx := context.Background()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := migrate(ctx, cfg, st); err != nil {
		return err
	}
	logger.Info("Schema is up to date", zap.String("driver", st.Driver()))
	fmt.Fprintln(cmd.OutOrStdout(), "Migrations applied")
	return nil
}

// runReport renders the report to --out or reports.dir.
func runReport(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetQueryTimeout())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	loc := cfg.GetLocation()
	now := time.Now().In(loc)
	lookback := cfg.GetLookback()
	events, err := st.ListEvents(ctx, store.EventQuery{Since: now.Add(-lookback)})
	if err != nil {
		return err
	}
	data := report.Collect(orders.InLocation(events, loc), now)
	data.Window = lookback

	gen := &report.Generator{
		Dir:      cfg.Reports.Dir,
		Company:  cfg.Company,
		FontPath: cfg.Reports.FontPath,
		Keep:     true,
	}
	if reportOut != "" {
		gen.Dir = filepath.Dir(reportOut)
	}
	if err := gen.EnsureDir(); err != nil {
		return err
	}

	path, err := gen.Build(ctx, data)
	if err != nil {
		return err
	}
	if reportOut != "" && path != reportOut {
		if err := os.Rename(path, reportOut); err != nil {
			return fmt.Errorf("failed to move report to %s: %w", reportOut, err)
		}
		path = reportOut
	}

	logger.Info("Report rendered", zap.String("path", path), zap.Int("events", data.TotalEvents))
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

// runEnqueue inserts a pending notification.
func runEnqueue(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	if enqueueText == "" {
		return fmt.Errorf("--text must not be empty")
	}
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GetQueryTimeout())
	defer cancel()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	id, err := st.Enqueue(ctx, enqueueChat, enqueueText)
	if err != nil {
		return err
	}
	logger.Info("Notification queued", zap.Int64("id", id), zap.Int64("chat", enqueueChat))
	fmt.Fprintf(cmd.OutOrStdout(), "Queued notification %d for %d\n", id, enqueueChat)
	return nil
}
