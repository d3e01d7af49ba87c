package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cargobot/internal/bot"
	"cargobot/internal/config"
	"cargobot/internal/logging"
	"cargobot/internal/metrics"
	"cargobot/internal/notify"
	"cargobot/internal/report"
	"cargobot/internal/store"
	"cargobot/internal/telegram"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// updateTimeout bounds the handling of one chat command.
const updateTimeout = 2 * time.Minute

// runBot wires every component and blocks until SIGINT/SIGTERM.
func runBot(cmd *cobra.Command, args []string) error {
	cfg := appConfig
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Boot("Received %s, shutting down", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Database.AutoMigrate {
		if err := migrate(ctx, cfg, st); err != nil {
			return err
		}
	}

	reports := &report.Generator{
		Dir:      cfg.Reports.Dir,
		Company:  cfg.Company,
		FontPath: cfg.Reports.FontPath,
		Keep:     cfg.Reports.Keep,
	}
	if err := reports.EnsureDir(); err != nil {
		return err
	}

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	tg, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		APIEndpoint: cfg.Telegram.APIEndpoint,
		PollTimeout: cfg.GetPollTimeout(),
		Workers:     cfg.Telegram.Workers,
		Debug:       cfg.Telegram.Debug,
	})
	if err != nil {
		return err
	}

	router := bot.New(bot.Deps{
		Store:          st,
		Sender:         tg,
		Reports:        reports,
		Broadcaster:    notify.NewBroadcaster(tg, cfg.Broadcast.RatePerSecond, cfg.Broadcast.Concurrency, m),
		Metrics:        m,
		Admins:         cfg.Admins,
		Company:        cfg.Company,
		Lookback:       cfg.GetLookback(),
		UpcomingWindow: cfg.GetUpcomingWindow(),
		StatsWindow:    cfg.GetStatsWindow(),
		QueryTimeout:   cfg.GetQueryTimeout(),
		Location:       cfg.GetLocation(),
	})

	logging.Get(logging.CategoryBoot).With(
		"version", version,
		"bot", tg.Username(),
		"driver", st.Driver(),
		"admins", len(cfg.Admins),
		"notifications", cfg.Notifications.Enabled,
		"metrics", cfg.Metrics.Enabled,
	).Info("Starting cargobot")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return tg.Run(gctx, func(ctx context.Context, u telegram.Update) {
			ctx, cancel := context.WithTimeout(ctx, updateTimeout)
			defer cancel()
			router.Handle(ctx, u)
		})
	})

	if cfg.Notifications.Enabled {
		dispatcher := notify.NewDispatcher(st, tg, notify.DispatcherConfig{
			FirstDelay:  cfg.GetNotifyFirstDelay(),
			Interval:    cfg.GetNotifyInterval(),
			BatchSize:   cfg.Notifications.BatchSize,
			MaxAttempts: cfg.Notifications.MaxAttempts,
		}, m)
		g.Go(func() error {
			return dispatcher.Run(gctx)
		})
	}

	if m != nil {
		g.Go(func() error {
			return m.Serve(gctx, cfg.Metrics.Listen)
		})
	}

	if _, err := os.Stat(configPath); err == nil {
		g.Go(func() error {
			return config.Watch(gctx, configPath, func(next *config.Config) {
				router.SetAdmins(next.Admins)
				logging.Audit().AdminsReloaded(len(next.Admins))
			})
		})
	} else {
		logging.BootWarn("Config file %s not found, admin list will not reload", configPath)
	}

	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logging.BootError("cargobot stopped with error: %v", err)
		return err
	}
	logging.Boot("cargobot stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.GetQueryTimeout())
	defer cancel()
	return store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
}

func migrate(ctx context.Context, cfg *config.Config, st *store.Store) error {
	ctx, cancel := context.WithTimeout(ctx, cfg.GetQueryTimeout())
	defer cancel()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
