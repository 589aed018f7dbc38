package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/X1ag/RemindBot/internal/config"
	"github.com/X1ag/RemindBot/internal/domain"
	"github.com/X1ag/RemindBot/internal/logger"
	"github.com/X1ag/RemindBot/internal/metrics"
	"github.com/X1ag/RemindBot/internal/repository/memory"
	"github.com/X1ag/RemindBot/internal/repository/postgres"
	"github.com/X1ag/RemindBot/internal/usecase"
	"github.com/X1ag/RemindBot/transport/telegram"
	"github.com/X1ag/RemindBot/transport/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "remindbot",
		Short:         "Telegram reminder bot",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, closer, err := logger.New(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				return err
			}
			defer closer.Close()
			slog.SetDefault(log)

			return run(cmd.Context(), cfg, log)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a config file (yaml, json or toml)")
	root.AddCommand(newMigrateCommand(&configPath))
	return root
}

func newMigrateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back migrations (one step by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("steps must be a number: %w", err)
				}
				steps = n
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return postgres.RollbackMigrations(cfg.DatabaseURL, cfg.MigrationsPath, steps)
		},
	})
	return cmd
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	log.Info("starting bot", "storage", cfg.Storage, "scan_interval", cfg.ScanInterval)

	var reminderRepo domain.ReminderRepository
	switch cfg.Storage {
	case config.StorageMemory:
		log.Warn("using in-memory storage, reminders will not survive a restart")
		reminderRepo = memory.NewReminderRepository()
	default:
		if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return err
		}
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return err
		}
		defer func() {
			pool.Close()
			log.Info("database pool closed")
		}()
		reminderRepo = postgres.NewReminderRepository(pool)
	}

	reminderUC := usecase.NewReminderUsecase(reminderRepo,
		usecase.WithStoreTimeout(cfg.StoreTimeout),
		usecase.WithLogger(log),
	)

	tgBot, err := telegram.NewBot(cfg.TelegramToken, reminderUC, log)
	if err != nil {
		return err
	}

	var observer metrics.ScanObserver = metrics.Nop{}
	var wg sync.WaitGroup
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		promObserver, err := metrics.NewPrometheusObserver("reminders", reg)
		if err != nil {
			return err
		}
		observer = promObserver
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, log); err != nil {
				log.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	w := worker.NewWorker(reminderRepo, tgBot, worker.Config{
		Interval:     cfg.ScanInterval,
		StoreTimeout: cfg.StoreTimeout,
		SendTimeout:  cfg.SendTimeout,
		Concurrency:  cfg.ScanConcurrency,
	}, worker.WithObserver(observer), worker.WithLogger(log))

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.Run(ctx)
	}()

	tgBot.Start(ctx)

	log.Info("shutdown signal received, waiting for the current scan pass")
	wg.Wait()
	log.Info("bot stopped")
	return nil
}
