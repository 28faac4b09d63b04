package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"brieflybot/internal/app"
	"brieflybot/internal/config"
	"brieflybot/internal/domain"
	"brieflybot/internal/logging"
	"brieflybot/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "brieflybot",
		Short:         "Daily AI/ML news digest collector",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML configuration file")

	loadConfig := func() (config.Config, error) {
		if configPath != "" {
			return config.LoadFile(configPath)
		}
		return config.Load(), nil
	}

	root.AddCommand(newRunCmd(loadConfig))
	root.AddCommand(newScheduleCmd(loadConfig))
	root.AddCommand(newSourcesCmd(loadConfig))
	return root
}

func newRunCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	var publish bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single collection pass and print the report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logging.New(cfg.Logging.Level, cfg.Logging.Format))
			if err != nil {
				return err
			}

			var result domain.RunResult
			if publish {
				result, err = application.RunAndPublish(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				result = application.RunOnce(cmd.Context())
			}

			printReport(result)
			return nil
		},
	}
	cmd.Flags().BoolVar(&publish, "publish", false, "summarize and publish the digest after collecting")
	return cmd
}

func newScheduleCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run recurring collect-and-publish passes on the configured cron expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			baseLogger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			application, err := app.New(cmd.Context(), cfg, baseLogger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := application.StartSchedule(ctx); err != nil {
				return err
			}
			baseLogger.Info("scheduler started", "cron", cfg.Scheduler.CronExpression)

			<-ctx.Done()
			return application.StopSchedule(context.Background())
		},
	}
}

func newSourcesCmd(loadConfig func() (config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			application, err := app.New(cmd.Context(), cfg, logging.New("error", cfg.Logging.Format))
			if err != nil {
				return err
			}

			out := logger.New("sources")
			for _, source := range application.Registry().All() {
				state := "disabled"
				if source.Enabled {
					state = "enabled"
				}
				out.Printf("%-20s type=%-8s interval=%s maxItems=%d %s",
					source.Name, source.Type, source.UpdateInterval, source.MaxItems, state)
			}
			return nil
		},
	}
}

func printReport(result domain.RunResult) {
	out := logger.New("run")
	for _, status := range result.Statuses {
		if status.Err != nil {
			out.Printf("%-20s %s: %v", status.Name, status.Outcome, status.Err)
			continue
		}
		out.Printf("%-20s %s items=%d", status.Name, status.Outcome, status.Items)
	}
	out.Printf("accepted %d new items", len(result.Items))
}
