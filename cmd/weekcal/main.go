package main

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"weekcal/internal/config"
	appLog "weekcal/internal/log"
)

const version = "0.3.0"

// app carries the root flags and the loaded configuration into subcommands.
type app struct {
	configPath string
	envFile    string
	logLevel   string

	cfg *config.Config
}

func main() {
	a := &app{}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "weekcal",
		Short:         "Weekly schedule from ICS calendars",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default $"+config.EnvConfigPath+" or "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the config")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	root.AddCommand(newRenderCmd(a))
	root.AddCommand(newServeCmd(a))
	root.AddCommand(newSnapshotCmd(a))
	root.AddCommand(newSourcesCmd(a))
	return root
}

// setup loads .env, the config file and the log level.
func (a *app) setup() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			appLog.Warn("dotenv not loaded", "file", a.envFile, "error", err.Error())
		}
	}

	path := config.ResolvePath(a.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", path)
		return err
	}
	a.cfg = cfg

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	appLog.SetLevel(appLog.ParseLevel(level))

	appLog.Debug("effective config",
		"config_path", path,
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"calendar_dir", cfg.CalendarDir,
		"source_count", len(cfg.Sources),
		"horizon_days", cfg.HorizonDays,
		"show_all_day", cfg.ShowAllDay,
		"refresh", cfg.RefreshCron,
	)
	return nil
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}
