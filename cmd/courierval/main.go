package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"courierval/internal/app"
	"courierval/internal/config"
	"courierval/internal/logging"
)

const dayLayout = "2006-01-02"

var (
	logLevel  string
	logFormat string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "courierval",
		Short: "Courier validation email reconciliation",
		Long: `courierval reads the day's courier validation requests from the mailbox,
compares the totals they state with the delivered totals of the reporting
portal, and answers the requests that match.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (default from LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "console|json (default from LOG_FORMAT)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(collectCmd())
	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(reconcileCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(listenCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}
	return cfg, logging.New(cfg.LogLevel, cfg.LogFormat), nil
}

func buildApp(ctx context.Context, opts app.Options) (*app.App, error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, log, opts)
}

func parseDay(value string) (time.Time, error) {
	if value == "" {
		return time.Now(), nil
	}
	day, err := time.ParseInLocation(dayLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --day %q, want YYYY-MM-DD", value)
	}
	return day, nil
}
