package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"courierval/internal/app"
	"courierval/internal/listener"
	"courierval/internal/logging"
	"courierval/internal/runner"
)

func runCmd() *cobra.Command {
	var (
		day       string
		dryRun    bool
		noReply   bool
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full validation for one day",
		Long: `Collect the day's validation requests, fetch the delivered totals,
reconcile them, write the spreadsheets, send the Teams summary and answer the
requests that validated.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDay(day)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), app.Options{ReportDir: reportDir})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Runner.Run(cmd.Context(), runner.Options{Day: when, DryRun: dryRun, SkipReplies: noReply})
			logging.Diagnostics(a.Log, res.Diagnostics)
			if perr := printRun(res); perr != nil && err == nil {
				err = perr
			}
			return err
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "processing day YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be answered without sending or moving")
	cmd.Flags().BoolVar(&noReply, "no-reply", false, "stop after reconciliation and notification")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "read portal exports from <dir>/<search term>.xlsx instead of the portal")

	return cmd
}

func listenCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Run the validation periodically for the current day",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			svc := listener.NewService(a.Runner, a.Config.ListenerInterval(), dryRun, a.Log)
			return svc.Run(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "never send or move")

	return cmd
}

func printRun(res runner.RunResult) error {
	fmt.Printf("run %s day=%s status=%s\n", res.RunID, res.Day.Format(dayLayout), res.Status)
	if len(res.Outcomes) > 0 {
		if err := writeTable(os.Stdout, outcomeHeaders, outcomeRows(res.Outcomes)); err != nil {
			return err
		}
	}
	for _, a := range res.Reply.Actions {
		verb := "replied"
		if a.DryRun {
			verb = "would reply"
		}
		fmt.Printf("  %s %s (%s)\n", verb, a.ClientKey, a.Subject)
	}
	for _, key := range res.Reply.Unresolved {
		fmt.Printf("  no request found for %s\n", key)
	}
	if res.Artifacts.Validation != "" {
		fmt.Printf("  artifacts: %s\n", res.Artifacts.Validation)
	}
	return nil
}
