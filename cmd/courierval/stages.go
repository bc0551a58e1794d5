package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courierval/internal/app"
	"courierval/internal/connectors"
	"courierval/internal/logging"
	"courierval/internal/pipeline"
	"courierval/internal/runner"
	"courierval/internal/storage"
)

func collectCmd() *cobra.Command {
	var (
		day    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "List the day's validation requests and their totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := parseDay(day)
			if err != nil {
				return err
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			mailbox, err := app.NewMailbox(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}

			res, err := pipeline.NewCollector(mailbox, connectors.NewMailStore(cfg.RawMailDir)).
				Collect(cmd.Context(), connectors.StartOfDay(when))
			logging.Diagnostics(log, res.Diagnostics)
			if err != nil {
				return err
			}

			fmt.Printf("scanned=%d qualifying=%d records=%d\n", res.Scanned, res.Qualifying, len(res.Records))
			if err := writeTable(os.Stdout, recordHeaders, recordRows(res.Records)); err != nil {
				return err
			}
			if output == "" {
				output = pipeline.ArtifactPaths(cfg.OutputDir, when).Emails
			}
			if err := pipeline.WriteEmailRecords(res.Records, output); err != nil {
				return err
			}
			fmt.Printf("written %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&day, "day", "", "processing day YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&output, "out", "", "output xlsx path (default emails_YYYYMMDD.xlsx in OUTPUT_DIR)")

	return cmd
}

func extractCmd() *cobra.Command {
	var (
		input   string
		subject string
	)

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Analyze one message body without touching the mailbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(input) == "" {
				return fmt.Errorf("--input is required")
			}
			a, err := pipeline.AnalyzeInput(input, subject)
			if err != nil {
				return err
			}
			fmt.Printf("subject:    %s\n", a.Subject)
			fmt.Printf("qualifies:  %t\n", a.Qualifies)
			fmt.Printf("variant:    %s\n", a.Variant)
			fmt.Printf("client key: %s\n", a.ClientKey)
			fmt.Printf("summed:     %d (%d contract lines)\n", a.Totals.Summed, a.Totals.Lines)
			if a.Totals.StatedFound {
				fmt.Printf("stated:     %d\n", a.Totals.Stated)
			} else {
				fmt.Println("stated:     not found")
			}
			if !a.Recorded {
				fmt.Printf("discarded:  %s\n", a.Diagnostic.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "message file (raw .eml or body text), - for stdin")
	cmd.Flags().StringVar(&subject, "subject", "", "subject to use when the input has no headers")

	return cmd
}

func reportCmd() *cobra.Command {
	var (
		clients   []string
		reportDir string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Fetch delivered totals for the given clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			clients = append(clients, args...)
			if len(clients) == 0 {
				return fmt.Errorf("at least one --client is required")
			}
			a, err := buildApp(cmd.Context(), app.Options{ReportDir: reportDir, WithoutMailbox: true})
			if err != nil {
				return err
			}
			defer a.Close()

			totals, err := a.Source.Totals(cmd.Context(), clients)
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(clients))
			for _, key := range clients {
				rows = append(rows, []string{key, a.Source.SearchTerm(key), strconv.Itoa(totals.Observed(key))})
			}
			return writeTable(os.Stdout, []string{"CLIENT", "SEARCH", "DELIVERED"}, rows)
		},
	}

	cmd.Flags().StringSliceVar(&clients, "client", nil, "client key (repeatable)")
	cmd.Flags().StringVar(&reportDir, "report-dir", "", "read portal exports from <dir>/<search term>.xlsx instead of the portal")

	return cmd
}

func reconcileCmd() *cobra.Command {
	var (
		emails string
		report string
		output string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile previously written spreadsheets offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if emails == "" || report == "" {
				return fmt.Errorf("--emails and --report are required")
			}
			_, log, err := loadConfig()
			if err != nil {
				return err
			}
			records, err := pipeline.ReadEmailRecords(emails)
			if err != nil {
				return err
			}
			totals, err := pipeline.ReadReportTotals(report)
			if err != nil {
				return err
			}

			outcomes, diags := pipeline.Reconcile(records, totals)
			logging.Diagnostics(log, diags)
			if err := writeTable(os.Stdout, outcomeHeaders, outcomeRows(outcomes)); err != nil {
				return err
			}
			if output == "" {
				output = filepath.Join(filepath.Dir(emails), "validacao_"+time.Now().Format("20060102")+".xlsx")
			}
			if err := pipeline.WriteOutcomes(outcomes, output); err != nil {
				return err
			}
			fmt.Printf("written %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&emails, "emails", "", "emails_YYYYMMDD.xlsx")
	cmd.Flags().StringVar(&report, "report", "", "ga_relatorios_YYYYMMDD.xlsx")
	cmd.Flags().StringVar(&output, "out", "", "output xlsx path")

	return cmd
}

func historyCmd() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := storage.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if runID != "" {
				return showRun(db, runID)
			}

			last, err := db.GetMetadata(runner.MetaLastCompletedDay)
			if err != nil {
				return err
			}
			if last != nil {
				fmt.Printf("last completed day: %s\n", *last)
			}

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded")
				return nil
			}
			return writeTable(os.Stdout, runHeaders, runRows(runs))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the outcomes of one run")

	return cmd
}

func showRun(db *storage.DB, runID string) error {
	outcomes, err := db.ListOutcomes(runID)
	if err != nil {
		return err
	}
	replies, err := db.CountReplies(runID)
	if err != nil {
		return err
	}
	if len(outcomes) == 0 {
		fmt.Printf("run %s has no outcomes recorded\n", runID)
		return nil
	}
	if err := writeTable(os.Stdout, outcomeHeaders, outcomeRows(outcomes)); err != nil {
		return err
	}
	fmt.Printf("replies: %d\n", replies)
	return nil
}
