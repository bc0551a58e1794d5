// Package app wires the configured collaborators into a runner. Both binaries
// build their runs through it.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"courierval/internal/config"
	"courierval/internal/connectors"
	gmailconnector "courierval/internal/connectors/gmail"
	imapconnector "courierval/internal/connectors/imap"
	"courierval/internal/notify"
	"courierval/internal/report"
	"courierval/internal/runner"
	"courierval/internal/storage"
	"courierval/internal/util"
)

type App struct {
	Config  config.Config
	Log     zerolog.Logger
	Mailbox connectors.Mailbox
	Fetcher report.Fetcher
	Source  *report.Service
	DB      *storage.DB
	Runner  *runner.Runner
}

type Options struct {
	// ReportDir serves portal exports from a directory instead of the portal.
	ReportDir string
	// WithoutMailbox skips the mailbox, for commands that only need reports.
	WithoutMailbox bool
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger, opts Options) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if !opts.WithoutMailbox {
		mailbox, err := NewMailbox(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.Mailbox = mailbox
	}

	fetcher, err := NewFetcher(cfg, log, opts.ReportDir)
	if err != nil {
		return nil, err
	}
	a.Fetcher = fetcher
	a.Source = report.NewService(fetcher, util.NewRateLimiter(cfg.GARequestsPerMinute), cfg.GAFamilySearchTerm, log)

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		_ = fetcher.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}
	a.DB = db

	a.Runner = runner.New(runner.Deps{
		Mailbox: a.Mailbox,
		Source:  a.Source,
		Sink:    notify.NewSink(cfg, log),
		Journal: db,
		Archive: connectors.NewMailStore(cfg.RawMailDir),
	}, runner.Settings{
		OutputDir:       cfg.OutputDir,
		ProcessedFolder: cfg.MailProcessedFolder,
	}, log)
	return a, nil
}

func (a *App) Close() error {
	var firstErr error
	if a.Fetcher != nil {
		firstErr = a.Fetcher.Close()
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewMailbox(ctx context.Context, cfg config.Config, log zerolog.Logger) (connectors.Mailbox, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailProvider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg, log)
	case "imap", "":
		return imapconnector.NewConnector(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.MailProvider)
	}
}

func NewFetcher(cfg config.Config, log zerolog.Logger, reportDir string) (report.Fetcher, error) {
	if reportDir != "" {
		return report.NewDirectoryFetcher(reportDir), nil
	}
	portalCfg, err := report.PortalConfigFrom(cfg)
	if err != nil {
		return nil, err
	}
	return report.NewPortalFetcher(portalCfg, log), nil
}
