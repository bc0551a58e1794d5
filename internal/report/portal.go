package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"courierval/internal/config"
)

const (
	loginEmailSel    = `input[name="email"]`
	loginPasswordSel = `input[name="password"]`
	loginButtonXPath = `//*[@id="login"]/section/form/div[3]/button`
	searchInputSel   = `input[aria-controls='dataTableBuilder']`
	exportButtonSel  = `#spreadsheet`
)

type PortalConfig struct {
	URL         string
	Email       string
	Password    string
	DownloadDir string
	Headless    bool
	Timeout     time.Duration
	SearchDelay time.Duration
}

func PortalConfigFrom(cfg config.Config) (PortalConfig, error) {
	if err := cfg.Require("GA_EMAIL", cfg.GAEmail); err != nil {
		return PortalConfig{}, err
	}
	if err := cfg.Require("GA_PASSWORD", cfg.GAPassword); err != nil {
		return PortalConfig{}, err
	}
	return PortalConfig{
		URL:         cfg.GAURL,
		Email:       cfg.GAEmail,
		Password:    cfg.GAPassword,
		DownloadDir: cfg.GADownloadDir,
		Headless:    cfg.GAHeadless,
		Timeout:     cfg.GATimeout(),
		SearchDelay: time.Duration(cfg.GASearchDelaySec) * time.Second,
	}, nil
}

// PortalFetcher drives the reporting portal in a headless Chrome. The browser
// is started and logged in on the first fetch and reused until Close.
type PortalFetcher struct {
	cfg PortalConfig
	log zerolog.Logger

	mu          sync.Mutex
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc
}

func NewPortalFetcher(cfg PortalConfig, log zerolog.Logger) *PortalFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &PortalFetcher{cfg: cfg, log: log.With().Str("component", "portal").Logger()}
}

func (p *PortalFetcher) start(ctx context.Context) error {
	if p.browserCtx != nil {
		return nil
	}
	dir, err := filepath.Abs(p.cfg.DownloadDir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	p.cfg.DownloadDir = dir

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
	}
	if p.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("start browser: %w", err)
	}

	loginCtx, loginCancel := context.WithTimeout(browserCtx, p.cfg.Timeout)
	defer loginCancel()
	stop := context.AfterFunc(ctx, loginCancel)
	defer stop()

	err = chromedp.Run(loginCtx,
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllow).
			WithDownloadPath(dir).
			WithEventsEnabled(true),
		chromedp.Navigate(p.cfg.URL),
		chromedp.WaitVisible(loginEmailSel, chromedp.ByQuery),
		chromedp.SendKeys(loginEmailSel, p.cfg.Email, chromedp.ByQuery),
		chromedp.SendKeys(loginPasswordSel, p.cfg.Password, chromedp.ByQuery),
		chromedp.Click(loginButtonXPath, chromedp.BySearch),
		chromedp.WaitVisible(searchInputSel, chromedp.ByQuery),
	)
	if err != nil {
		cancel()
		allocCancel()
		return fmt.Errorf("portal login: %w", err)
	}

	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.cancel = cancel
	p.log.Info().Str("url", p.cfg.URL).Msg("portal session started")
	return nil
}

// Fetch searches the report table and exports it, returning the path of the
// spreadsheet that appeared in the download directory.
func (p *PortalFetcher) Fetch(ctx context.Context, searchTerm string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.start(ctx); err != nil {
		return "", err
	}

	runCtx, cancel := context.WithTimeout(p.browserCtx, p.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx,
		chromedp.WaitVisible(searchInputSel, chromedp.ByQuery),
		chromedp.Clear(searchInputSel, chromedp.ByQuery),
		chromedp.SendKeys(searchInputSel, searchTerm, chromedp.ByQuery),
		chromedp.Sleep(p.cfg.SearchDelay),
	); err != nil {
		return "", fmt.Errorf("portal search %q: %w", searchTerm, err)
	}

	clickedAt := time.Now()
	if err := chromedp.Run(runCtx,
		chromedp.WaitReady(exportButtonSel, chromedp.ByQuery),
		chromedp.Click(exportButtonSel, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("portal export %q: %w", searchTerm, err)
	}

	path, err := WaitForDownload(runCtx, p.cfg.DownloadDir, clickedAt, 500*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("portal download %q: %w", searchTerm, err)
	}
	p.log.Debug().Str("term", searchTerm).Str("file", filepath.Base(path)).Msg("export downloaded")
	return path, nil
}

func (p *PortalFetcher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.browserCtx = nil
	return nil
}

// WaitForDownload polls dir until a finished .xlsx newer than since shows up,
// and returns the newest one.
func WaitForDownload(ctx context.Context, dir string, since time.Time, every time.Duration) (string, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if path, ok := newestExport(dir, since); ok {
			return path, nil
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("no export in %s: %w", dir, ctx.Err())
		case <-ticker.C:
		}
	}
}

func newestExport(dir string, since time.Time) (string, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", false
	}
	newest := ""
	var newestAt time.Time
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "~") || !strings.EqualFold(filepath.Ext(name), ".xlsx") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if newest == "" || mod.After(newestAt) {
			newest = filepath.Join(dir, name)
			newestAt = mod
		}
	}
	return newest, newest != ""
}
