package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"courierval/internal"
	"courierval/internal/config"
	"courierval/internal/util"
)

const maxAttempts = 4

// Sink receives the outcome summary of a run.
type Sink interface {
	Notify(ctx context.Context, entries []internal.NotificationEntry) error
}

type NopSink struct{}

func (NopSink) Notify(context.Context, []internal.NotificationEntry) error { return nil }

// TeamsClient posts an adaptive card to a Teams incoming webhook.
type TeamsClient struct {
	webhookURL string
	httpClient *http.Client
	limiter    *util.RateLimiter
	now        func() time.Time
	backoff    func(attempt int) time.Duration
	log        zerolog.Logger
}

// NewSink returns a Teams client, or a NopSink when no webhook is configured.
func NewSink(cfg config.Config, log zerolog.Logger) Sink {
	if cfg.TeamsWebhookURL == "" {
		log.Warn().Msg("TEAMS_WEBHOOK_URL not set, notifications disabled")
		return NopSink{}
	}
	return NewTeamsClient(cfg.TeamsWebhookURL, time.Duration(cfg.TeamsTimeoutMs)*time.Millisecond, log)
}

func NewTeamsClient(webhookURL string, timeout time.Duration, log zerolog.Logger) *TeamsClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &TeamsClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    util.NewRateLimiter(60),
		now:        time.Now,
		backoff:    jitteredBackoff,
		log:        log.With().Str("component", "teams").Logger(),
	}
}

func (c *TeamsClient) Notify(ctx context.Context, entries []internal.NotificationEntry) error {
	blob, err := json.Marshal(BuildCard(entries, c.now()))
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(blob))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			if attempt < maxAttempts {
				if err := c.wait(ctx, attempt); err != nil {
					return err
				}
			}
			continue
		}
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			c.log.Info().Int("clients", len(entries)).Int("status", resp.StatusCode).Msg("summary sent")
			return nil
		}
		if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
			lastErr = fmt.Errorf("teams status %d", resp.StatusCode)
			if err := c.wait(ctx, attempt); err != nil {
				return err
			}
			continue
		}
		return fmt.Errorf("teams webhook error: status=%d body=%s", resp.StatusCode, string(body))
	}

	if lastErr == nil {
		lastErr = errors.New("teams request failed")
	}
	return lastErr
}

func (c *TeamsClient) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.backoff(attempt)):
		return nil
	}
}

// 250ms doubling per attempt, plus up to 100ms of jitter.
func jitteredBackoff(attempt int) time.Duration {
	return time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
