package listener

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"courierval/internal/logging"
	"courierval/internal/runner"
)

// Cycle runs one validation pass for the current day.
type Cycle interface {
	Run(ctx context.Context, opts runner.Options) (runner.RunResult, error)
}

type Service struct {
	cycle    Cycle
	interval time.Duration
	dryRun   bool
	log      zerolog.Logger
}

func NewService(cycle Cycle, interval time.Duration, dryRun bool, log zerolog.Logger) *Service {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &Service{
		cycle:    cycle,
		interval: interval,
		dryRun:   dryRun,
		log:      log.With().Str("component", "listener").Logger(),
	}
}

// Run repeats a cycle every interval until ctx is cancelled. A failed cycle is
// logged and the loop goes on; requests already answered are skipped by the
// next cycle.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Bool("dry_run", s.dryRun).Msg("listener started")
	for {
		s.runCycle(ctx)

		select {
		case <-ctx.Done():
			s.log.Info().Msg("listener stopped")
			return nil
		case <-time.After(s.interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) {
	res, err := s.cycle.Run(ctx, runner.Options{DryRun: s.dryRun})
	logging.Diagnostics(s.log, res.Diagnostics)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.log.Error().Err(err).Str("run", res.RunID).Msg("listener cycle failed")
		return
	}
	counts := res.Counts()
	s.log.Info().
		Str("run", res.RunID).
		Str("status", res.Status).
		Int("records", counts["records"]).
		Int("replied", counts["replied"]).
		Msg("listener cycle done")
}
