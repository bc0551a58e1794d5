package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"courierval/internal"
	"courierval/internal/pipeline"
	"courierval/internal/util"
)

// Source builds the delivered totals for the requested client keys.
type Source interface {
	Totals(ctx context.Context, keys []string) (internal.ExternalReport, error)
}

type Service struct {
	fetcher    Fetcher
	limiter    *util.RateLimiter
	familyTerm string
	log        zerolog.Logger
}

func NewService(fetcher Fetcher, limiter *util.RateLimiter, familyTerm string, log zerolog.Logger) *Service {
	return &Service{
		fetcher:    fetcher,
		limiter:    limiter,
		familyTerm: familyTerm,
		log:        log.With().Str("component", "report").Logger(),
	}
}

// SearchTerm is what the portal is searched for. Both family variants live
// under the family's own code and are split by SumDelivered.
func (s *Service) SearchTerm(clientKey string) string {
	if pipeline.KeyVariant(clientKey) != internal.VariantNone && s.familyTerm != "" {
		return s.familyTerm
	}
	return clientKey
}

// Totals fetches one export per distinct search term. Any fetch failure fails
// the whole report; a sheet without the expected columns counts as 0.
func (s *Service) Totals(ctx context.Context, keys []string) (internal.ExternalReport, error) {
	out := internal.ExternalReport{}
	downloads := map[string]string{}

	for _, key := range keys {
		term := s.SearchTerm(key)
		path, ok := downloads[term]
		if !ok {
			if s.limiter != nil {
				if err := s.limiter.WaitTurn(ctx); err != nil {
					return nil, err
				}
			}
			var err error
			path, err = s.fetcher.Fetch(ctx, term)
			if err != nil {
				return nil, fmt.Errorf("fetch report for %s: %w", key, err)
			}
			downloads[term] = path
		}

		sum, err := SumDelivered(path, pipeline.KeyVariant(key))
		if errors.Is(err, ErrNarrowSheet) {
			s.log.Warn().Str("client", key).Str("file", path).Msg("report has no status column, counting 0")
			out[key] = 0
			continue
		}
		if err != nil {
			return nil, err
		}
		s.log.Info().
			Str("client", key).
			Int("total", sum.Total).
			Int("rows", sum.Counted).
			Int("skipped", sum.Skipped).
			Msg("delivered total")
		out[key] = sum.Total
	}
	return out, nil
}
