// Package suggest produces raw candidate titles for a seed movie. Sources are
// tried in a fixed priority order and the first non-empty result wins.
package suggest

import (
	"context"
	"log/slog"

	"curator/internal/logging"
)

// CandidateSource yields zero or more raw title strings for a seed title.
type CandidateSource interface {
	Name() string
	Suggest(ctx context.Context, seedTitle string) ([]string, error)
}

// Chain tries each source in order and returns the first non-empty result. A
// source error or empty result falls through to the next source; the chain
// itself never fails, it only comes back empty.
type Chain struct {
	sources []CandidateSource
	logger  *slog.Logger
}

func NewChain(logger *slog.Logger, sources ...CandidateSource) *Chain {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Chain{
		sources: sources,
		logger:  logging.NewComponentLogger(logger, "suggest"),
	}
}

func (c *Chain) Suggest(ctx context.Context, seedTitle string) []string {
	for _, source := range c.sources {
		titles, err := source.Suggest(ctx, seedTitle)
		if err != nil {
			c.logger.Warn("candidate source failed, falling through",
				logging.String("source", source.Name()),
				logging.Error(err))
			continue
		}
		if len(titles) == 0 {
			c.logger.Debug("candidate source returned nothing",
				logging.String("source", source.Name()))
			continue
		}
		c.logger.Info("candidates sourced",
			logging.String("source", source.Name()),
			logging.String("seed", seedTitle),
			logging.Int("count", len(titles)))
		return titles
	}
	c.logger.Warn("every candidate source came back empty",
		logging.String("seed", seedTitle))
	return nil
}
