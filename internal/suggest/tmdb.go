package suggest

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"curator/internal/logging"
	"curator/internal/tmdb"
)

// TMDBSource is the fallback candidate source: TMDB's own recommendation list
// for the seed movie, best-rated first.
type TMDBSource struct {
	searcher tmdb.Searcher
	limit    int
	logger   *slog.Logger
}

func NewTMDBSource(searcher tmdb.Searcher, limit int, logger *slog.Logger) *TMDBSource {
	if logger == nil {
		logger = logging.NewNop()
	}
	if limit <= 0 {
		limit = defaultSuggestionCap
	}
	return &TMDBSource{
		searcher: searcher,
		limit:    limit,
		logger:   logging.NewComponentLogger(logger, "tmdb_suggest"),
	}
}

func (s *TMDBSource) Name() string { return "tmdb" }

func (s *TMDBSource) Suggest(ctx context.Context, seedTitle string) ([]string, error) {
	search, err := s.searcher.SearchMovie(ctx, seedTitle)
	if err != nil {
		return nil, fmt.Errorf("resolve seed %q: %w", seedTitle, err)
	}
	if len(search.Results) == 0 {
		s.logger.Debug("seed title unknown to tmdb", logging.String("seed", seedTitle))
		return nil, nil
	}
	seed := bestSeedMatch(seedTitle, search.Results)

	recs, err := s.searcher.GetRecommendations(ctx, seed.ID)
	if err != nil {
		return nil, fmt.Errorf("recommendations for %q: %w", seed.Title, err)
	}

	results := make([]tmdb.Result, len(recs.Results))
	copy(results, recs.Results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].VoteAverage > results[j].VoteAverage
	})

	titles := make([]string, 0, min(s.limit, len(results)))
	for _, result := range results {
		if len(titles) >= s.limit {
			break
		}
		if result.Title == "" {
			continue
		}
		if year := result.Year(); year != "" {
			titles = append(titles, fmt.Sprintf("%s (%s)", result.Title, year))
		} else {
			titles = append(titles, result.Title)
		}
	}
	return titles, nil
}

// bestSeedMatch prefers the search result with the strongest engagement
// signal. Search order alone is unreliable for short queries.
func bestSeedMatch(query string, results []tmdb.Result) tmdb.Result {
	best := results[0]
	bestScore := seedScore(best)
	for _, result := range results[1:] {
		if score := seedScore(result); score > bestScore {
			best, bestScore = result, score
		}
	}
	return best
}

func seedScore(r tmdb.Result) float64 {
	return float64(r.VoteCount)*0.05 + r.Popularity*0.5 + r.VoteAverage*2
}
