// Package tmdb provides the minimal TMDB API client used for candidate
// resolution and fallback recommendations.
//
// It authenticates requests and exposes movie search with an optional
// release-year filter, movie detail retrieval (vote averages feed the
// high-rating retention rule), and the recommendations endpoint backing the
// fallback candidate source. Options allow tests to supply custom HTTP
// clients without modifying production code.
package tmdb
