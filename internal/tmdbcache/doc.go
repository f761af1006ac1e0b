// Package tmdbcache persists canonical-key to TMDB id/rating mappings so
// scoring decisions never refetch data the pipeline has already paid for.
//
// The cache file tolerates two shapes: the current object form carrying a
// rating and fetch timestamp, and a legacy form mapping keys to bare TMDB
// ids. Legacy entries upgrade on load and are rewritten in the current shape
// on the next save; saves are atomic (write-to-temp-then-rename). Failed
// lookups are cached as a not-found sentinel so they are attempted at most
// once per cache lifetime.
package tmdbcache
