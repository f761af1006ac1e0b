// Package ledger is the persistent per-title point record driving collection
// membership.
//
// Each run folds the resolved candidate set into the ledger: reappearing
// titles gain points, new titles start at the configured initial value, and
// (when a decay is configured) absent titles lose points down to a floor.
// Titles at or below the retention floor are evicted unless their cached
// rating clears the high-rating override. The surviving key set is the
// target membership the collection synchronizer reconciles against Plex.
package ledger
