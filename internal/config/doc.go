// Package config loads, normalizes, and validates curator configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY and PLEX_TOKEN. The Points section resolves a named scoring
// preset into concrete increment/decay/floor values so the rest of the
// pipeline never branches on policy names.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, a fully resolved scoring policy, and clear validation
// errors.
package config
