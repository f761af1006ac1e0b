// Package main hosts the curator CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into curation
// runs, collection refreshes, and inspection of the points ledger, TMDB cache,
// and run history. It centralizes configuration resolution, structured logging
// setup, and the single-invocation state lock so subcommands can focus on
// user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
