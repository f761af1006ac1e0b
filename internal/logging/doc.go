// Package logging builds the slog loggers used throughout curator. It provides
// a console handler for interactive runs, a JSON handler for machine-readable
// logs, typed attribute helpers, and component-scoped child loggers.
package logging
