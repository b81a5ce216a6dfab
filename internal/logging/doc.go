// Package logging builds the slog loggers shared by the tubescan CLI and
// dispatcher.
//
// Console output uses a compact human-readable handler that promotes the
// component, job, and video reference into the line header; JSON output is
// available for machine consumption and is always written to the log file
// when a log directory is configured. Helpers in this package enforce the
// event_type / error_hint / impact convention on warnings and errors.
package logging
