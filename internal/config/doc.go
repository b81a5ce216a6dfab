// Package config loads, normalizes, and validates tubescan configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the TUBESCAN_WORKERS environment
// override. Every shared store location (job queue, transcription cache,
// processing stats) is derived from the data directory unless configured
// explicitly, so the CLI and dispatcher processes agree on where the queue
// lives without further coordination.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
