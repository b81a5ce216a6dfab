// Package analysis turns a list of videos and keywords into an occurrence
// report.
//
// The Orchestrator processes videos one at a time in input order. Each video
// is looked up in the transcription cache first; only misses reach the
// Transcriber, and fresh transcripts are written back to the cache and feed
// the throughput statistics. Cancellation is observed between videos only:
// either the context is done or the ProgressSink asks to stop. A video that
// has started always finishes (or fails) before the orchestrator returns.
//
// Both the interactive CLI and the dispatcher drive the same Orchestrator; the
// dispatcher simply calls it with a single video per job.
package analysis
