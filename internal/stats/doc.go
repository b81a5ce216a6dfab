// Package stats keeps per-model transcription throughput.
//
// Each model variant accumulates the seconds of video transcribed and the
// wall-clock seconds spent doing it. The ratio of the two is the average speed
// used to estimate how long the pending queue will take. The store is a single
// JSON object keyed by model, shared between processes and guarded by an
// advisory lock on <path>.lock.
package stats
