// Package queue persists transcription jobs and drives their lifecycle.
//
// A job moves pending → running → done|failed and never leaves a terminal
// state through Update; operators move failed or stuck jobs back to pending
// with RetryFailed and ResetStuck.
//
// Two backends implement Store:
//
//   - FileStore keeps the jobs_queue.json array shared with earlier tooling.
//     Every mutation reloads the file, applies the change, and atomically
//     replaces it, all while holding an advisory file lock so concurrent
//     dispatchers never claim the same job.
//   - SQLiteStore keeps jobs in a small SQLite database and claims jobs with a
//     single UPDATE … RETURNING statement.
//
// Reads are fail-open: a missing or malformed store loads as an empty queue.
// Writes are not: a mutation that cannot be persisted returns an error
// wrapping services.ErrQueueCorruption and leaves the previous state intact.
package queue
