// Command tubescan transcribes YouTube videos and counts keyword occurrences
// in their transcripts.
//
// "tubescan analyze" runs an interactive analysis in the foreground. For
// long playlists, "tubescan enqueue" writes jobs to the shared queue and
// tubescand (or "tubescan dispatch") drains it with a worker pool. The
// queue, cache, and stats subcommands inspect and maintain the on-disk
// stores directly; no daemon connection is involved.
package main
