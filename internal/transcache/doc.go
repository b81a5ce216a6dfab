// Package transcache stores finished transcripts on disk so a video is only
// transcribed once.
//
// # Storage
//
// Each entry is a JSON file named transcription_<md5(video ref)>.json inside
// the cache directory (default ~/.local/share/tubescan/transcriptions_cache),
// holding {url, title, transcript, timestamp}. The layout matches the files
// written by earlier versions of the tool, so existing caches keep working.
//
// The fingerprint is derived from the reference string, not the audio, so two
// different URLs for the same video are separate entries. Lookups verify the
// stored url matches the query exactly before returning an entry.
//
// Entries are replaced atomically and never merged. Read or write failures are
// reported as services.ErrCacheIO; callers treat them as a cache miss.
//
// CLI commands for inspection and management:
//
//	tubescan cache list           # List cached transcripts
//	tubescan cache show <url>     # Print one transcript
//	tubescan cache remove <url>   # Drop one entry
//	tubescan cache clear          # Remove all entries
package transcache
