// Package ytdlp resolves YouTube references and downloads audio through the
// yt-dlp binary.
//
// Client implements the catalog side of the analysis pipeline: it expands
// channel and playlist URLs into individual videos, looks up titles and
// durations, and extracts an mp3 audio track for transcription. Every call is
// bounded by the configured metadata or download timeout.
package ytdlp
