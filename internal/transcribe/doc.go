// Package transcribe produces transcripts by downloading a video's audio with
// yt-dlp and running the whisper CLI on it.
//
// A Registry, built once per process, validates model variants and
// remembers which ones have been used. Service implements the transcriber
// consumed by the analysis orchestrator; its temporary audio lives in a
// per-call directory under the configured work directory and is removed when
// the call returns.
package transcribe
