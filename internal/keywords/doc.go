// Package keywords scores transcripts against keyword lists.
//
// Both sides are normalized (lowercased, canonically decomposed, combining
// marks dropped) before matching. Single-token keywords count whole-word
// occurrences. Multi-token keywords count ordered proximity matches that
// allow up to MaxGap intervening words between consecutive tokens; when no
// proximity match exists the keyword scores exactly 1 if at least
// max(1, N/2) of its tokens appear anywhere as whole words, which keeps
// recall on garbled speech-to-text output.
package keywords
