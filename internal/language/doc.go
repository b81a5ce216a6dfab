// Package language maps user-supplied language names and codes onto the
// two-letter codes the whisper CLI accepts.
package language
