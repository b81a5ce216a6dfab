// Package services holds the error taxonomy and context annotations shared by
// every tubescan component.
//
// Collaborators wrap failures with Wrap and one of the sentinel markers so the
// dispatcher can classify them into the short "<Kind>: <detail>" message stored
// on failed jobs. Context helpers carry the job, video, model, and correlation
// identifiers that the logging package lifts into structured fields.
package services
