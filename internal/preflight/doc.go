// Package preflight provides readiness checks for the directories and
// binaries tubescan depends on.
//
// The dispatcher runs RunAll before draining the queue and refuses to start
// when a required check fails, so jobs are not claimed only to fail one by
// one. The CLI "tubescan doctor" command prints the same results.
package preflight
