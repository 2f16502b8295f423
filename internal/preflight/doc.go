// Package preflight provides readiness checks for the filesystem paths and
// external services obsdemux depends on.
//
// The daemon runs RunAll at startup and logs failures without refusing to
// start; the CLI "obsdemux status" command renders the same results.
package preflight
