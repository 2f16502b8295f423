// Package daemonctl starts and stops a background obsdemux daemon for the
// CLI. Start launches "obsdemux daemon" detached and waits for its socket;
// stop signals the recorded pid and escalates to SIGKILL after a grace period.
package daemonctl
