// Package buildinfo carries the version stamped in at link time.
package buildinfo

// Version is set with -ldflags "-X driftwatch/internal/support/buildinfo.Version=...".
var Version = "dev"
