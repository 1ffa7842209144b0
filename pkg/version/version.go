// Package version exposes the build version.
package version

// Version is overridden at build time via ldflags.
var Version = "dev"
