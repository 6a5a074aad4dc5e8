// Package version records the gasgit build's release version.
package version

// Version is overridden at build time via -ldflags on release builds.
// Development builds and tests run with the default.
var Version = "dev"
