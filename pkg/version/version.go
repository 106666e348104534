// Package version exposes the build version string.
package version

// Version is the release version, overridable at build time via
// -ldflags "-X .../pkg/version.Version=v1.2.3".
var Version = "v0.3.0"
