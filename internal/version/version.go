// Package version holds build version information. It is a separate package
// so the CLI and the user agent of the API clients can share it.
package version

// Version is the build version string, set by the main package at startup.
// Format: vX.Y.Z or vX.Y.Z-dev for development builds.
var Version = "v0.4.0-dev"

// BuildTime is the build timestamp, set by the main package at startup.
var BuildTime = "unknown"

// UserAgent is sent with every request to the daemon.
func UserAgent() string {
	return "syncbrowse/" + Version
}
