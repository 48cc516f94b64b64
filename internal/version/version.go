// Package version holds the CLI's build version, overridable at link
// time with -ldflags "-X .../internal/version.Version=...".
package version

var Version = "dev"
