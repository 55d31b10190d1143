// Package version provides build and version information for Reel Engine.
package version

// Version is the current release version of Reel Engine.
// This can be overridden at build time using:
//
//	go build -ldflags "-X github.com/AaronLay10/ReelEngine/internal/version.Version=x.y.z"
var Version = "0.3.0"
