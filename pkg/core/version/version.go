// ============================================================================
// InboxPilot Voice - Hands-free mail assistant
// ============================================================================
//
// Package:     version
// Description: Central version information
// Author:      Mike Stoffels
// Created:     2025-12-06
// License:     MIT
// ============================================================================

package version

import (
	"fmt"
	"runtime"
)

// Version constants, overridable at link time with -ldflags "-X ...".
var (
	// Release version
	Release = "0.3.0"

	// Commit is the VCS revision of the build
	Commit = "dev"

	// Protocol is the backend API revision the client speaks
	Protocol = "1"
)

// Component versions
const (
	Controller = "0.3.0"
	Classifier = "0.3.0"
	Feed       = "0.1.0"
)

// ComponentVersion returns the version for a given component name
func ComponentVersion(name string) string {
	switch name {
	case "controller":
		return Controller
	case "classifier":
		return Classifier
	case "feed":
		return Feed
	default:
		return Release
	}
}

// String returns a one-line description of the build
func String() string {
	return fmt.Sprintf("voicepilot %s (%s, api %s, %s/%s)", Release, Commit, Protocol, runtime.GOOS, runtime.GOARCH)
}
