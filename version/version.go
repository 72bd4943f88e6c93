// Package version reports the studykit build identity. The variables are
// meant to be stamped by release builds:
//
//	go build -ldflags "-X github.com/membo-ai/studykit/version.version=1.0.0"
//
// Unstamped binaries fall back to the module and VCS metadata Go embeds
// at build time.
package version

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

const (
	devVersion     = "dev"
	shortCommitLen = 7
)

// Stamped through ldflags; empty in development builds.
var (
	version   = devVersion
	gitCommit = ""
	buildDate = ""
)

// GetVersion returns the stamped version, or the module version from the
// embedded build info when no stamp is present.
func GetVersion() string {
	if version != devVersion {
		return version
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}

	return devVersion
}

func vcsSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}

// commitHash prefers the stamped commit, then the VCS revision recorded
// in the build info, shortened to the usual seven characters.
func commitHash() string {
	if gitCommit != "" {
		return gitCommit
	}
	rev := vcsSetting("vcs.revision")
	return rev[:min(shortCommitLen, len(rev))]
}

// GetVersionInfo renders the build identity as a short printable block
// for diagnostics surfaces.
func GetVersionInfo() string {
	var b strings.Builder

	fmt.Fprintf(&b, "studykit version %s", GetVersion())
	if commit := commitHash(); commit != "" {
		fmt.Fprintf(&b, "\ncommit: %s", commit)
	}
	if buildDate != "" {
		fmt.Fprintf(&b, "\nbuilt: %s", buildDate)
	}
	return b.String()
}

// GetBuildInfo returns the build identity as slog key-value attributes.
func GetBuildInfo() []any {
	attrs := []any{
		"version", GetVersion(),
	}

	if commit := commitHash(); commit != "" {
		attrs = append(attrs, "commit", commit)
	}
	if gitCommit == "" && vcsSetting("vcs.modified") == "true" {
		attrs = append(attrs, "dirty", true)
	}
	if buildDate != "" {
		attrs = append(attrs, "built", buildDate)
	}

	return attrs
}

// LogStartup emits one debug line with the build identity. The logger
// package calls it once its handler is installed; outside debug or
// trace level it stays silent.
func LogStartup() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug", "trace":
	default:
		return
	}

	slog.Log(context.Background(), slog.LevelDebug, "studykit starting", GetBuildInfo()...)
}
