package version

import (
	"fmt"
	"runtime/debug"
	"strings"
)

var (
	// These can be set at build time with -ldflags:
	// -X github.com/llmrelay/llmrelay/pkg/version.Version=vX.Y.Z
	// -X github.com/llmrelay/llmrelay/pkg/version.Commit=<sha>
	Version = "dev"
	Commit  = ""
	Date    = ""
)

func Current() (version, commit, date string) {
	version = strings.TrimSpace(Version)
	commit = strings.TrimSpace(Commit)
	date = strings.TrimSpace(Date)
	if version == "" {
		version = "dev"
	}
	// Fallback to embedded VCS info when ldflags are not provided.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			switch s.Key {
			case "vcs.revision":
				if commit == "" {
					commit = strings.TrimSpace(s.Value)
				}
			case "vcs.time":
				if date == "" {
					date = strings.TrimSpace(s.Value)
				}
			}
		}
	}
	return version, commit, date
}

func String() string {
	v, commit, _ := Current()
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		return fmt.Sprintf("%s+%s", v, commit)
	}
	return v
}
