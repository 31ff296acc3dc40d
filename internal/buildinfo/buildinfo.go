// Package buildinfo resolves the version stamped into certstore binaries.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"time"
)

const unknown = "unknown"

// Unstamped is the Info of a binary before Resolve runs.
var Unstamped = Info{Version: "dev", Commit: unknown, Date: unknown}

// Info identifies a build.
type Info struct {
	Version string
	Commit  string
	Date    string
}

// Resolve prefers values injected with -ldflags and falls back to the module
// version and VCS stamps the Go toolchain embeds, so `go install` builds
// still report something useful.
func Resolve(version, commit, date string) Info {
	info := Info{Version: version, Commit: commit, Date: date}

	bi, ok := debug.ReadBuildInfo()
	if ok {
		info = fill(info, bi)
	}

	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = unknown
	}
	if info.Date == "" {
		info.Date = unknown
	}
	return info
}

// String renders "1.4.0 (0123456789ab, built 2026-01-02T03:04:05Z)".
func (i Info) String() string {
	return fmt.Sprintf("%s (%s, built %s)", i.Version, i.Commit, i.Date)
}

// Platform names the toolchain and target, e.g. "go1.25.0 linux/amd64".
func Platform() string {
	return runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
}

func fill(info Info, bi *debug.BuildInfo) Info {
	if (info.Version == "" || info.Version == "dev") && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		info.Version = bi.Main.Version
	}

	var dirty bool
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.Commit == "" {
				info.Commit = s.Value
				if len(info.Commit) > 12 {
					info.Commit = info.Commit[:12]
				}
			}
		case "vcs.time":
			if info.Date == "" {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.Date = t.UTC().Format(time.RFC3339)
				}
			}
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if dirty && info.Commit != "" && info.Commit != unknown {
		info.Commit += "-dirty"
	}
	return info
}
