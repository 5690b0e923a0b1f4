// Package version reports the build version of the fairbuds binaries.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/fairbuds/internal/version.Version=v0.3.0 \
//	                   -X github.com/muurk/fairbuds/internal/version.Commit=abc1234"
var (
	Version = ""
	Commit  = ""
)

// Info describes the running binary.
type Info struct {
	Version   string
	Commit    string
	Dirty     bool
	GoVersion string
	Platform  string
}

var (
	once   sync.Once
	cached Info
)

// Get resolves version info once. Values not set through ldflags come from
// the module build info, falling back to "dev" and "unknown".
func Get() Info {
	once.Do(func() {
		cached = resolve(Version, Commit, readSettings())
	})
	return cached
}

func readSettings() map[string]string {
	settings := map[string]string{}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return settings
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		settings["module.version"] = info.Main.Version
	}
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}
	return settings
}

func resolve(version, commit string, settings map[string]string) Info {
	info := Info{
		Version:   version,
		Commit:    commit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if info.Commit == "" {
		if rev := settings["vcs.revision"]; rev != "" {
			if len(rev) > 7 {
				rev = rev[:7]
			}
			info.Commit = rev
			info.Dirty = settings["vcs.modified"] == "true"
		}
	}

	if info.Version == "" {
		info.Version = settings["module.version"]
	}
	if info.Version == "" {
		info.Version = "dev"
		if t := settings["vcs.time"]; len(t) >= len("2006-01-02") {
			info.Version = "dev-" + t[:4] + t[5:7] + t[8:10]
		}
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

// String returns "v0.3.0 (commit abc1234-dirty, go1.22.1 linux/arm64)".
func (i Info) String() string {
	commit := i.Commit
	if i.Dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (commit %s, %s %s)", i.Version, commit, i.GoVersion, i.Platform)
}

// Full is shorthand for Get().String().
func Full() string {
	return Get().String()
}
