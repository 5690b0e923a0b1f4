package version

import (
	"strings"
	"testing"
)

func TestResolve(t *testing.T) {
	tests := []struct {
		name        string
		version     string
		commit      string
		settings    map[string]string
		wantVersion string
		wantCommit  string
		wantDirty   bool
	}{
		{
			name:        "ldflags win",
			version:     "v1.0.0",
			commit:      "deadbee",
			settings:    map[string]string{"vcs.revision": "0123456789abcdef", "module.version": "v0.9.0"},
			wantVersion: "v1.0.0",
			wantCommit:  "deadbee",
		},
		{
			name:        "vcs info",
			settings:    map[string]string{"vcs.revision": "0123456789abcdef", "vcs.modified": "true", "vcs.time": "2026-03-14T10:00:00Z"},
			wantVersion: "dev-20260314",
			wantCommit:  "0123456",
			wantDirty:   true,
		},
		{
			name:        "module version",
			settings:    map[string]string{"module.version": "v0.4.1"},
			wantVersion: "v0.4.1",
			wantCommit:  "unknown",
		},
		{
			name:        "nothing known",
			settings:    map[string]string{},
			wantVersion: "dev",
			wantCommit:  "unknown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := resolve(tt.version, tt.commit, tt.settings)
			if info.Version != tt.wantVersion {
				t.Errorf("Version = %q, want %q", info.Version, tt.wantVersion)
			}
			if info.Commit != tt.wantCommit {
				t.Errorf("Commit = %q, want %q", info.Commit, tt.wantCommit)
			}
			if info.Dirty != tt.wantDirty {
				t.Errorf("Dirty = %v, want %v", info.Dirty, tt.wantDirty)
			}
		})
	}
}

func TestInfoString(t *testing.T) {
	info := Info{Version: "v1.2.3", Commit: "abc1234", Dirty: true, GoVersion: "go1.22.0", Platform: "linux/arm64"}
	want := "v1.2.3 (commit abc1234-dirty, go1.22.0 linux/arm64)"
	if got := info.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if full == "" {
		t.Fatal("Full() returned empty string")
	}
	if !strings.Contains(full, Get().Version) {
		t.Errorf("Full() = %q, missing version %q", full, Get().Version)
	}
}
