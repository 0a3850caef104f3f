package version

import (
	"testing"
	"time"
)

func TestCurrent_Defaults(t *testing.T) {
	oldVersion, oldCommit, oldBuildTime := AppVersion, GitCommit, BuildTime
	t.Cleanup(func() {
		AppVersion, GitCommit, BuildTime = oldVersion, oldCommit, oldBuildTime
	})

	AppVersion = ""
	GitCommit = "abc123"
	BuildTime = " "

	info := Current()
	if info.Name != Name {
		t.Fatalf("expected name %q, got %q", Name, info.Name)
	}
	if info.Version != DevelopmentVersion {
		t.Fatalf("expected version %q, got %q", DevelopmentVersion, info.Version)
	}
	if info.Commit != "abc123" {
		t.Fatalf("expected commit abc123, got %q", info.Commit)
	}
	if info.BuildTime != Unknown {
		t.Fatalf("expected build_time %q, got %q", Unknown, info.BuildTime)
	}
}

func TestInfo_DocumentVersion(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"v1.4.0", "1.4.0"},
		{"2.0.1-rc.1", "2.0.1-rc.1"},
		{"dev", "0.0.0-dev"},
		{"1.4", "0.0.0-dev"},
	}
	for _, tt := range tests {
		if got := (Info{Version: tt.version}).DocumentVersion(); got != tt.want {
			t.Errorf("DocumentVersion(%q) = %q, want %q", tt.version, got, tt.want)
		}
	}
}

func TestInfo_UserAgent(t *testing.T) {
	if got := (Info{Name: "providerdesk", Version: "v1.0.0"}).UserAgent(); got != "providerdesk/v1.0.0" {
		t.Fatalf("UserAgent = %q", got)
	}
}

func TestInfo_ParseBuildTime(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	parsed, ok := Info{BuildTime: now.Format(time.RFC3339)}.ParseBuildTime()
	if !ok {
		t.Fatalf("expected build time to be parsed")
	}
	if !parsed.Equal(now) {
		t.Fatalf("expected %s, got %s", now, parsed)
	}
	if _, ok := (Info{BuildTime: Unknown}).ParseBuildTime(); ok {
		t.Fatal("unknown build time must not parse")
	}
}
