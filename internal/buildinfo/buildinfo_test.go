package buildinfo

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve_LdflagsWin(t *testing.T) {
	info := Resolve("v1.4.0", "abc123", "2026-01-02T03:04:05Z")
	assert.Equal(t, Info{Version: "v1.4.0", Commit: "abc123", Date: "2026-01-02T03:04:05Z"}, info)
}

func TestResolve_Defaults(t *testing.T) {
	info := Resolve("", "", "")
	assert.NotEmpty(t, info.Version)
	assert.NotEmpty(t, info.Commit)
	assert.NotEmpty(t, info.Date)
}

func TestFill_FromVCSStamps(t *testing.T) {
	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v0.9.1"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-02-03T10:00:00+01:00"},
			{Key: "vcs.modified", Value: "true"},
		},
	}

	info := fill(Info{Version: "dev"}, bi)
	assert.Equal(t, "v0.9.1", info.Version)
	assert.Equal(t, "0123456789ab-dirty", info.Commit)
	assert.Equal(t, "2026-02-03T09:00:00Z", info.Date)
}

func TestFill_DevelVersionIgnored(t *testing.T) {
	bi := &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}}
	info := fill(Info{Version: "dev", Commit: "feed"}, bi)
	assert.Equal(t, "dev", info.Version)
	assert.Equal(t, "feed", info.Commit)
}

func TestInfo_String(t *testing.T) {
	info := Info{Version: "1.4.0", Commit: "0123456789ab", Date: "2026-01-02T03:04:05Z"}
	assert.Equal(t, "1.4.0 (0123456789ab, built 2026-01-02T03:04:05Z)", info.String())
	assert.Contains(t, Platform(), "go1.")
}
