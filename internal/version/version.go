package version

import (
	"runtime/debug"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

const (
	// Version is the current semantic version
	Version = "0.3.0"

	// ServerName is reported to editors and MCP clients
	ServerName = "scalaidx"
)

// Set with -ldflags "-X .../internal/version.GitCommit=..."
var (
	GitCommit = "unknown"
	BuildDate = "development"
)

// FullInfo is the --version line
func FullInfo() string {
	return ServerName + " " + Version + " (commit " + GitCommit + ", built " + BuildDate + ", build " + BuildID() + ")"
}

var buildID = sync.OnceValue(func() string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Version + "-" + GitCommit
	}

	d := xxhash.New()
	_, _ = d.WriteString(info.GoVersion)
	_, _ = d.WriteString(info.Main.Path)
	_, _ = d.WriteString(info.Main.Version)
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" || s.Key == "vcs.modified" {
			_, _ = d.WriteString(s.Key + "=" + s.Value)
		}
	}
	return strconv.FormatUint(d.Sum64(), 16)
})

// BuildID identifies the running binary. Index status reports it so stale
// servers can be told apart after an upgrade.
func BuildID() string {
	return buildID()
}
