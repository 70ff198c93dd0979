package contracts

import (
	"runtime"
	"runtime/debug"
	"sync"

	"ecomeda/pkg/contracts/domain"
)

// Version is the release shared by edactl and the API server
const Version = "0.3.0"

// APIVersion covers the REST routes, problem documents and websocket
// event payloads
const APIVersion = "v1"

// ReportFormat tags report.json as written by the report store
const ReportFormat = "v1"

// GitCommit may be set with -ldflags "-X ecomeda/pkg/contracts.GitCommit=...".
// When empty the VCS stamp embedded by the Go toolchain is used.
var GitCommit = ""

// VersionInfo is served by GET /api/version
type VersionInfo struct {
	Version      string            `json:"version"`
	APIVersion   string            `json:"api_version"`
	ReportFormat string            `json:"report_format"`
	Commit       string            `json:"commit"`
	Modified     bool              `json:"modified,omitempty"`
	GoVersion    string            `json:"go_version"`
	Platform     string            `json:"platform"`
	Views        []domain.ViewName `json:"views"`
}

var (
	vcsOnce     sync.Once
	vcsRevision string
	vcsModified bool
)

func readVCS() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			vcsRevision = s.Value
		case "vcs.modified":
			vcsModified = s.Value == "true"
		}
	}
}

// GetVersionInfo describes this build and the views it can compute
func GetVersionInfo() VersionInfo {
	vcsOnce.Do(readVCS)

	commit := GitCommit
	if commit == "" {
		commit = vcsRevision
	}
	if commit == "" {
		commit = "unknown"
	}

	views := make([]domain.ViewName, 0, len(domain.AllViews)+1)
	views = append(views, domain.AllViews...)
	views = append(views, domain.ViewCorrelation)

	return VersionInfo{
		Version:      Version,
		APIVersion:   APIVersion,
		ReportFormat: ReportFormat,
		Commit:       commit,
		Modified:     vcsModified,
		GoVersion:    runtime.Version(),
		Platform:     runtime.GOOS + "/" + runtime.GOARCH,
		Views:        views,
	}
}
