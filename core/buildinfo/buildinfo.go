// Package buildinfo exposes version metadata injected at link time:
//
//	go build -ldflags "-X github.com/m3rciful/quizbot/core/buildinfo.Version=v0.3.0 \
//	  -X github.com/m3rciful/quizbot/core/buildinfo.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/m3rciful/quizbot/core/buildinfo.Date=$(date -u +%FT%TZ)"
package buildinfo

import "fmt"

var (
	// Version is the release tag of the build.
	Version = "dev"
	// Commit is the source revision of the build.
	Commit = "local"
	// Date is the RFC3339 build timestamp.
	Date = ""
)

// String renders the metadata for the version command.
func String() string {
	if Date == "" {
		return fmt.Sprintf("%s (%s)", Version, Commit)
	}
	return fmt.Sprintf("%s (%s, built %s)", Version, Commit, Date)
}
