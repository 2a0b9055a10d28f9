// Package buildinfo carries version metadata stamped in at link time.
package buildinfo

import "fmt"

// Set from cmd/server, which receives them through -ldflags.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Info is the JSON form reported by the health endpoint.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Current returns the stamped values.
func Current() Info {
	return Info{Version: Version, Commit: Commit, BuildDate: BuildDate}
}

func (i Info) String() string {
	return fmt.Sprintf("Version: %s, Commit: %s, BuiltAt: %s", i.Version, i.Commit, i.BuildDate)
}
