// Package buildinfo reports the version stamped into the council binary.
package buildinfo

import (
	"encoding/json"
	"net/http"
	"runtime"
)

// Set at build time:
// -ldflags "-X github.com/otherjamesbrown/council-records/pkg/buildinfo.Version=v0.3.0
// -X github.com/otherjamesbrown/council-records/pkg/buildinfo.Commit=1a2b3c4
// -X github.com/otherjamesbrown/council-records/pkg/buildinfo.BuildTime=2026-02-11T18:00:00Z"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Name is the program name reported by Get.
const Name = "council"

// Info holds build information.
type Info struct {
	Name      string `json:"name" yaml:"name"`
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	BuildTime string `json:"build_time" yaml:"build_time"`
	GoVersion string `json:"go_version" yaml:"go_version"`
	Platform  string `json:"platform" yaml:"platform"`
}

// Get returns the build information of the running binary.
func Get() Info {
	return Info{
		Name:      Name,
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String returns a one-liner like "v0.3.0 (1a2b3c4, 2026-02-11T18:00:00Z)".
func String() string {
	return Version + " (" + Commit + ", " + BuildTime + ")"
}

// Handler serves Get as JSON.
func Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Get())
	}
}
