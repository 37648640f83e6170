// Package version provides information about the build version of the service.
package version

import (
	stdruntime "runtime"
	"sync"
)

// BuildInfo holds version information about the service build.
type BuildInfo struct {
	Service string  `json:"service"`
	Version string  `json:"version"`
	Commit  string  `json:"commit"`
	Date    string  `json:"date"`
	Runtime Runtime `json:"runtime"`
}

// Runtime describes the host runtime the loader is embedded in
type Runtime struct {
	Runtime  string `json:"runtime"`
	Engine   string `json:"engine"`
	Compiler string `json:"compiler"`
	Loader   string `json:"loader"`
}

// Info returns the build information. The version, commit, and date variables
// are intended to be set at build time using -ldflags.
func Info() BuildInfo {
	// Set via -ldflags "-X 'modloader/internal/core/version.version=v0.0.1'
	// -X 'modloader/internal/core/version.commit=abcd' -X 'modloader/internal/core/version.date=2025-09-02'"
	return BuildInfo{
		Service: "modloader-api",
		Version: version,
		Commit:  commit,
		Date:    date,
		Runtime: GetRuntime(),
	}
}

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	rtOnce sync.Once
	rt     Runtime
)

// SetRuntime records the runtime versions once; later calls are ignored
// Returns true if this call froze the record
func SetRuntime(r Runtime) bool {
	set := false
	rtOnce.Do(func() {
		rt = r
		set = true
	})
	return set
}

// GetRuntime returns the frozen runtime record, freezing defaults if nothing was set
func GetRuntime() Runtime {
	rtOnce.Do(func() { rt = DefaultRuntime() })
	return rt
}

// DefaultRuntime describes this process
func DefaultRuntime() Runtime {
	return Runtime{
		Runtime:  "modloader",
		Engine:   "none",
		Compiler: stdruntime.Version(),
		Loader:   version,
	}
}
