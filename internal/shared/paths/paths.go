// Package paths resolves the overlay's on-disk layout. All persistence
// components root their files here so relocating the data directory is
// a single-point change.
//
//	<data>/
//	  ├── state.json           (persisted application state)
//	  ├── state.json.bak       (rotating backup)
//	  ├── recovery-state.json  (emergency services snapshot)
//	  └── crash-reports/       (one JSON file per incident)
package paths

import (
	"os"
	"path/filepath"
)

const appDir = "glintapp-overlay"

// DataDir returns the per-user data directory, creating it if needed.
// Falls back to a temp directory when the platform reports no config
// home.
func DataDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		base = os.TempDir()
	}
	dir := filepath.Join(base, appDir)
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// Resolve roots a relative path at the data directory; absolute paths
// pass through so configuration can point anywhere.
func Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(DataDir(), path)
}

// StateFile is the persisted state location for the given configured
// path.
func StateFile(configured string) string {
	return Resolve(configured)
}

// CrashReportsDir is the crash store location for the given configured
// path.
func CrashReportsDir(configured string) string {
	return Resolve(configured)
}
