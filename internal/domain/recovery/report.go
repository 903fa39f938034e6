package recovery

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/bytedance/sonic"
	"github.com/oklog/ulid/v2"

	"github.com/glintapp/overlay/internal/shared/types"
)

// ReportStore writes one crash report file per incident. Report IDs
// are ULIDs so filenames sort by incident time.
type ReportStore struct {
	dir        string
	appVersion string
}

// NewReportStore creates a store rooted at dir.
func NewReportStore(dir, appVersion string) *ReportStore {
	return &ReportStore{dir: dir, appVersion: appVersion}
}

// Dir returns the crash-reports directory.
func (s *ReportStore) Dir() string {
	return s.dir
}

// Write builds and persists a report for the incident. The returned
// report carries the generated crash id even when the disk write
// fails, so the fatal dialog can still name it.
func (s *ReportStore) Write(kind string, cause error, stack string, startedAt time.Time) (*types.CrashReport, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	report := &types.CrashReport{
		ID:         ulid.Make().String(),
		Type:       kind,
		Timestamp:  time.Now(),
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		AppVersion: s.appVersion,
		RuntimeVersions: map[string]string{
			"go": runtime.Version(),
		},
		Error: types.CrashError{
			Name:    kind,
			Message: cause.Error(),
			Stack:   stack,
		},
		MemoryBytes:   mem.Sys,
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
	}

	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return report, fmt.Errorf("failed to marshal crash report: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return report, fmt.Errorf("failed to create crash report dir: %w", err)
	}
	if err := os.WriteFile(s.Path(report.ID), data, 0o644); err != nil {
		return report, fmt.Errorf("failed to write crash report: %w", err)
	}
	return report, nil
}

// Path returns the on-disk location for a report id.
func (s *ReportStore) Path(id string) string {
	return filepath.Join(s.dir, fmt.Sprintf("crash-%s.json", id))
}
