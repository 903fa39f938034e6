package recovery

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/glintapp/overlay/internal/shared/types"
)

// Uploader ships crash reports to a telemetry endpoint. Uploads are
// strictly best-effort: a failure is logged and forgotten, the on-disk
// report is the source of truth.
type Uploader struct {
	client   *resty.Client
	endpoint string
	log      *zap.Logger
}

// NewUploader creates an uploader, or nil when no endpoint is
// configured so callers can skip telemetry with a nil check.
func NewUploader(endpoint string, log *zap.Logger) *Uploader {
	if endpoint == "" {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	return &Uploader{client: client, endpoint: endpoint, log: log}
}

// Upload posts one report. Callers run this off the main flow; crash
// handling never waits on the network.
func (u *Uploader) Upload(ctx context.Context, report *types.CrashReport) {
	resp, err := u.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(report).
		Post(u.endpoint)
	if err != nil {
		u.log.Warn("crash report upload failed",
			zap.String("crash_id", report.ID), zap.Error(err))
		return
	}
	if resp.IsError() {
		u.log.Warn("crash report upload rejected",
			zap.String("crash_id", report.ID),
			zap.Int("status", resp.StatusCode()))
		return
	}
	u.log.Info("crash report uploaded", zap.String("crash_id", report.ID))
}
