package seed

import (
	"context"
	"fmt"

	"github.com/franz/travel-sos/internal/report"
	"github.com/franz/travel-sos/internal/util"
)

// InstallSnapshot copies a prepackaged database into place when dbPath does
// not exist yet. An existing database is never overwritten. Returns true
// when the snapshot was installed.
func InstallSnapshot(ctx context.Context, assetPath, dbPath string, events *report.EventLogger) (bool, error) {
	installed, err := util.CopyFileIfMissing(ctx, assetPath, dbPath, util.DefaultRetryConfig())
	if err != nil {
		events.LogError(report.EventSnapshot, "", err)
		return false, fmt.Errorf("failed to install database snapshot: %w", err)
	}
	events.LogSnapshot(assetPath, dbPath, installed)
	return installed, nil
}
