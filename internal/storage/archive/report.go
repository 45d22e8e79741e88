package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"gotothemoon/internal/backtest"
	"gotothemoon/internal/core"
)

const reportPrefix = "reports"

func reportPath(runID string) string {
	return fmt.Sprintf("%s/%s.json", reportPrefix, runID)
}

// SaveReport archives a backtest report as JSON under the run ID.
func SaveReport(ctx context.Context, store Storage, runID string, report *backtest.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("marshaling report: %w", err))
	}
	if err := store.Write(ctx, reportPath(runID), data); err != nil {
		return core.WrapError(core.ErrStoreFailed, fmt.Errorf("writing report: %w", err))
	}
	return nil
}

// LoadReport retrieves an archived report by run ID.
func LoadReport(ctx context.Context, store Storage, runID string) (*backtest.Report, error) {
	data, err := store.Read(ctx, reportPath(runID))
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("reading report: %w", err))
	}
	var report backtest.Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("unmarshaling report: %w", err))
	}
	return &report, nil
}

// ListReports returns the run IDs of all archived reports.
func ListReports(ctx context.Context, store Storage) ([]string, error) {
	paths, err := store.List(ctx, reportPrefix)
	if err != nil {
		return nil, core.WrapError(core.ErrStoreFailed, fmt.Errorf("listing reports: %w", err))
	}
	ids := make([]string, 0, len(paths))
	for _, p := range paths {
		base := path.Base(filepath.ToSlash(p))
		if strings.HasSuffix(base, ".json") {
			ids = append(ids, strings.TrimSuffix(base, ".json"))
		}
	}
	return ids, nil
}
