package job

import (
	"context"
	"time"
)

type DayExporter interface {
	ExportDay(ctx context.Context, day time.Time) (string, int, error)
}

// DatasetSnapshotJob exports the dreams that occurred on the previous UTC day.
type DatasetSnapshotJob struct {
	exporter DayExporter
	now      func() time.Time
}

func NewDatasetSnapshotJob(exporter DayExporter) *DatasetSnapshotJob {
	return &DatasetSnapshotJob{exporter: exporter, now: time.Now}
}

func (j *DatasetSnapshotJob) Name() string {
	return "dataset_snapshot"
}

func (j *DatasetSnapshotJob) Run(ctx context.Context) error {
	if j.exporter == nil {
		return nil
	}
	now := j.now().UTC()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	_, _, err := j.exporter.ExportDay(ctx, day)
	return err
}
