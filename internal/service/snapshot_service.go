package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dreamlog/internal/filestore"
	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
)

const snapshotPrefix = "snapshots"

// SnapshotService exports one day of entries as json lines. Entries are
// selected by the day the dream occurred, not by when they were recorded.
type SnapshotService struct {
	dreams DreamStore
	store  filestore.Store
}

func NewSnapshotService(dreams DreamStore, store filestore.Store) *SnapshotService {
	return &SnapshotService{dreams: dreams, store: store}
}

func SnapshotKey(day time.Time) string {
	return fmt.Sprintf("%s/dreams-%s.jsonl", snapshotPrefix, dateutil.FormatDay(day))
}

func (s *SnapshotService) ExportDay(ctx context.Context, day time.Time) (string, int, error) {
	dreams, err := s.dreams.ListByDate(ctx, day)
	if err != nil {
		return "", 0, fmt.Errorf("list dreams: %w", err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, d := range dreams {
		if err := enc.Encode(buildView(ctx, d)); err != nil {
			return "", 0, fmt.Errorf("encode dream %d: %w", d.ID, err)
		}
	}
	key := SnapshotKey(day)
	if err := s.store.Save(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		return "", 0, fmt.Errorf("save snapshot: %w", err)
	}
	logutil.GetLogger(ctx).Info("dataset snapshot written", zap.String("key", key), zap.Int("count", len(dreams)))
	return key, len(dreams), nil
}
