package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type EmbeddingBackfiller interface {
	BackfillEmbeddings(ctx context.Context, batch int) (int, error)
}

// EmbeddingBackfillJob stores vectors for entries recorded while the
// embedding backend was down, or under a different model.
type EmbeddingBackfillJob struct {
	dreams EmbeddingBackfiller
	batch  int
}

func NewEmbeddingBackfillJob(dreams EmbeddingBackfiller, batch int) *EmbeddingBackfillJob {
	return &EmbeddingBackfillJob{dreams: dreams, batch: batch}
}

func (j *EmbeddingBackfillJob) Name() string {
	return "embedding_backfill"
}

func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	if j.dreams == nil {
		return nil
	}
	batch := j.batch
	if batch <= 0 {
		batch = 32
	}
	updated, err := j.dreams.BackfillEmbeddings(ctx, batch)
	if err != nil {
		return err
	}
	if updated > 0 {
		logutil.GetLogger(ctx).Info("embeddings backfilled", zap.Int("count", updated))
	}
	return nil
}
