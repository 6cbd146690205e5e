package embedcache

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/dreamlog/internal/ai"
	"github.com/xxxsen/dreamlog/internal/model"
	"go.uber.org/zap"
)

// Store persists embeddings keyed by model name and content hash.
type Store interface {
	Get(ctx context.Context, modelName, contentHash string) ([]float32, bool, error)
	Save(ctx context.Context, item *model.EmbeddingCache) error
}

func WrapDBCacheToEmbedder(e ai.IEmbedder, store Store) ai.IEmbedder {
	if e == nil || store == nil {
		return e
	}
	return &dbEmbedder{next: e, store: store}
}

type dbEmbedder struct {
	next  ai.IEmbedder
	store Store
}

func (d *dbEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := d.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (d *dbEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	hits := 0
	res, err := embedMisses(ctx, d.next, texts,
		func(ctx context.Context, text string) ([]float32, bool, error) {
			_, contentHash, modelName := buildCacheKey(d.next.ModelName(), text)
			values, ok, err := d.store.Get(ctx, modelName, contentHash)
			if err != nil {
				logutil.GetLogger(ctx).Warn("read embedding cache failed", zap.Error(err))
				return nil, false, nil
			}
			if ok {
				hits++
			}
			return values, ok, nil
		},
		func(ctx context.Context, text string, vec []float32) {
			_, contentHash, modelName := buildCacheKey(d.next.ModelName(), text)
			if err := d.store.Save(ctx, &model.EmbeddingCache{
				ModelName:   modelName,
				ContentHash: contentHash,
				Embedding:   vec,
				Ctime:       time.Now().Unix(),
			}); err != nil {
				logutil.GetLogger(ctx).Warn("failed to cache embedding", zap.Error(err))
			}
		},
	)
	if err != nil {
		return nil, err
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (db)", zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	return res, nil
}

func (d *dbEmbedder) ModelName() string {
	return d.next.ModelName()
}
