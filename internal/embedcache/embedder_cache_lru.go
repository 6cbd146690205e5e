package embedcache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/dreamlog/internal/ai"
	"go.uber.org/zap"
)

func WrapLruCacheToEmbedder(e ai.IEmbedder, size int, ttl time.Duration) ai.IEmbedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := l.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (l *lruEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	modelName := l.next.ModelName()
	hits := 0
	res, err := embedMisses(ctx, l.next, texts,
		func(ctx context.Context, text string) ([]float32, bool, error) {
			key, _, _ := buildCacheKey(modelName, text)
			cached, ok := l.cache.Get(key)
			if !ok {
				return nil, false, nil
			}
			hits++
			return cloneEmbedding(cached), true, nil
		},
		func(ctx context.Context, text string, vec []float32) {
			key, _, _ := buildCacheKey(modelName, text)
			l.cache.Add(key, cloneEmbedding(vec))
		},
	)
	if err != nil {
		return nil, err
	}
	if hits > 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit (lru)", zap.Int("hits", hits), zap.Int("total", len(texts)))
	}
	return res, nil
}

func (l *lruEmbedder) ModelName() string {
	return l.next.ModelName()
}
