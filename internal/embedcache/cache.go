package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/xxxsen/dreamlog/internal/ai"
)

func buildCacheKey(modelName, text string) (string, string, string) {
	modelName = strings.TrimSpace(modelName)
	if modelName == "" {
		modelName = "unknown"
	}
	hash := sha256.Sum256([]byte(text))
	contentHash := hex.EncodeToString(hash[:])
	return "embed:" + modelName + ":" + contentHash, contentHash, modelName
}

// embedMisses resolves texts through lookup and sends whatever is left to next
// in a single batch. Results keep input order; fresh vectors are handed to
// store before returning.
func embedMisses(
	ctx context.Context,
	next ai.IEmbedder,
	texts []string,
	lookup func(ctx context.Context, text string) ([]float32, bool, error),
	store func(ctx context.Context, text string, vec []float32),
) ([][]float32, error) {
	out := make([][]float32, len(texts))
	missIdx := make([]int, 0, len(texts))
	missTexts := make([]string, 0, len(texts))
	for i, text := range texts {
		vec, ok, err := lookup(ctx, text)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	res, err := next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(res), len(missTexts))
	}
	for j, idx := range missIdx {
		out[idx] = res[j]
		store(ctx, missTexts[j], res[j])
	}
	return out, nil
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
