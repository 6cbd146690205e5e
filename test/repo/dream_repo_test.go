package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/dreamlog/internal/model"
	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
	appErr "github.com/xxxsen/dreamlog/internal/pkg/errors"
	"github.com/xxxsen/dreamlog/internal/repo"
	"github.com/xxxsen/dreamlog/test/testutil"
)

func newDream(content, day string, embedding []float32) *model.Dream {
	occurred, _ := time.Parse(dateutil.DayLayout, day)
	d := &model.Dream{
		Content:        content,
		DateOccurred:   occurred,
		ClusterLabel:   "ORIGIN_POINT",
		Interpretation: "reading",
		AnalysisJSON:   `{"summary":"s"}`,
		Ctime:          time.Now().Unix(),
	}
	if len(embedding) > 0 {
		d.Embedding = embedding
		d.EmbeddingModel = "m1"
	}
	return d
}

func TestDreamRepoCRUD(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dreams := repo.NewDreamRepo(db)

	first := newDream("flying over a city", "2024-05-19", []float32{1, 0, 0})
	require.NoError(t, dreams.Create(ctx, first))
	require.NotZero(t, first.ID)
	second := newDream("swimming in the sea", "2024-05-20", nil)
	require.NoError(t, dreams.Create(ctx, second))
	third := newDream("falling teeth", "2024-05-20", []float32{0, 1, 0})
	require.NoError(t, dreams.Create(ctx, third))

	got, err := dreams.GetByID(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, "flying over a city", got.Content)
	require.Equal(t, "2024-05-19", dateutil.FormatDay(got.DateOccurred))
	require.Equal(t, []float32{1, 0, 0}, got.Embedding)
	require.Equal(t, "m1", got.EmbeddingModel)

	_, err = dreams.GetByID(ctx, 9999)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	page, err := dreams.List(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, third.ID, page[0].ID)

	recent, err := dreams.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	require.Equal(t, second.ID, recent[0].ID)
	require.Equal(t, third.ID, recent[1].ID)

	day, err := dreams.ListByDate(ctx, third.DateOccurred)
	require.NoError(t, err)
	require.Len(t, day, 2)

	missing, err := dreams.ListMissingEmbedding(ctx, "m1", 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	require.Equal(t, second.ID, missing[0].ID)

	missing, err = dreams.ListMissingEmbedding(ctx, "m2", 10)
	require.NoError(t, err)
	require.Len(t, missing, 3)

	require.NoError(t, dreams.UpdateEmbedding(ctx, second.ID, []float32{0, 0, 1}, "m1"))
	missing, err = dreams.ListMissingEmbedding(ctx, "m1", 10)
	require.NoError(t, err)
	require.Empty(t, missing)

	require.ErrorIs(t, dreams.UpdateEmbedding(ctx, 9999, []float32{1}, "m1"), appErr.ErrNotFound)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	ctx := context.Background()
	cache := repo.NewEmbeddingCacheRepo(db)

	_, ok, err := cache.Get(ctx, "m1", "hash")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{ModelName: "m1", ContentHash: "hash", Embedding: []float32{1, 2}, Ctime: 100}))
	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{ModelName: "m1", ContentHash: "hash", Embedding: []float32{3, 4}, Ctime: 200}))
	got, ok, err := cache.Get(ctx, "m1", "hash")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []float32{3, 4}, got)

	removed, err := cache.DeleteBefore(ctx, 150)
	require.NoError(t, err)
	require.Equal(t, int64(0), removed)
	removed, err = cache.DeleteBefore(ctx, 300)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)
}
