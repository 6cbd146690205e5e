package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/didi/gendry/builder"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/dreamlog/internal/model"
	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
	"github.com/xxxsen/dreamlog/internal/pkg/dbutil"
	appErr "github.com/xxxsen/dreamlog/internal/pkg/errors"
)

var dreamColumns = []string{
	"id", "content", "date_occurred", "cluster_label", "similarity_percentage", "similar_count",
	"temporal_matches", "is_sync", "interpretation", "analysis_json", "embedding", "embedding_model", "ctime",
}

type DreamRepo struct {
	db *sql.DB
}

func NewDreamRepo(db *sql.DB) *DreamRepo {
	return &DreamRepo{db: db}
}

func (r *DreamRepo) Create(ctx context.Context, dream *model.Dream) error {
	data := map[string]interface{}{
		"content":               dream.Content,
		"date_occurred":         dateutil.FormatDay(dream.DateOccurred),
		"cluster_label":         dream.ClusterLabel,
		"similarity_percentage": dream.SimilarityPercentage,
		"similar_count":         dream.SimilarCount,
		"temporal_matches":      dream.TemporalMatches,
		"is_sync":               dream.IsSync,
		"interpretation":        dream.Interpretation,
		"analysis_json":         dream.AnalysisJSON,
		"embedding":             toVector(dream.Embedding),
		"embedding_model":       dream.EmbeddingModel,
		"ctime":                 dream.Ctime,
	}
	sqlStr, args, err := builder.BuildInsert("dreams", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr+" RETURNING id", args)
	return r.db.QueryRowContext(ctx, sqlStr, args...).Scan(&dream.ID)
}

func (r *DreamRepo) GetByID(ctx context.Context, id int64) (*model.Dream, error) {
	where := map[string]interface{}{
		"id": id,
	}
	items, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, appErr.ErrNotFound
	}
	return items[0], nil
}

// List returns entries newest first.
func (r *DreamRepo) List(ctx context.Context, limit, offset uint) ([]*model.Dream, error) {
	where := map[string]interface{}{
		"_orderby": "id desc",
		"_limit":   []uint{offset, limit},
	}
	return r.query(ctx, where)
}

// ListRecent returns the last limit entries in the order they were recorded.
func (r *DreamRepo) ListRecent(ctx context.Context, limit uint) ([]*model.Dream, error) {
	where := map[string]interface{}{
		"_orderby": "id desc",
		"_limit":   []uint{0, limit},
	}
	items, err := r.query(ctx, where)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}

func (r *DreamRepo) ListByDate(ctx context.Context, day time.Time) ([]*model.Dream, error) {
	where := map[string]interface{}{
		"date_occurred": dateutil.FormatDay(day),
		"_orderby":      "id asc",
	}
	return r.query(ctx, where)
}

// ListMissingEmbedding returns entries without a vector from modelName.
func (r *DreamRepo) ListMissingEmbedding(ctx context.Context, modelName string, limit uint) ([]*model.Dream, error) {
	sqlStr, args := dbutil.Finalize(
		"SELECT id, content FROM dreams WHERE embedding IS NULL OR embedding_model <> ? ORDER BY id ASC LIMIT ?",
		[]interface{}{modelName, limit},
	)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*model.Dream
	for rows.Next() {
		item := &model.Dream{}
		if err := rows.Scan(&item.ID, &item.Content); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *DreamRepo) UpdateEmbedding(ctx context.Context, id int64, embedding []float32, modelName string) error {
	where := map[string]interface{}{
		"id": id,
	}
	update := map[string]interface{}{
		"embedding":       toVector(embedding),
		"embedding_model": modelName,
	}
	sqlStr, args, err := builder.BuildUpdate("dreams", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func (r *DreamRepo) query(ctx context.Context, where map[string]interface{}) ([]*model.Dream, error) {
	sqlStr, args, err := builder.BuildSelect("dreams", where, dreamColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := make([]*model.Dream, 0)
	for rows.Next() {
		item := &model.Dream{}
		var embedding *pgvector.Vector
		if err := rows.Scan(
			&item.ID,
			&item.Content,
			&item.DateOccurred,
			&item.ClusterLabel,
			&item.SimilarityPercentage,
			&item.SimilarCount,
			&item.TemporalMatches,
			&item.IsSync,
			&item.Interpretation,
			&item.AnalysisJSON,
			&embedding,
			&item.EmbeddingModel,
			&item.Ctime,
		); err != nil {
			return nil, err
		}
		if embedding != nil {
			item.Embedding = embedding.Slice()
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func toVector(values []float32) interface{} {
	if len(values) == 0 {
		return nil
	}
	return pgvector.NewVector(values)
}
