package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/dreamlog/internal/ai"
	"github.com/xxxsen/dreamlog/internal/config"
	"github.com/xxxsen/dreamlog/internal/embedcache"
	"github.com/xxxsen/dreamlog/internal/filestore"
	"github.com/xxxsen/dreamlog/internal/repo"
	"github.com/xxxsen/dreamlog/internal/resonance"
	"github.com/xxxsen/dreamlog/internal/service"
)

type app struct {
	dreams    *service.DreamService
	snapshots *service.SnapshotService
	cacheRepo *repo.EmbeddingCacheRepo
}

func buildEmbedder(cfg *config.Config, cache embedcache.Store) (ai.IEmbedder, error) {
	timeout := time.Duration(cfg.AI.Embedder.Timeout) * time.Second
	items := make([]ai.EmbedderEntry, 0, len(cfg.AI.Embedder.Providers))
	for _, p := range cfg.AI.Embedder.Providers {
		provider, err := ai.NewEmbedProvider(p.Name, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init embed provider %s: %w", p.Name, err)
		}
		items = append(items, ai.EmbedderEntry{
			Name:     p.Name,
			Embedder: ai.NewEmbedder(provider, p.Model, timeout),
		})
	}
	emb := ai.NewGroupEmbedder(items)
	if emb == nil {
		logutil.GetLogger(context.Background()).Warn("no embedding provider configured, resonance scoring disabled")
		return nil, nil
	}
	if cfg.EmbedCache.DBEnabled {
		emb = embedcache.WrapDBCacheToEmbedder(emb, cache)
	}
	if cfg.EmbedCache.LRUSize > 0 {
		emb = embedcache.WrapLruCacheToEmbedder(emb, cfg.EmbedCache.LRUSize, time.Duration(cfg.EmbedCache.LRUTTL)*time.Second)
	}
	return emb, nil
}

func buildInterpreter(cfg *config.Config) (*ai.Interpreter, error) {
	timeout := time.Duration(cfg.AI.Interpreter.Timeout) * time.Second
	items := make([]ai.GeneratorEntry, 0, len(cfg.AI.Interpreter.Providers))
	for _, p := range cfg.AI.Interpreter.Providers {
		provider, err := ai.NewGenerateProvider(p.Name, p.Data)
		if err != nil {
			return nil, fmt.Errorf("init generate provider %s: %w", p.Name, err)
		}
		items = append(items, ai.GeneratorEntry{
			Name:      p.Name,
			Generator: ai.NewGenerator(provider, p.Model, timeout),
		})
	}
	gen := ai.NewGroupGenerator(items)
	if gen == nil {
		logutil.GetLogger(context.Background()).Warn("no interpretation provider configured, fallback analysis will be stored")
		return nil, nil
	}
	return ai.NewInterpreter(gen, timeout), nil
}

func buildApp(cfg *config.Config, db *sql.DB) (*app, error) {
	dreamRepo := repo.NewDreamRepo(db)
	cacheRepo := repo.NewEmbeddingCacheRepo(db)

	emb, err := buildEmbedder(cfg, cacheRepo)
	if err != nil {
		return nil, err
	}
	interp, err := buildInterpreter(cfg)
	if err != nil {
		return nil, err
	}
	store, err := filestore.New(cfg.FileStore)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	var scorerEmb resonance.Embedder
	if emb != nil {
		scorerEmb = emb
	}
	var interpreter service.Interpreter
	if interp != nil {
		interpreter = interp
	}
	engine := resonance.NewEngine(scorerEmb, cfg.Resonance)
	dreams := service.NewDreamService(dreamRepo, interpreter, engine, emb, service.DreamServiceConfig{
		MinChars: cfg.Limits.MinChars,
		MaxChars: cfg.Limits.MaxChars,
	})
	logutil.GetLogger(context.Background()).Info("services ready",
		zap.Bool("embedder", emb != nil),
		zap.Bool("interpreter", interp != nil),
		zap.String("file_store", cfg.FileStore.Type),
	)
	return &app{
		dreams:    dreams,
		snapshots: service.NewSnapshotService(dreamRepo, store),
		cacheRepo: cacheRepo,
	}, nil
}
