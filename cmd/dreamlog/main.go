package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/dreamlog/internal/config"
	"github.com/xxxsen/dreamlog/internal/db"
	"github.com/xxxsen/dreamlog/internal/handler"
	"github.com/xxxsen/dreamlog/internal/job"
	"github.com/xxxsen/dreamlog/internal/middleware"
	"github.com/xxxsen/dreamlog/internal/pkg/dateutil"
	"github.com/xxxsen/dreamlog/internal/schedule"
)

func main() {
	var (
		configPath string
		batch      int
		date       string
	)

	rootCmd := &cobra.Command{
		Use:   "dreamlog",
		Short: "dreamlog backend server",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run dreamlog server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			return runServer(cfg, conn)
		},
	}

	backfillCmd := &cobra.Command{
		Use:   "backfill",
		Short: "store embeddings for entries that have none",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := buildApp(cfg, conn)
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = cfg.Schedule.BackfillBatch
			}
			return schedule.RunOnce(cmd.Context(), job.NewEmbeddingBackfillJob(a.dreams, batch))
		},
	}
	backfillCmd.Flags().IntVar(&batch, "batch", 0, "entries per run, defaults to schedule.backfill_batch")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot",
		Short: "export one day of entries to the file store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, conn, err := setup(configPath)
			if err != nil {
				return err
			}
			defer conn.Close()
			a, err := buildApp(cfg, conn)
			if err != nil {
				return err
			}
			if date == "" {
				return schedule.RunOnce(cmd.Context(), job.NewDatasetSnapshotJob(a.snapshots))
			}
			day, ok := dateutil.Parse(date)
			if !ok {
				return fmt.Errorf("invalid --date %q", date)
			}
			key, count, err := a.snapshots.ExportDay(cmd.Context(), dateutil.Day(day))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d entries)\n", key, count)
			return nil
		},
	}
	snapshotCmd.Flags().StringVar(&date, "date", "", "day to export as YYYY-MM-DD, defaults to yesterday")

	rootCmd.AddCommand(runCmd, backfillCmd, snapshotCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func setup(configPath string) (*config.Config, *sql.DB, error) {
	if configPath == "" {
		return nil, nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.ApplyMigrations(conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}
	return cfg, conn, nil
}

func runServer(cfg *config.Config, conn *sql.DB) error {
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("file_store", cfg.FileStore.Type),
		zap.Strings("cors_origins", cfg.CORSOrigins),
	)

	a, err := buildApp(cfg, conn)
	if err != nil {
		return err
	}

	deps := handler.RouterDeps{
		Dreams:          handler.NewDreamHandler(a.dreams),
		CreateRateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	jobs := []struct {
		job  schedule.Job
		spec string
	}{
		{job.NewEmbeddingBackfillJob(a.dreams, cfg.Schedule.BackfillBatch), cfg.Schedule.EmbeddingBackfill},
		{job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbedCache.MaxAgeDays), cfg.Schedule.EmbeddingCacheCleanup},
		{job.NewDatasetSnapshotJob(a.snapshots), cfg.Schedule.DatasetSnapshot},
	}
	for _, item := range jobs {
		if err := scheduler.AddJob(item.job, item.spec); err != nil {
			return fmt.Errorf("schedule %s: %w", item.job.Name(), err)
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))
	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
