package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/core/config"
	"lighthouse.app/cityintel/core/db"
	"lighthouse.app/cityintel/internal/brain"
	"lighthouse.app/cityintel/internal/cache"
	"lighthouse.app/cityintel/internal/feed"
	"lighthouse.app/cityintel/internal/history"
	"lighthouse.app/cityintel/internal/metrics"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/pipeline"
	"lighthouse.app/cityintel/internal/source"
	"lighthouse.app/cityintel/internal/store"
	"lighthouse.app/cityintel/internal/video"
)

// Services is the assembled object graph shared by the server and the one-shot runner.
type Services struct {
	Orchestrator *pipeline.Orchestrator
	Scheduler    *pipeline.Scheduler
	History      *history.Tracker
	Archive      store.IssueArchive
	FeedReader   feed.Reader
	Video        *video.Enhancer
	Cache        *cache.Cache

	closers []func()
}

// Build connects infrastructure and wires the pipeline. Redis, MinIO and the archive
// database are optional; missing ones fall back to in-memory or disabled components.
func Build(ctx context.Context, cfg config.Config, reg prometheus.Registerer) (*Services, error) {
	s := &Services{}
	ok := false
	defer func() {
		if !ok {
			s.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.closers = append(s.closers, func() { _ = redisClient.Close() })
		slog.InfoContext(ctx, "redis connected", "feed_stream", cfg.Redis.FeedStream)
	} else {
		slog.InfoContext(ctx, "redis disabled, using in-memory past issues and no live feed")
	}

	archive, err := openArchive(ctx, cfg, s)
	if err != nil {
		return nil, err
	}
	s.Archive = archive

	var pastIssues store.PastIssueStore
	publisher := feed.NewNoopPublisher()
	if redisClient != nil {
		pastIssues = store.NewRedisPastIssueStore(redisClient, cfg.Redis.PastIssuesKey, cfg.Pipeline.PastIssuesLimit)
		publisher = feed.NewRedisPublisher(redisClient, cfg.Redis.FeedStream, cfg.Redis.FeedMaxLen, slog.Default())
		s.FeedReader = feed.NewRedisReader(redisClient, cfg.Redis.FeedStream)
	} else {
		pastIssues = store.NewMemoryPastIssueStore(cfg.Pipeline.PastIssuesLimit)
	}
	s.closers = append(s.closers, func() { _ = publisher.Close() })

	stores := store.NewStores(pastIssues, archive)
	s.History = history.NewTracker(stores.PastIssues())
	s.Cache = cache.New(cfg.Pipeline.CacheTTL)

	catalog, err := config.LoadCatalog(cfg.Sources.CatalogFile)
	if err != nil {
		return nil, err
	}

	analysisLLM, err := llm.New(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.Model,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating analysis llm client: %w", err)
	}
	synthesisLLM, err := llm.New(llm.Config{
		APIKey:    cfg.LLM.APIKey,
		BaseURL:   cfg.LLM.BaseURL,
		Model:     cfg.LLM.SynthesisModel,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("creating synthesis llm client: %w", err)
	}

	httpClient := &http.Client{}
	fetcher := source.NewRouter(map[model.SourceType]source.Fetcher{
		model.SourceStructuredData: source.NewDatasetFetcher(httpClient, source.DatasetConfig{
			BaseURL:  cfg.Sources.SODABaseURL,
			AppToken: cfg.Sources.SODAToken,
			Timeout:  cfg.Sources.Timeout,
			Catalog:  catalog.Datasets,
		}, s.Cache),
		model.SourceNews:      source.NewNewsFetcher(httpClient, catalog.News, cfg.Sources.Timeout),
		model.SourceGovRecord: source.NewGovFetcher(httpClient, catalog.Gov, cfg.Sources.Timeout, cfg.Sources.GovBudget),
	})

	s.Orchestrator = pipeline.New(pipeline.Deps{
		Fetcher:      fetcher,
		Analyst:      brain.NewAnalyst(analysisLLM),
		Consolidator: brain.NewConsolidator(synthesisLLM),
		Roundtable:   brain.NewRoundtable(synthesisLLM),
		Cards:        brain.NewCardGenerator(synthesisLLM),
		Charts:       brain.NewChartGenerator(analysisLLM),
		FollowUp:     brain.NewFollowUp(synthesisLLM),
		History:      s.History,
		Archive:      archive,
		Cache:        s.Cache,
		Feed:         publisher,
		Metrics:      metrics.NewPipeline(reg),
	}, pipeline.WithStagger(cfg.Pipeline.FetchStagger))

	if records, err := archive.LoadAll(ctx); err != nil {
		slog.WarnContext(ctx, "failed to count archived issues", "error", err)
	} else {
		s.Orchestrator.SetArchiveCount(len(records))
	}

	if cfg.Pipeline.MarathonEnabled() {
		s.Scheduler = pipeline.NewScheduler(s.Orchestrator, pipeline.SchedulerConfig{
			Interval:   cfg.Pipeline.MarathonInterval,
			RunOnStart: cfg.Pipeline.RunOnStart,
		})
	}

	if cfg.MinIO.Enabled() {
		enhancer, err := buildVideo(ctx, cfg, synthesisLLM, s.Orchestrator)
		if err != nil {
			return nil, err
		}
		s.Video = enhancer
	}

	ok = true
	return s, nil
}

func openArchive(ctx context.Context, cfg config.Config, s *Services) (store.IssueArchive, error) {
	switch cfg.Archive.Driver {
	case config.ArchiveDriverSQLite:
		conn, err := db.OpenSQLite(ctx, cfg.Archive.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = conn.Close() })

		archive := store.NewSQLiteArchive(conn)
		if err := archive.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating sqlite archive: %w", err)
		}
		slog.InfoContext(ctx, "archive ready", "driver", cfg.Archive.Driver, "path", cfg.Archive.SQLitePath)
		return archive, nil

	case config.ArchiveDriverPostgres:
		database, err := db.New(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		s.closers = append(s.closers, database.Close)

		archive := store.NewPostgresArchive(database)
		if err := archive.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("migrating postgres archive: %w", err)
		}
		slog.InfoContext(ctx, "archive ready", "driver", cfg.Archive.Driver)
		return archive, nil

	default:
		slog.InfoContext(ctx, "archive kept in memory", "driver", cfg.Archive.Driver)
		return store.NewMemoryArchive(), nil
	}
}

func buildVideo(ctx context.Context, cfg config.Config, scriptLLM llm.Client, sink video.LogSink) (*video.Enhancer, error) {
	frames, err := video.NewMinIOStore(cfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("creating frame store: %w", err)
	}
	if err := frames.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensuring frame bucket: %w", err)
	}

	images, err := llm.NewImageGenerator(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.Video.ImageModel,
	})
	if err != nil {
		return nil, fmt.Errorf("creating image generator: %w", err)
	}

	slog.InfoContext(ctx, "video rendering enabled", "bucket", cfg.MinIO.Bucket, "image_model", cfg.Video.ImageModel)
	return video.NewEnhancer(video.NewScriptWriter(scriptLLM), images, frames, sink), nil
}

// Close releases infrastructure in reverse order of acquisition.
func (s *Services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}
