package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/errdocs/retrieval-engine/internal/corpus"
	"github.com/errdocs/retrieval-engine/internal/engine"
	"github.com/errdocs/retrieval-engine/internal/feedback"
	"github.com/errdocs/retrieval-engine/internal/index"
	"github.com/errdocs/retrieval-engine/pkg/config"
	"github.com/errdocs/retrieval-engine/pkg/health"
	"github.com/errdocs/retrieval-engine/pkg/kafka"
	"github.com/errdocs/retrieval-engine/pkg/logger"
	"github.com/errdocs/retrieval-engine/pkg/metrics"
	"github.com/errdocs/retrieval-engine/pkg/postgres"
	pkgredis "github.com/errdocs/retrieval-engine/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting retrieval engine",
		"corpus_source", cfg.Corpus.Source,
		"metrics_port", cfg.Metrics.Port,
	)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var source corpus.Source
	var pgClient *postgres.Client
	switch cfg.Corpus.Source {
	case "postgres":
		pgClient, err = postgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		source, err = corpus.NewPostgresSource(pgClient, cfg.Corpus.Table)
		if err != nil {
			slog.Error("failed to create corpus source", "error", err)
			os.Exit(1)
		}
	default:
		source = corpus.NewFSSource(cfg.Corpus.Root)
	}

	var records feedback.RecordStore
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, feedback will not survive restarts", "error", err)
		records = feedback.NewMemStore()
	} else {
		defer redisClient.Close()
		records = feedback.NewRedisStore(redisClient, cfg.Redis.OpTimeout)
		slog.Info("feedback store backed by redis", "addr", cfg.Redis.Addr)
	}

	store := feedback.NewStore(records, feedback.Config{
		Alpha:            cfg.Engine.EMAAlpha,
		PatternThreshold: cfg.Engine.PatternThreshold,
		PatternMinCount:  int64(cfg.Engine.PatternMinCount),
		PatternMinConf:   cfg.Engine.PatternMinConf,
	})

	controller := index.NewController(source, index.BuildParams{
		BM25K1: cfg.Engine.BM25K1,
		BM25B:  cfg.Engine.BM25B,
	}, cfg.Corpus.ReadTimeout)

	eng, err := engine.New(controller, store, cfg.Engine, m)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Rebuild(ctx); err != nil {
		slog.Warn("initial index build failed, serving resumes after the next successful rebuild", "error", err)
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.FeedbackOutcomes)
	defer producer.Close()
	eng.SetOutcomeProducer(producer)

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CorpusChanged, corpus.HandleChangeEvent(eng))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("corpus change consumer stopped", "error", err)
		}
	}()

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		gen := controller.Current()
		if gen == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "no generation built yet"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("generation %d", gen.ID)}
	})
	if redisClient != nil {
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}
	if pgClient != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, map[string]http.Handler{
			"/healthz": checker.LiveHandler(),
			"/readyz":  checker.ReadyHandler(),
		})
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := shutdownMetrics(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("shutting down")
}
