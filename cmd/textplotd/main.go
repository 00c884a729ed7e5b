package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion/consumer"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/textplot/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/textplot/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load %s: %v\n", *envPath, err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting textplot service",
		"port", cfg.Server.Port,
		"postgres", cfg.Postgres.Enabled,
		"redis", cfg.Redis.Enabled,
		"kafka", cfg.Kafka.Enabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	docs := corpus.NewCollection()

	if cfg.Corpus.ImportPath != "" {
		imported, err := corpus.ReadFile(cfg.Corpus.ImportPath)
		if err != nil {
			slog.Error("failed to import corpus", "path", cfg.Corpus.ImportPath, "error", err)
			os.Exit(1)
		}
		n := docs.Add(imported...)
		m.DocsIngestedTotal.WithLabelValues("import").Add(float64(n))
		slog.Info("corpus imported", "path", cfg.Corpus.ImportPath, "documents", n)
	}

	// The stores stay nil interfaces when their backend is off.
	var (
		store  publisher.DocumentStore
		marker consumer.StatusMarker
		getter handler.DocumentGetter
		pingDB func(context.Context) error
	)
	if cfg.Postgres.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.Backoff{
			Attempts: 5,
			Initial:  500 * time.Millisecond,
			Max:      5 * time.Second,
		}, func(ctx context.Context) error {
			var err error
			db, err = postgres.New(ctx, cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		repo := corpus.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		stored, err := repo.List(ctx, cfg.Corpus.LoadLimit)
		if err != nil {
			slog.Error("failed to load stored documents", "error", err)
			os.Exit(1)
		}
		n := docs.Add(stored...)
		m.DocsIngestedTotal.WithLabelValues("postgres").Add(float64(n))
		slog.Info("stored documents loaded", "documents", n, "limit", cfg.Corpus.LoadLimit)

		store, marker, getter = repo, repo, repo
		pingDB = db.Ping
	}
	m.CorpusDocuments.Set(float64(docs.Len()))

	var (
		cache       *analysis.ResultCache
		invalidator consumer.Invalidator
		pingRedis   func(context.Context) error
	)
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, analysis caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			cache = analysis.NewResultCache(redisClient, cfg.Redis.CacheTTL, m)
			invalidator = cache
			pingRedis = redisClient.Ping
			slog.Info("analysis cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	service := analysis.NewService(docs, cfg.Pipeline,
		analysis.WithCache(cache),
		analysis.WithMetrics(m),
		analysis.WithTracing(cfg.Tracing.Enabled),
	)

	g, ctx := errgroup.WithContext(ctx)

	sink := &consumer.Sink{
		Docs:    docs,
		Store:   marker,
		Cache:   invalidator,
		Metrics: m,
		Source:  "http",
	}
	var events publisher.EventPublisher = consumer.Loopback{Handler: sink.Handle}
	if cfg.Kafka.Enabled {
		sink.Source = "kafka"
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
		defer producer.Close()
		events = producer

		ingestConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest, sink.Handle,
			kafka.AcceptTypes(ingestion.EventDocumentIngest))
		g.Go(func() error {
			return ingestConsumer.Start(ctx)
		})
		slog.Info("ingest consumer started",
			"topic", cfg.Kafka.Topics.DocumentIngest,
			"group", cfg.Kafka.ConsumerGroup,
		)
	}
	ingest := handler.New(publisher.New(store, events, publisher.WithNames(docs)), getter)

	checker := health.NewChecker()
	if cfg.Postgres.Enabled {
		checker.Register("postgres", health.PingCheck(pingDB))
	}
	checker.Register("redis", health.PingCheck(pingRedis), health.Optional(), health.WithTimeout(time.Second))
	checker.Register("corpus", health.CorpusCheck(func() (int, uint64) {
		c, v := docs.Current()
		return c.Len(), v
	}))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics(m))
	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(middleware.CORS(cfg.Server.CORSOrigins))
	}
	if cfg.Server.RateLimit > 0 {
		limiter := middleware.NewLimiter(cfg.Server.RateLimit, time.Minute)
		r.Use(middleware.RateLimit(limiter))
		g.Go(func() error {
			return limiter.Run(ctx)
		})
	}
	r.Use(middleware.Timeout(cfg.Server.RequestTimeout))
	analysis.NewHandler(service).Routes(r)
	ingest.Routes(r)
	r.Get("/health/live", checker.LiveHandler())
	r.Get("/health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(ctx, cfg.Metrics.Port)
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		slog.Info("textplot service listening", "addr", server.Addr, "documents", docs.Len())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("textplot service failed", "error", err)
		os.Exit(1)
	}
	slog.Info("textplot service stopped")
}
