package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/lysyi3m/feed-relay/app/api"
	"github.com/lysyi3m/feed-relay/app/cache"
	"github.com/lysyi3m/feed-relay/app/cfg"
	"github.com/lysyi3m/feed-relay/app/database"
	"github.com/lysyi3m/feed-relay/app/delivery"
	"github.com/lysyi3m/feed-relay/app/events"
	"github.com/lysyi3m/feed-relay/app/feed"
	"github.com/lysyi3m/feed-relay/app/fetch"
	"github.com/lysyi3m/feed-relay/app/metrics"
	"github.com/lysyi3m/feed-relay/app/subscription"
	"github.com/lysyi3m/feed-relay/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogger(appCfg)
	metrics.Init(appCfg.Version)

	if err := run(appCfg); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func setupLogger(c *cfg.Cfg) {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}

	var handler slog.Handler
	if c.LogJSON {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func run(c *cfg.Cfg) error {
	slog.Info("Starting Feed Relay", "version", c.Version)

	store, closeStore, err := openFieldStore(c)
	if err != nil {
		return err
	}
	defer closeStore()

	kv, closeCache, err := openCache(c)
	if err != nil {
		return err
	}
	defer closeCache()

	configCache := subscription.NewConfigCache(c.FeedsDir)
	if err := configCache.Run(); err != nil {
		return fmt.Errorf("failed to load feed configurations: %w", err)
	}
	slog.Info("Feed configurations loaded", "count", configCache.GetConfigCount(), "dir", c.FeedsDir)

	fetcher := fetch.NewClient(c.FetchHost, fetch.ClientOptions{
		Retries:   c.FetchRetries,
		Timeout:   c.FetchTimeout,
		UserAgent: c.UserAgent,
	})

	baseParser := feed.NewParser(feed.NewContentExtractor())
	var parser feed.ArticleParser = baseParser
	if c.ParserWorkers > 0 {
		pool := feed.NewPool(baseParser, feed.PoolOptions{MaxWorkers: c.ParserWorkers})
		defer pool.Close()
		parser = pool
		slog.Info("Parser pool started", "max_workers", c.ParserWorkers)
	}

	outbox := delivery.NewOutbox(c.OutboxSize)
	deliverers := delivery.Multi{delivery.LogDeliverer{}, outbox}

	var conn *nats.Conn
	if c.NatsURL != "" {
		conn, err = events.Connect(c.NatsURL, "feed-relay")
		if err != nil {
			return err
		}
		defer func() {
			if err := conn.Drain(); err != nil {
				slog.Warn("NATS drain failed", "error", err)
			}
		}()
		deliverers = append(deliverers, delivery.NewPublisher(conn, c.NatsPublishSubject))
		slog.Info("Connected to NATS", "url", c.NatsURL)
	}

	processor, scheduler := buildPipeline(c, configCache, fetcher, parser, kv, store, deliverers)

	if conn != nil {
		consumer := events.NewConsumer(conn, scheduler, events.ConsumerOptions{
			DeliverArticlesSubject: c.NatsDeliverSubject,
			FeedDeletedSubject:     c.NatsDeletedSubject,
			QueueGroup:             c.NatsQueueGroup,
		})
		if err := consumer.Start(); err != nil {
			return err
		}
		defer consumer.Stop()
	} else {
		slog.Info("NATS disabled, relying on the scheduler only")
	}

	return serve(c, configCache, outbox, processor, scheduler)
}

func buildPipeline(c *cfg.Cfg, configCache *subscription.ConfigCache, fetcher *fetch.Client, parser feed.ArticleParser,
	kv cache.Store, store database.FieldStore, deliverer delivery.Deliverer) (*tasks.Processor, *tasks.Scheduler) {
	processor := tasks.NewProcessor(tasks.ProcessorDeps{
		Fetcher:      fetcher,
		Parser:       parser,
		Articles:     cache.NewArticlesCache(kv, c.CacheTTL),
		Hashes:       cache.NewResponseHashStore(kv),
		Store:        store,
		Deliverer:    deliverer,
		ParseTimeout: c.ParseTimeout,
	})

	scheduler := tasks.NewScheduler(configCache, processor, tasks.SchedulerOptions{
		Interval:    time.Duration(c.SchedulerInterval) * time.Second,
		WorkerCount: c.WorkerCount,
	})

	return processor, scheduler
}

func serve(c *cfg.Cfg, configCache *subscription.ConfigCache, outbox *delivery.Outbox,
	processor *tasks.Processor, scheduler *tasks.Scheduler) error {
	slog.Info("Starting background scheduler", "workers", c.WorkerCount, "interval", c.SchedulerInterval)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(configCache, outbox, processor, scheduler, c.BaseUrl)
	server := api.NewServer(handler, c.APIAccessKey, c.Version)

	httpServer := &http.Server{
		Addr:         ":" + c.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", c.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

func openFieldStore(c *cfg.Cfg) (database.FieldStore, func(), error) {
	var (
		dialect database.Dialect
		dsn     string
	)

	switch c.DBDriver {
	case cfg.DriverMemory:
		slog.Warn("Using in-memory field store, comparison state is lost on restart")
		return database.NewMemoryStore(), func() {}, nil
	case cfg.DriverSQLite:
		dialect, dsn = database.DialectSQLite, c.SQLitePath
	default:
		dialect = database.DialectPostgres
		dsn = database.PostgresDSN(c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
	}

	db, err := database.Open(dialect, dsn)
	if err != nil {
		return nil, nil, err
	}

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Info("Connected to database", "driver", dialect, "migration_version", version, "dirty", dirty)

	return database.NewSQLStore(db), func() { db.Close() }, nil
}

func openCache(c *cfg.Cfg) (cache.Store, func(), error) {
	if c.RedisAddr == "" {
		slog.Info("Using in-process articles cache")
		return cache.NewMemoryStore(), func() {}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := cache.NewRedisStore(ctx, c.RedisAddr, c.RedisPassword, c.RedisDB)
	if err != nil {
		return nil, nil, err
	}

	return store, func() {
		if err := store.Close(); err != nil {
			slog.Warn("Redis close failed", "error", err)
		}
	}, nil
}
