package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nidhogg/noema/internal/api"
	"github.com/nidhogg/noema/internal/archive"
	"github.com/nidhogg/noema/internal/assoc"
	"github.com/nidhogg/noema/internal/clock"
	"github.com/nidhogg/noema/internal/config"
	"github.com/nidhogg/noema/internal/gateway"
	"github.com/nidhogg/noema/internal/mind"
	"github.com/nidhogg/noema/internal/telemetry"
	"github.com/nidhogg/noema/internal/vectorstore"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting noema...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/noema.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Telemetry hub plus optional Redis stream sink
	hub := telemetry.NewHub(logger)
	var redisSink *telemetry.RedisSink
	if cfg.Database.Redis.URL != "" {
		sink, redisErr := telemetry.NewRedisSink(cfg.Database.Redis.URL, logger)
		if redisErr != nil {
			logger.Warn("Redis unavailable, running without telemetry stream", zap.Error(redisErr))
		} else {
			hub.AddSink(sink)
			redisSink = sink
		}
	}

	// Optional external backends: each one degrades to nothing when absent.
	opts := mind.Options{DataDir: cfg.DataDir}

	if cfg.Database.Postgres.DSN != "" {
		pg, pgErr := archive.New(cfg.Database.Postgres.DSN, logger)
		if pgErr != nil {
			logger.Warn("PostgreSQL unavailable, running without memory archive", zap.Error(pgErr))
		} else {
			if mErr := pg.Migrate(context.Background(), "migrations"); mErr != nil {
				logger.Fatal("migration failed", zap.Error(mErr))
			}
			opts.Archive = pg
			defer pg.Close()
		}
	}

	if cfg.Database.Neo4j.URI != "" {
		graph, gErr := assoc.New(cfg.Database.Neo4j.URI, cfg.Database.Neo4j.User, cfg.Database.Neo4j.Password, logger)
		if gErr != nil {
			logger.Warn("Neo4j unavailable, running without binding graph", zap.Error(gErr))
		} else {
			opts.Graph = graph
			defer graph.Close(context.Background())
		}
	}

	if cfg.Database.Qdrant.Host != "" {
		recall, qErr := vectorstore.NewRecall(context.Background(), vectorstore.Config{
			Host: cfg.Database.Qdrant.Host,
			Port: cfg.Database.Qdrant.Port,
		}, cfg.Cognition.VectorDimension, logger)
		if qErr == nil {
			opts.Recall = recall
			defer recall.Close()
		}
		if qErr != nil {
			logger.Warn("Qdrant unavailable, running without associative recall", zap.Error(qErr))
		}
	}

	// The mind: single consumer for the whole cognition pipeline.
	m := mind.New(cfg.Cognition, hub, opts, logger)
	go m.Run()
	logger.Info("Mind started", zap.String("data_dir", cfg.DataDir))

	// Chat gateways
	gw := gateway.NewGateway(logger)
	gateway.NewResponder(gw, m, logger)

	if cfg.Gateway.Slack.Enabled && cfg.Gateway.Slack.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(cfg.Gateway.Slack.BotToken, cfg.Gateway.Slack.AppToken, logger))
	}
	if cfg.Gateway.Discord.Enabled && cfg.Gateway.Discord.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(cfg.Gateway.Discord.BotToken, logger))
	}
	if err := gw.ConnectAll(context.Background()); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}

	notifyCtx, stopNotify := context.WithCancel(context.Background())
	go gateway.NewNotifier(gw, hub, logger).Run(notifyCtx)

	// One clock drives every background sweep through the mind.
	clk := clock.New(time.Duration(cfg.Cognition.TickInterval), logger)
	clk.AddListener(m)
	clk.Start()

	// HTTP API
	handler := api.NewHandler(m, logger)
	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("noema listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop intake, then flush the mind's snapshots.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down noema...")
	clk.Stop()
	stopNotify()
	srv.Shutdown(context.Background())
	gw.Close()
	m.Close()
	if redisSink != nil {
		redisSink.Close()
	}
}
