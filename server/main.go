package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meikuraledutech/splitflow"
	"github.com/meikuraledutech/splitflow/config"
	"github.com/meikuraledutech/splitflow/inmem"
	"github.com/meikuraledutech/splitflow/notify"
	"github.com/meikuraledutech/splitflow/postgres"
	"github.com/meikuraledutech/splitflow/service"
	"github.com/meikuraledutech/splitflow/source"
)

func main() {
	path := flag.String("config", os.Getenv("SPLITFLOW_CONFIG"), "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.Log.NewLogger(os.Stdout)

	// Versions live in postgres when DATABASE_URL is set, in memory otherwise.
	var store splitflow.Store = inmem.New()
	var pg *postgres.PGStore
	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.Database.URL)
		if err != nil {
			log.Fatalf("connect: %v", err)
		}
		defer pool.Close()
		pg = postgres.New(pool)
		store = pg
	}

	var docs service.DocumentSource
	switch cfg.Documents.Source {
	case "http":
		docs = source.NewHTTP(cfg.Documents.BaseURL, cfg.Documents.Timeout)
	case "postgres":
		if pg != nil {
			docs = pg
		} else {
			logger.Warn("no database configured, documents are kept in memory")
			docs = inmem.NewDocuments()
		}
	default:
		docs = source.NewDir(cfg.Documents.Dir)
	}

	var notifier service.Notifier = notify.NewLog(logger)
	if cfg.Webhook.URL != "" {
		notifier = notify.NewWebhook(cfg.Webhook.URL, cfg.Webhook.Timeout)
	}

	analyzer := service.New(docs, store, notifier, logger, service.Options{
		Limits:     cfg.Limits,
		Extract:    cfg.ExtractOptions(),
		RouteNames: cfg.RouteNames(),
	})

	app := newApp(deps{
		analyzer:   analyzer,
		store:      store,
		docs:       docs,
		defaultRef: cfg.Documents.DefaultRef,
		bodyLimit:  cfg.Server.BodyLimit,
		log:        logger,
	})

	logger.Info("listening", "addr", cfg.Server.Addr, "documents", cfg.Documents.Source)
	log.Fatal(app.Listen(cfg.Server.Addr))
}
