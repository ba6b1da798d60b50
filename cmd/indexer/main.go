package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_tones/internal/adapters/elastic"
	"hotel_tones/internal/adapters/observability"
	redisad "hotel_tones/internal/adapters/redis"
	"hotel_tones/internal/adapters/watson"
	"hotel_tones/internal/app"
	"hotel_tones/internal/dataset"
	"hotel_tones/internal/domain"
	"hotel_tones/internal/shared"
	mysqlrepo "hotel_tones/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()
	// 1) initialize global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log.Info().
		Str("data", cfg.DataPath).
		Str("es", elastic.Address(cfg.ESHost, cfg.ESPort)).
		Str("index", cfg.IndexName).
		Str("type", cfg.TypeName).
		Msg("indexer starting")

	// scraped while a long run is in progress
	observability.Serve(cfg.MetricsAddr, observability.InitRegistry())

	mapping, err := shared.LoadMapping(cfg.MappingFile)
	if err != nil {
		log.Fatal().Err(err).Msg("mapping load failed")
	}
	ds, err := dataset.Load(cfg.DataPath)
	if err != nil {
		log.Fatal().Err(err).Msg("dataset load failed")
	}

	client, err := watson.New(cfg.ToneBase, cfg.ToneVersion, cfg.ToneKey, cfg.ToneRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tone client")
	}
	ix, err := elastic.New(elastic.Address(cfg.ESHost, cfg.ESPort))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize elasticsearch client")
	}
	if err := ix.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("elasticsearch ping failed")
	} else {
		log.Info().Msg("elasticsearch ping ok")
	}

	var cache domain.Cache
	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, tone cache disabled")
		} else {
			cache = rc
		}
	}

	var ledger domain.RunLedger
	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("db ping ok")
		ledger = mysqlrepo.New(db)
	}

	svc := app.NewIndexingService(app.NewToneService(client, cache, cfg.CacheTTL), ix, ledger)
	run, err := svc.IndexDataset(ctx, ds, app.IndexOptions{
		Index:    cfg.IndexName,
		DocType:  cfg.TypeName,
		DataPath: cfg.DataPath,
		Settings: domain.IndexSettings{Shards: cfg.Shards, Replicas: cfg.Replicas, Mappings: mapping},
	})
	if err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("indexing failed")
		os.Exit(1)
	}
	log.Info().
		Str("run_id", run.ID).
		Int("indexed", run.Indexed).
		Int("failed", run.Failed).
		Msg("indexing completed")
}
