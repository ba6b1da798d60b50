package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hotel_tones/internal/adapters/elastic"
	server "hotel_tones/internal/adapters/http_server"
	"hotel_tones/internal/adapters/observability"
	redisad "hotel_tones/internal/adapters/redis"
	"hotel_tones/internal/adapters/watson"
	"hotel_tones/internal/dataset"
	"hotel_tones/internal/domain"
	"hotel_tones/internal/shared"
	mysqlrepo "hotel_tones/internal/storage/mysql"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := shared.Load()
	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	mapping, err := shared.LoadMapping(cfg.MappingFile)
	if err != nil {
		log.Fatal().Err(err).Msg("mapping load failed")
	}

	// deps
	h := &server.Handlers{
		Cfg:      cfg,
		Datasets: dataset.NewStore(),
		Mapping:  mapping,
		NewAnalyzer: func(key string) (domain.ToneAnalyzer, error) {
			return watson.New(cfg.ToneBase, cfg.ToneVersion, key, cfg.ToneRPS)
		},
		NewIndexer: func(host string, port int) (domain.Indexer, error) {
			return elastic.New(elastic.Address(host, port))
		},
	}

	if cfg.RedisAddr != "" {
		rc := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, tone cache disabled")
		} else {
			h.Cache = rc
		}
	}

	if cfg.MySQLDSN != "" {
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			log.Fatal().Err(err).Msg("sql.Open failed")
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			log.Fatal().Err(err).Msg("db.Ping failed")
		}
		log.Info().Msg("database connection ok")
		h.Ledger = mysqlrepo.New(db)
	}

	// http
	srv := server.New()
	reg := observability.InitRegistry()
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	if cfg.MetricsAddr != "" && cfg.MetricsAddr != cfg.HTTPAddr {
		observability.Serve(cfg.MetricsAddr, reg)
	}
	srv.MountHandlers(h)

	log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server failed")
	}
}
