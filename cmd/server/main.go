package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"suvidha/internal/assess"
	assesshandler "suvidha/internal/assess/handler"
	assessservice "suvidha/internal/assess/service"
	cataloghandler "suvidha/internal/catalog/handler"
	"suvidha/internal/catalog/ports"
	catalogservice "suvidha/internal/catalog/service"
	rulesetstore "suvidha/internal/catalog/store/ruleset"
	schemestore "suvidha/internal/catalog/store/scheme"
	httpapi "suvidha/internal/http"
	"suvidha/internal/ledger"
	ledgerstore "suvidha/internal/ledger/store"
	"suvidha/internal/platform/config"
	"suvidha/internal/platform/httpserver"
	"suvidha/internal/platform/logger"
	"suvidha/internal/platform/metrics"
	"suvidha/internal/platform/postgres"
	"suvidha/internal/platform/redis"
	profilehandler "suvidha/internal/profile/handler"
	profileservice "suvidha/internal/profile/service"
	profilestore "suvidha/internal/profile/store"
	"suvidha/internal/reassess"
	"suvidha/internal/rules"
)

// main wires stores, services, the reassessment coordinator, and the HTTP
// server. Business logic lives in the internal packages; this file only
// assembles them.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		schemes  ports.SchemeStore
		ruleSets ports.RuleSetStore
		profiles profileservice.Store
		entries  ledger.Store
	)
	if cfg.PostgresURL != "" {
		db, err := postgres.Open(ctx, cfg.PostgresURL)
		if err != nil {
			log.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			log.Error("schema setup failed", "error", err)
			os.Exit(1)
		}
		schemes = schemestore.NewPostgres(db)
		ruleSets = rulesetstore.NewPostgres(db)
		profiles = profilestore.NewPostgres(db)
		entries = ledgerstore.NewPostgres(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		schemes = schemestore.NewInMemory()
		ruleSets = rulesetstore.NewInMemory()
		profiles = profilestore.NewInMemory()
		entries = ledgerstore.NewInMemory()
	}

	if redisClient, err := redis.New(cfg.Redis); err != nil {
		log.Warn("redis unavailable, rule set cache disabled", "error", err)
	} else if redisClient != nil {
		defer redisClient.Close()
		ruleSets = rulesetstore.NewCurrentCache(ruleSets, redisClient.Client, cfg.Redis.CurrentTTL, log)
	}

	evaluator := assess.NewEvaluator(rules.DefaultRegistry())

	coordinator := reassess.New(schemes, ruleSets, profiles, entries, evaluator,
		reassess.Config{
			Workers:     cfg.Reassess.Workers,
			QueueDepth:  cfg.Reassess.QueueDepth,
			MaxAttempts: cfg.Reassess.MaxAttempts,
			BackoffBase: cfg.Reassess.BackoffBase,
		},
		reassess.WithLogger(log),
		reassess.WithMetrics(m),
	)

	catalogSvc := catalogservice.New(schemes, ruleSets,
		catalogservice.WithLogger(log),
		catalogservice.WithMetrics(m),
		catalogservice.WithPublishSink(coordinator),
	)
	profileSvc := profileservice.New(profiles,
		profileservice.WithLogger(log),
		profileservice.WithUpdateSink(coordinator),
	)
	ranker := assess.NewRanker(assess.RankWeights{
		Confidence: cfg.Rank.ConfidenceWeight,
		Benefit:    cfg.Rank.BenefitWeight,
		Urgency:    cfg.Rank.UrgencyWeight,
	}, cfg.Rank.UrgencyHorizon)
	assessSvc := assessservice.New(catalogSvc, profileSvc, entries, evaluator,
		assessservice.WithLogger(log),
		assessservice.WithMetrics(m),
		assessservice.WithRanker(ranker),
	)

	router := httpapi.NewRouter(httpapi.Handlers{
		Catalog: cataloghandler.New(catalogSvc, log),
		Profile: profilehandler.New(profileSvc, log),
		Assess:  assesshandler.New(assessSvc, log),
	}, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		if err := coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("reassessment coordinator stopped", "error", err)
		}
	}()

	go func() {
		log.Info("suvidha listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
