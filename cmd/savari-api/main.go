// README: API entrypoint. Wires config, stores, services, and the HTTP
// router; optional integrations activate only when configured.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"savari/internal/config"
	"savari/internal/dispatch"
	savarihttp "savari/internal/http"
	"savari/internal/http/handlers"
	"savari/internal/infra"
	"savari/internal/ingest"
	"savari/internal/logging"
	"savari/internal/maps"
	"savari/internal/modules/bidding"
	"savari/internal/modules/geo"
	"savari/internal/modules/matching"
	"savari/internal/modules/pricing"
	"savari/internal/modules/ride"
	"savari/internal/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logging.New(cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// stores: postgres + redis when configured, in-process otherwise
	var (
		rideStore    ride.Store
		bidStore     bidding.Store
		rateProvider pricing.RateProvider
		index        geo.Index
	)
	if cfg.DB.DSN != "" {
		pool, err := infra.NewDB(ctx, cfg.DB.DSN)
		if err != nil {
			log.Fatal("database init failed", zap.Error(err))
		}
		defer pool.Close()
		rideStore = ride.NewPostgresStore(pool)
		bidStore = bidding.NewPostgresStore(pool)
		rateProvider = pricing.NewStore(pool)
		log.Info("using postgres stores")
	} else {
		memRides := ride.NewMemoryStore()
		rideStore = memRides
		bidStore = bidding.NewMemoryStore(memRides)
		rateProvider = pricing.StaticRates{}
		log.Warn("no database configured, using in-memory stores")
	}
	if cfg.Redis.Addr != "" {
		index = geo.NewRedisIndex(infra.NewRedis(cfg.Redis.Addr))
		log.Info("using redis geo index")
	} else {
		index = geo.NewMemoryIndex()
		log.Warn("no redis configured, using in-memory geo index")
	}

	// optional integrations
	var verifier infra.TokenVerifier
	var base dispatch.Notifier
	registry := dispatch.NewWSRegistry(log)
	tokens := dispatch.NewTokenRegistry()
	if cfg.Firebase.ProjectID != "" {
		v, msg, err := infra.NewFirebase(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if err != nil {
			log.Fatal("firebase init failed", zap.Error(err))
		}
		verifier = v
		base = dispatch.NewFCMNotifier(msg, tokens, log)
	} else {
		base = dispatch.NewLogNotifier(log)
	}
	notifier := dispatch.NewFanout(registry, base)

	var eta matching.ETARefiner
	if cfg.Maps.APIKey != "" {
		routes, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatal("maps init failed", zap.Error(err))
		}
		eta = routes
	}

	var stream handlers.PresencePublisher
	if cfg.Kafka.Brokers != "" {
		producer := ingest.NewKafkaProducer(strings.Split(cfg.Kafka.Brokers, ","), cfg.Kafka.Topic)
		defer func() { _ = producer.Close() }()
		stream = producer
	}

	var settle ride.Settlement
	if cfg.Stripe.APIKey != "" {
		settle = payments.NewStripeClient(cfg.Stripe.APIKey, log)
	}

	directory := geo.NewDirectory(index)
	fares := pricing.NewService(rateProvider, log)
	rides := ride.NewService(rideStore, fares, directory, notifier, settle, log)
	bids := bidding.NewService(bidStore, rideStore, bidding.Config{
		TTL:         cfg.Bidding.TTL,
		FloorAmount: cfg.Bidding.FloorAmount,
		Currency:    cfg.Currency,
	}, log)
	match := matching.NewService(index, rides, fares, eta, notifier, matching.Config{
		BaseRadiusKm: cfg.Matching.BaseRadiusKm,
		BaseTopN:     cfg.Matching.BaseTopN,
	}, log)

	go bids.RunExpirySweeper(ctx, time.Duration(cfg.Bidding.SweepSeconds)*time.Second)

	router := savarihttp.NewRouter(savarihttp.RouterDeps{
		Rides:    rides,
		Bids:     bids,
		Matching: match,
		Pricing:  fares,
		Index:    index,
		Stream:   stream,
		Registry: registry,
		Tokens:   tokens,
		Verifier: verifier,
		Log:      log,
	})

	srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
}
