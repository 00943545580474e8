package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"mizan/internal/audit"
	"mizan/internal/crypto"
	"mizan/internal/hawl"
	hawlhandler "mizan/internal/hawl/handler"
	hawlmetrics "mizan/internal/hawl/metrics"
	hawlservice "mizan/internal/hawl/service"
	httpapi "mizan/internal/http"
	"mizan/internal/methodology"
	"mizan/internal/nisab"
	"mizan/internal/oracle"
	"mizan/internal/platform/config"
	"mizan/internal/platform/httpserver"
	"mizan/internal/platform/logger"
	"mizan/internal/platform/metrics"
	"mizan/internal/platform/postgres"
	"mizan/internal/platform/redis"
	"mizan/internal/wealth"
	wealthhandler "mizan/internal/wealth/handler"
	wealthmetrics "mizan/internal/wealth/metrics"
	wealthservice "mizan/internal/wealth/service"
	"mizan/internal/zakat"
	zakatmetrics "mizan/internal/zakat/metrics"
	"mizan/pkg/platform/middleware/auth"
)

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal packages.
func main() {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	cipher, err := crypto.NewAEADCipher(cfg.CipherKey)
	if err != nil {
		log.Error("cipher initialization failed", "error", err)
		os.Exit(1)
	}

	db, err := postgres.Open(cfg.DatabaseURL)
	if err != nil {
		log.Error("postgres connection failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	} else {
		log.Warn("no database configured, using in-memory stores")
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	var liveCache goredis.UniversalClient
	if redisClient != nil {
		liveCache = redisClient.Client
		defer redisClient.Close()
	}

	var priceOracle oracle.PriceOracle
	if cfg.Price.FeedURL != "" {
		priceOracle = oracle.NewHTTPClient(cfg.Price.FeedURL, log)
	} else {
		log.Warn("no price feed configured, serving fixed development prices")
		priceOracle = oracle.FixedOracle{Prices: oracle.MetalPrices{
			Gold:   decimal.RequireFromString("75.00"),
			Silver: decimal.RequireFromString("0.95"),
		}}
	}

	registry := methodology.NewBuiltinRegistry()
	resolver := nisab.NewResolver(priceOracle, cfg.Price.StalenessWindow, cfg.Price.Currency, log)

	var (
		assetStore     wealth.AssetStore
		liabilityStore wealth.LiabilityStore
		recordStore    hawl.Store
		eventStore     audit.Store
		tx             hawlservice.Tx
	)
	if db != nil {
		assetStore = wealth.NewPostgresAssetStore(db)
		liabilityStore = wealth.NewPostgresLiabilityStore(db)
		recordStore = hawl.NewPostgresStore(db)
		eventStore = audit.NewPostgresStore(db)
		tx = hawlservice.NewPostgresTx(db)
	} else {
		assetStore = wealth.NewInMemoryAssetStore()
		liabilityStore = wealth.NewInMemoryLiabilityStore()
		recordStore = hawl.NewInMemoryStore()
		eventStore = audit.NewInMemoryStore()
		tx = hawlservice.NewShardedTx()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var outbox chan audit.Event
	var publisher *audit.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = audit.NewKafkaPublisher(ctx, cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka publisher initialization failed", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		outbox = make(chan audit.Event, 1024)
	}

	recorder := audit.NewRecorder(eventStore, cipher, outbox, log)

	aggregator := wealthservice.NewAggregator(assetStore, liabilityStore, cipher, wealthmetrics.New(), log)
	wealthSvc := wealthservice.NewService(assetStore, liabilityStore, cipher, log)

	hawlSvc := hawlservice.NewService(recordStore, registry, resolver, aggregator,
		recorder, tx, hawlmetrics.New(), log, hawlservice.Defaults{})

	zakatMetrics := zakatmetrics.New()
	engine := zakat.NewEngine(registry, resolver, aggregator, zakatMetrics, log)
	liveSvc := zakat.NewLiveService(engine, registry, liveCache, cfg.LiveWealthCacheTTL, zakatMetrics, log)

	// Every wealth write re-evaluates nisab and invalidates cached snapshots.
	wealthSvc.AddListener(hawlSvc)
	wealthSvc.AddListener(liveSvc)

	router := httpapi.New(httpapi.Deps{
		Logger:    log,
		Metrics:   metrics.New(),
		Validator: auth.NewValidator(cfg.JWTSigningKey),
		Hawl:      hawlhandler.New(hawlSvc, registry, log),
		Wealth:    wealthhandler.New(wealthSvc, liveSvc, hawlSvc, cipher, log),
	})
	srv := httpserver.New(cfg.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	if outbox != nil {
		worker := audit.NewWorker(publisher, outbox, log)
		g.Go(func() error {
			err := worker.Run(ctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
