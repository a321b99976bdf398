package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"villagestay/config"
	"villagestay/cron"
	"villagestay/database"
	"villagestay/database/repository/store"
	"villagestay/handlers"
	"villagestay/middleware"
	"villagestay/routes"
	"villagestay/services/archive"
	"villagestay/services/beckn"
	"villagestay/services/booking"
	"villagestay/services/events"
	"villagestay/services/ledger"
	"villagestay/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig
	logger := utils.GetLogger()
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := utils.NewMetrics("villagestay", registry)
	checks := map[string]utils.HealthCheck{}

	// Booking store.
	var bookingStore store.BookingStore
	switch cfg.BookingStore {
	case "firestore":
		fs, err := utils.NewFirestoreClient(ctx)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize firestore: %v", err)
		}
		defer fs.Close()
		bookingStore = store.NewFirestoreStore(fs)
	case "memory":
		logger.Warn("main: using the in-memory booking store; records are lost on restart")
		bookingStore = store.NewMemoryStore()
	default:
		client, err := database.InitDB(ctx)
		if err != nil {
			logger.Sugar().Fatalf("main: %v", err)
		}
		defer client.Disconnect(context.Background())
		bookingStore = store.NewMongoStore(client, cfg.DatabaseName)
		checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
	}

	cache, err := utils.NewCacheClient(ctx)
	if err != nil {
		logger.Sugar().Fatalf("main: %v", err)
	}
	defer cache.Close()
	checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx).Err() }

	// Gateway client.
	key, err := utils.LoadRSAPrivateKey(cfg.BecknPrivateKey, cfg.BecknPrivateKeyPath)
	if err != nil {
		logger.Sugar().Fatalf("main: failed to load gateway signing key: %v", err)
	}
	gateway := beckn.NewClient(beckn.Config{
		GatewayURL:    cfg.BecknGatewayURL,
		SubscriberID:  cfg.BecknSubscriberID,
		SubscriberURI: cfg.BecknSubscriberURI,
		Domain:        cfg.BecknDomain,
		Country:       cfg.BecknCountry,
		City:          cfg.BecknCity,
		CoreVersion:   cfg.BecknCoreVersion,
		Timeout:       cfg.PhaseTimeout,
	}, beckn.NewTokenProvider(cfg.BecknSubscriberID, key), &http.Client{}, logger, metrics)

	// Content archive.
	var blobs archive.BlobStore
	switch cfg.ArchiveBackend {
	case "gcs":
		gcs, err := archive.NewGCSStore(ctx, cfg.GCSBucket, cfg.FirebaseCredentials)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize archive bucket: %v", err)
		}
		defer gcs.Close()
		blobs = gcs
	default:
		blobs = archive.NewIPFSStore(cfg.IPFSAPIURL, cfg.IPFSAuth, cfg.ArchiveTimeout)
	}
	contentArchive := archive.New(blobs, bookingStore, logger, metrics, cfg.ArchiveTimeout)
	checks["archive"] = contentArchive.Ping

	// A reconcile chunk archives and anchors its bookings one after another.
	lockTTL := time.Duration(cfg.ReconcileBatch)*(cfg.ArchiveTimeout+cfg.LedgerTimeout) + time.Minute
	svc := &booking.DefaultBookingService{
		Gateway:     gateway,
		Archive:     contentArchive,
		Store:       bookingStore,
		Sessions:    booking.NewRedisSessionStore(cache, cfg.SessionTTL),
		VerifyCache: booking.NewRedisVerifyCache(cache, time.Minute),
		Locks:       booking.NewRedisLocker(cache),
		LockTTL:     lockTTL,
		Events:      events.NopPublisher{},
		Logger:      logger,
		Metrics:     metrics,
	}

	// Ledger anchor. Without a key or contract bookings stop at partially-verified.
	if cfg.BlockchainPrivateKey == "" || cfg.BookingContractAddress == "" {
		logger.Warn("main: ledger disabled, BLOCKCHAIN_PRIVATE_KEY or BOOKING_CONTRACT_ADDRESS not set")
	} else {
		chain, err := ledger.DialEth(ctx, cfg.EthereumRPCURL, cfg.BookingContractAddress, cfg.BlockchainPrivateKey)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to connect to ledger: %v", err)
		}
		defer chain.Close()
		anchor, err := ledger.NewAnchor(chain, bookingStore, logger, metrics, ledger.Options{
			Timeout:         cfg.LedgerTimeout,
			FallbackGasGwei: cfg.LedgerFallbackGasGwei,
		})
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize ledger anchor: %v", err)
		}
		svc.Ledger = anchor
		checks["ledger"] = anchor.Ping
	}

	if brokers := cfg.KafkaBrokerList(); len(brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(brokers, cfg.KafkaTopic, logger)
		if err != nil {
			logger.Sugar().Fatalf("main: failed to initialize event publisher: %v", err)
		}
		defer publisher.Close()
		svc.Events = publisher
	}

	utils.StartHealthMonitor(ctx, checks, 30*time.Second)

	reconciler := cron.NewReconcileWorker(svc, cfg.ReconcileBatch, cfg.ReconcileRate, logger)
	stopWorker := cron.InitReconcileWorker(ctx, reconciler)
	defer stopWorker()

	// Create the Gin router.
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RequestLogger(logger))

	bookingHandler := handlers.NewBookingHandler(svc, logger)
	routes.RegisterRoutes(router, handlers.NewHandlerBundle(bookingHandler), registry)

	// Start the HTTP server.
	port := cfg.AppPort
	if port == "" {
		port = "3000"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Info("Starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	<-ctx.Done()
	logger.Info("main: server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("main: server forced to shutdown", zap.Error(err))
	}

	logger.Info("main: server stopped gracefully")
}
