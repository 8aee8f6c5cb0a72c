package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/presale/backend/docs"
	appevent "github.com/presale/backend/internal/application/event"
	"github.com/presale/backend/internal/application/presale"
	"github.com/presale/backend/internal/domain/shared"
	"github.com/presale/backend/internal/domain/shared/valueobject"
	"github.com/presale/backend/internal/domain/voucher"
	"github.com/presale/backend/internal/infrastructure/auth"
	"github.com/presale/backend/internal/infrastructure/cache"
	"github.com/presale/backend/internal/infrastructure/config"
	"github.com/presale/backend/internal/infrastructure/event"
	"github.com/presale/backend/internal/infrastructure/keystore"
	"github.com/presale/backend/internal/infrastructure/logger"
	"github.com/presale/backend/internal/infrastructure/persistence"
	"github.com/presale/backend/internal/infrastructure/storage"
	"github.com/presale/backend/internal/infrastructure/telemetry"
	"github.com/presale/backend/internal/interfaces/http/dto"
	"github.com/presale/backend/internal/interfaces/http/handler"
	"github.com/presale/backend/internal/interfaces/http/middleware"
	"github.com/presale/backend/internal/interfaces/http/router"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

//	@title			Presale Settlement API
//	@version		1.0
//	@description	Voucher-gated token presale settlement and linear vesting
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry: logs bridge first so every later component logs through it
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize logs bridge", zap.Error(err))
	}
	log = logsProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	log.Info("Starting presale backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer", zap.Error(err))
	}

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.MetricsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() && cfg.Telemetry.SpanProfiles {
		tracerProvider.EnableSpanProfiles()
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()

	dbTracing := telemetry.DefaultDBTracingConfig()
	dbTracing.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	dbTracing.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	dbTracing.SlowQueryThresh = cfg.Telemetry.DBSlowQueryThresh
	if cfg.Database.Driver == "sqlite" {
		dbTracing.DBSystem = "sqlite"
	}
	if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	// Schema changes ship as migrations on postgres; sqlite deployments
	// are single-node and migrate on start.
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	log.Info("Database connected successfully", zap.String("driver", cfg.Database.Driver))

	// Presale parameters
	program, err := cfg.Presale.ProgramIdentity()
	if err != nil {
		log.Fatal("Invalid program id", zap.Error(err))
	}
	adminIDs, err := cfg.Presale.AdministratorIdentities()
	if err != nil {
		log.Fatal("Invalid administrators", zap.Error(err))
	}
	admins := presale.NewAdministrators(adminIDs...)

	issuerKeys, err := keystore.Resolve(cfg.Presale)
	if err != nil {
		log.Fatal("Failed to resolve voucher issuer key", zap.Error(err))
	}
	gate := voucher.NewGate(voucher.NewEd25519Verifier(), issuerKeys.Public)
	var issuer *voucher.Issuer
	if issuerKeys.CanIssue() {
		issuer, err = voucher.NewIssuer(issuerKeys.Private)
		if err != nil {
			log.Fatal("Failed to initialize voucher issuer", zap.Error(err))
		}
	}
	log.Info("Voucher issuer resolved",
		zap.String("signer", issuerKeys.Identity().String()),
		zap.Bool("can_issue", issuerKeys.CanIssue()),
		zap.Int("administrators", admins.Len()),
	)

	// Idempotency store backs event dedup, token revocation and the
	// Idempotency-Key header
	store, err := cache.NewIdempotencyStoreFactory(cfg.Redis, cache.WithLogger(log)).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	// Events: with the outbox enabled transitions write entries in their own
	// transaction and the processor delivers them to the bus; otherwise the
	// services publish to the bus after commit
	serializer := event.NewEventSerializer()
	event.RegisterPresaleEvents(serializer)
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(event.NewIdempotentHandler(
		appevent.NewAuditHandler(log),
		store,
		shared.IdempotencyConfig{TTL: cfg.Presale.IdempotencyTTL, Enabled: cfg.Presale.IdempotencyEnabled},
		log,
	))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	var publisher shared.EventPublisher = bus
	var outbox *event.OutboxPublisher
	var processor *event.OutboxProcessor
	if cfg.Event.OutboxEnabled {
		publisher = nil
		outbox = event.NewOutboxPublisher(outboxRepo, serializer)
		processor = event.NewOutboxProcessor(outboxRepo, bus, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
			CleanupInterval:  time.Hour,
		}, log)
		if cfg.Archive.Enabled {
			archive, err := storage.NewS3EventArchive(ctx, &cfg.Archive, storage.WithLogger(log))
			if err != nil {
				log.Fatal("Failed to initialize event archive", zap.Error(err))
			}
			if err := archive.EnsureBucket(ctx); err != nil {
				log.Fatal("Failed to prepare event archive bucket", zap.Error(err))
			}
			processor.SetArchiver(archive)
			log.Info("Event archive enabled", zap.String("bucket", archive.Bucket()))
		}
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// Services
	var metrics presale.MetricsRecorder
	if meterProvider.IsEnabled() {
		pm, err := telemetry.NewPresaleMetrics(meterProvider.Meter("presale"))
		if err != nil {
			log.Fatal("Failed to create presale metrics", zap.Error(err))
		}
		metrics = pm
	}

	deriver := valueobject.NewDeriver(program)
	scope := persistence.NewGormTransactionScope(db.DB)
	if outbox != nil {
		scope.SetOutbox(outbox)
	}
	transferer := presale.NewLedgerTransferer()
	clock := shared.SystemClock{}

	saleService := presale.NewSaleService(scope, persistence.NewGormSaleRepository(db.DB),
		persistence.NewGormEscrowRepository(db.DB), deriver, admins)
	purchaseService := presale.NewPurchaseService(scope, gate, deriver, transferer, clock)
	vestingService := presale.NewVestingService(scope, persistence.NewGormScheduleRepository(db.DB),
		deriver, transferer, clock)
	voucherService := presale.NewVoucherService(scope, issuer, persistence.NewGormIssuedVoucherRepository(db.DB), admins, clock)
	ledgerService := presale.NewLedgerService(scope, persistence.NewGormLedgerRepository(db.DB), admins)

	for _, svc := range []interface {
		SetEventPublisher(shared.EventPublisher)
		SetLogger(*zap.Logger)
		SetMetrics(presale.MetricsRecorder)
	}{saleService, purchaseService, vestingService, voucherService} {
		svc.SetEventPublisher(publisher)
		svc.SetLogger(log)
		if metrics != nil {
			svc.SetMetrics(metrics)
		}
	}
	ledgerService.SetLogger(log)
	if metrics != nil {
		ledgerService.SetMetrics(metrics)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	revocations := auth.NewRevocationList(store)

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.TracingAttributeInjector(),
		middleware.SpanErrorMarker(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.CORSWithConfig(corsConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.HTTPMetrics(meterProvider),
	)

	guards := router.Guards{
		Authenticated: middleware.JWTAuth(middleware.JWTMiddlewareConfig{
			JWTService:  jwtService,
			Revocations: revocations,
			Logger:      log,
		}),
		Administrator: middleware.RequireAdministrator(admins.Contains),
	}
	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(limiter))
		guards.Throttle = middleware.RateLimit(limiter)
	}
	if cfg.Presale.IdempotencyEnabled {
		guards.Idempotent = middleware.Idempotency(store, cfg.Presale.IdempotencyTTL)
	}

	systemHandler := handler.NewSystemHandler(handler.SystemInfo{
		Name:           cfg.App.Name,
		Program:        program,
		Signer:         issuerKeys.Identity(),
		CanIssue:       issuerKeys.CanIssue(),
		Administrators: admins.Len(),
	}, db.Ping)

	handlers := router.Handlers{
		Auth:    handler.NewAuthHandler(jwtService, revocations),
		Sale:    handler.NewSaleHandler(saleService, purchaseService),
		Vesting: handler.NewVestingHandler(vestingService),
		Voucher: handler.NewVoucherHandler(voucherService),
		Ledger:  handler.NewLedgerHandler(ledgerService),
		Outbox:  handler.NewOutboxHandler(appevent.NewOutboxService(outboxRepo, log)),
		System:  systemHandler,
	}
	apiRouter := router.NewRouter(engine, router.WithAPIVersion("v1")).
		Register(router.PresaleGroups(handlers, guards)...)
	apiRouter.Setup()
	for _, route := range apiRouter.Routes() {
		log.Debug("Route mounted",
			zap.String("method", route.Method),
			zap.String("path", route.Path),
			zap.Bool("guarded", route.Guarded),
		)
	}

	engine.GET("/health", systemHandler.Health)

	docsGuard, err := middleware.DocsAccess(middleware.DocsConfig{
		Enabled:     cfg.Docs.Enabled,
		RequireAuth: cfg.Docs.RequireAuth,
		AllowedIPs:  cfg.Docs.AllowedIPs,
	}, guards.Authenticated)
	if err != nil {
		log.Fatal("Invalid docs configuration", zap.Error(err))
	}
	engine.GET("/swagger/*any", docsGuard, ginSwagger.WrapHandler(swaggerFiles.Handler))
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeRouteNotFound, "Route not found", c.GetString(logger.GinRequestIDKey)))
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if limiter != nil {
		limiter.Stop()
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := bus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Error stopping profiler", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down meter provider", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down tracer provider", zap.Error(err))
	}
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down logs bridge", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
