package main

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/avapigw/internal/auth"
	"github.com/vyrodovalexey/avapigw/internal/auth/apikey"
	authjwt "github.com/vyrodovalexey/avapigw/internal/auth/jwt"
	"github.com/vyrodovalexey/avapigw/internal/cache"
	"github.com/vyrodovalexey/avapigw/internal/config"
	"github.com/vyrodovalexey/avapigw/internal/credential"
	"github.com/vyrodovalexey/avapigw/internal/eventbus"
	"github.com/vyrodovalexey/avapigw/internal/health"
	"github.com/vyrodovalexey/avapigw/internal/observability"
	"github.com/vyrodovalexey/avapigw/internal/pipeline"
	"github.com/vyrodovalexey/avapigw/internal/proxy"
	"github.com/vyrodovalexey/avapigw/internal/ratelimit"
	"github.com/vyrodovalexey/avapigw/internal/registry"
	"github.com/vyrodovalexey/avapigw/internal/router"
	"github.com/vyrodovalexey/avapigw/internal/schema"
	"github.com/vyrodovalexey/avapigw/internal/store"
	"github.com/vyrodovalexey/avapigw/internal/transform"
	"github.com/vyrodovalexey/avapigw/internal/vault"
)

// application holds every long-lived component the gateway process wires
// together. initApplication builds one from the ambient config plus the
// hot-reloadable routing document; runGateway/waitForShutdown (shutdown.go)
// drive its lifecycle.
type application struct {
	config      *config.Config
	routingPath string
	routingDoc  *config.LocalConfig

	logger        observability.Logger
	metrics       *observability.Metrics
	reloadMetrics *reloadMetrics
	tracer        *observability.Tracer
	healthChecker *health.Checker

	router      *router.Router
	svcRegistry *registry.Registry
	kvStore     store.Store
	rateLimiter ratelimit.Limiter
	bus         eventbus.Bus

	credValidator   *credential.Validator
	schemaMapper    *schema.Mapper
	transformMapper *transform.Mapper
	vaultClient     vault.Client

	pipeline *pipeline.Pipeline

	server        *http.Server
	metricsServer *http.Server
	watcher       *config.Watcher
}

// initApplication initializes every gateway component from cfg (the
// ambient operational config) and the routing document found at
// routingPath.
func initApplication(cfg *config.Config, routingPath string, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("gateway")
	metrics.InitVecMetrics()
	metrics.SetBuildInfo(version, gitCommit, buildTime)

	tracer, err := initTracer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	healthChecker := health.NewChecker(version)

	zapLogger := newZapLogger(cfg.LogLevel, cfg.LogFormat)
	vaultClient := initVaultClient(zapLogger, logger)

	registerSubsystemMetrics(metrics, logger)

	kvStore, err := initStore(cfg, logger, vaultClient)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	routingDoc, routes, err := loadRoutingDocument(routingPath, logger)
	if err != nil {
		return nil, fmt.Errorf("load routing document: %w", err)
	}

	r := router.New()
	if err := r.LoadRoutes(routes); err != nil {
		return nil, fmt.Errorf("load routes: %w", err)
	}

	svcRegistry := registry.NewRegistry(logger, registry.WithStrategy(registry.RoundRobin))

	credValidator, err := initCredentialValidator(cfg, kvStore, logger)
	if err != nil {
		return nil, fmt.Errorf("init credential validator: %w", err)
	}

	schemaMapper := schema.New(schema.WithStore(kvStore), schema.WithLogger(logger))

	transformMapper := transform.New(schemaMapper, transform.WithLogger(logger))
	if err := registerDefaultMappings(transformMapper, schemaMapper); err != nil {
		return nil, fmt.Errorf("register default schema mappings: %w", err)
	}

	limiter, err := initRateLimiter(cfg, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}

	bus, err := eventbus.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init event bus: %w", err)
	}

	pipelineOpts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithEventSource(cfg.ServiceName),
	}

	if legacyPrefixes := getEnvStringSlice("AVAPIGW_LEGACY_PROXY_PREFIXES", nil); len(legacyPrefixes) > 0 {
		legacyProxy := proxy.NewReverseProxy(r, svcRegistry, proxy.WithProxyLogger(logger))
		pipelineOpts = append(pipelineOpts, pipeline.WithPassthrough(legacyProxy, legacyPrefixes...))
	}

	pl := pipeline.New(r, svcRegistry, limiter, transformMapper, bus, pipelineOpts...)

	handler := buildMiddlewareChain(pl, cfg, logger, metrics, tracer, credValidator)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}

	return &application{
		config:        cfg,
		routingPath:   routingPath,
		routingDoc:    routingDoc,
		logger:        logger,
		metrics:       metrics,
		reloadMetrics: newReloadMetrics(metrics),
		tracer:        tracer,
		healthChecker: healthChecker,
		router:        r,
		svcRegistry:   svcRegistry,
		kvStore:       kvStore,
		rateLimiter:   limiter,
		bus:           bus,
		credValidator:   credValidator,
		schemaMapper:    schemaMapper,
		transformMapper: transformMapper,
		vaultClient:     vaultClient,
		pipeline:        pl,
		server:          server,
	}, nil
}

// registerDefaultMappings seeds the ERP-to-CRM project mapping the gateway
// ships with out of the box, along with the customer-id lookup table it
// depends on.
func registerDefaultMappings(mapper *transform.Mapper, schemaMapper *schema.Mapper) error {
	schemaMapper.RegisterLookupTable("erp_customer_ids", schema.LookupTable{
		"CUST001": "account-guid-001",
	})

	return mapper.RegisterMapping(transform.SchemaMapping{
		Source: "erp.project",
		Target: "crm.project",
		Fields: []transform.FieldMapping{
			{SourcePath: "$.projectNumber", TargetPath: "$.name", Operator: transform.OperatorDirect},
			{
				SourcePath: "$.status", TargetPath: "$.statuscode", Operator: transform.OperatorMap,
				ValueMap: map[string]string{"Active": "1", "Inactive": "0"},
			},
			{SourcePath: "$.customerId", TargetPath: "$.customerid", Operator: transform.OperatorLookup, OperatorArg: "erp_customer_ids"},
		},
	})
}

// registerSubsystemMetrics registers the subsystem metric singletons that
// expose an explicit MustRegister hook with the gateway's custom Prometheus
// registry, so they appear on the gateway's own /metrics endpoint rather
// than only on the default global registry.
//
// internal/middleware and internal/router's regex-cache metrics self-
// register on promauto's default registry and expose no custom-registry
// hook, so they are left on the default registry rather than duplicated.
func registerSubsystemMetrics(metrics *observability.Metrics, logger observability.Logger) {
	promRegistry := metrics.Registry()

	cacheMetrics := cache.GetCacheMetrics()
	cacheMetrics.MustRegister(promRegistry)
	cacheMetrics.Init()

	jwtMetrics := authjwt.GetSharedMetrics()
	jwtMetrics.MustRegister(promRegistry)
	jwtMetrics.Init()

	apikeyMetrics := apikey.GetSharedMetrics()
	apikeyMetrics.MustRegister(promRegistry)
	apikeyMetrics.Init()

	hlMetrics := health.GetHealthMetrics()
	hlMetrics.MustRegister(promRegistry)
	hlMetrics.Init()

	pm := pipeline.GetMetrics()
	pm.MustRegister(promRegistry)

	logger.Info("subsystem metrics registered with gateway registry",
		observability.Int("subsystem_count", 5),
	)
}

// initStore builds the distributed KV store (C1) backing the schema
// mapper's lookup tables and the credential validator's token blacklist,
// reusing internal/cache's Redis-or-memory engine per cfg.RateLimitStoreType
// (the only store-backend selector the ambient config carries).
func initStore(cfg *config.Config, logger observability.Logger, vaultClient vault.Client) (store.Store, error) {
	cacheType := cache.CacheTypeMemory
	if cfg.RateLimitStoreType == "redis" {
		cacheType = cache.CacheTypeRedis
	}

	cacheCfg := &cache.CacheConfig{
		Enabled:    true,
		Type:       cacheType,
		TTL:        config.Duration(5 * time.Minute),
		MaxEntries: 100000,
	}
	if cacheType == cache.CacheTypeRedis {
		cacheCfg.Redis = &cache.RedisCacheConfig{
			URL:       cfg.RedisAddress,
			KeyPrefix: "avapigw:store:",
			PoolSize:  10,
		}
	}

	var opts []cache.CacheOption
	if vaultClient != nil {
		opts = append(opts, cache.WithVaultClient(vaultClient))
	}

	return store.New(cacheCfg, logger, opts...)
}

// initCredentialValidator builds the credential validator (C8) from the
// ambient JWT/API-key configuration, wiring the jwt/apikey validators it
// orchestrates and the distributed store backing its blacklist checks.
func initCredentialValidator(cfg *config.Config, kvStore store.Store, logger observability.Logger) (*credential.Validator, error) {
	authCfg, err := auth.ConvertFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	opts := []credential.Option{
		credential.WithStore(kvStore),
		credential.WithLogger(logger),
	}

	if authCfg != nil && authCfg.IsJWTEnabled() {
		jwtValidator, err := authjwt.NewValidator(authCfg.JWT, authjwt.WithValidatorLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("jwt validator: %w", err)
		}
		opts = append(opts, credential.WithJWTValidator(jwtValidator))
	}

	if authCfg != nil && authCfg.IsAPIKeyEnabled() {
		apiKeyValidator, err := apikey.NewValidator(authCfg.APIKey, apikey.WithValidatorLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("apikey validator: %w", err)
		}
		opts = append(opts, credential.WithAPIKeyValidator(apiKeyValidator))
	}

	if cfg.BasicAuthEnabled {
		opts = append(opts, credential.WithBasicAuthUsers(loadBasicAuthUsers()))
	}

	return credential.New(opts...), nil
}

// initRateLimiter builds the admission limiter (C7) from the ambient
// rate-limit configuration.
func initRateLimiter(cfg *config.Config, zapLogger *zap.Logger) (ratelimit.Limiter, error) {
	if !cfg.RateLimitEnabled {
		return ratelimit.NewNoopLimiter(), nil
	}

	factoryCfg := ratelimit.DefaultFactoryConfig()
	factoryCfg.Requests = cfg.RateLimitRequests
	factoryCfg.Window = cfg.RateLimitWindow
	factoryCfg.StoreType = cfg.RateLimitStoreType
	factoryCfg.RedisAddress = cfg.RedisAddress
	factoryCfg.RedisPassword = cfg.RedisPassword
	factoryCfg.RedisDB = cfg.RedisDB
	factoryCfg.Logger = zapLogger

	return ratelimit.NewLimiter(factoryCfg)
}
