package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/scm-mirror/internal/api"
	"github.com/stacklok/scm-mirror/internal/app/storage"
	"github.com/stacklok/scm-mirror/internal/auth"
	"github.com/stacklok/scm-mirror/internal/authz"
	"github.com/stacklok/scm-mirror/internal/config"
	"github.com/stacklok/scm-mirror/internal/filtering"
	"github.com/stacklok/scm-mirror/internal/github"
	"github.com/stacklok/scm-mirror/internal/jobs"
	"github.com/stacklok/scm-mirror/internal/lock"
	"github.com/stacklok/scm-mirror/internal/service"
	"github.com/stacklok/scm-mirror/internal/service/mirror"
	"github.com/stacklok/scm-mirror/internal/store"
	"github.com/stacklok/scm-mirror/internal/store/postgres"
	mirrorsync "github.com/stacklok/scm-mirror/internal/sync"
	"github.com/stacklok/scm-mirror/internal/telemetry"
)

const (
	defaultHTTPAddress     = ":8080"
	defaultRequestTimeout  = 30 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 30 * time.Second
)

// MirrorAppOptions is a function that configures the mirror app builder
type MirrorAppOptions func(*mirrorAppConfig) error

// mirrorAppConfig collects the builder inputs.
// It supports dependency injection for testing while providing sensible defaults for production
type mirrorAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	storageFactory storage.Factory
	githubClient   github.Client

	// HTTP server options
	address         string
	middlewares     []func(http.Handler) http.Handler
	requestTimeout  time.Duration
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration

	// Auth components
	authMiddleware func(http.Handler) http.Handler

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...MirrorAppOptions) (*mirrorAppConfig, error) {
	cfg := &mirrorAppConfig{
		address:         defaultHTTPAddress,
		requestTimeout:  defaultRequestTimeout,
		readTimeout:     defaultReadTimeout,
		writeTimeout:    defaultWriteTimeout,
		idleTimeout:     defaultIdleTimeout,
		shutdownTimeout: defaultShutdownTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		cfg.config = config.Default()
	}
	return cfg, nil
}

// NewMirrorApp wires the store, GitHub client, job pool, sync orchestrator,
// mirror service and HTTP server.
func NewMirrorApp(
	ctx context.Context,
	opts ...MirrorAppOptions,
) (*MirrorApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	if cfg.storageFactory == nil {
		var factoryOpts []storage.DatabaseFactoryOption
		if cfg.tracerProvider != nil {
			factoryOpts = append(factoryOpts, storage.WithTracer(cfg.tracerProvider.Tracer(postgres.TracerName)))
		}
		cfg.storageFactory, err = storage.NewStorageFactory(ctx, cfg.config, factoryOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage factory: %w", err)
		}
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded {
			cfg.storageFactory.Cleanup()
		}
	}()

	st, err := cfg.storageFactory.CreateStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	if cfg.githubClient == nil {
		cfg.githubClient, err = buildGitHubClient(cfg.config.GitHub)
		if err != nil {
			return nil, fmt.Errorf("failed to build GitHub client: %w", err)
		}
	}

	appCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	components, err := buildServiceComponents(appCtx, cfg, st)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build service components: %w", err)
	}

	if cfg.authMiddleware == nil {
		cfg.authMiddleware, err = buildAuthMiddleware(cfg, st)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to build auth middleware: %w", err)
		}
	}

	httpServer, err := buildHTTPServer(ctx, cfg, components.MirrorService)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	// Cleanup is now handled by the app, not in defer
	cleanupNeeded = false

	factory := cfg.storageFactory
	cancelFunc := func() {
		factory.Cleanup()
		cancel()
	}

	return &MirrorApp{
		config:          cfg.config,
		components:      components,
		httpServer:      httpServer,
		shutdownTimeout: cfg.shutdownTimeout,
		ctx:             appCtx,
		cancelFunc:      cancelFunc,
	}, nil
}

// WithConfig sets the configuration and the HTTP settings it carries
func WithConfig(c *config.Config) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		if c == nil {
			return fmt.Errorf("config cannot be nil")
		}
		cfg.config = c

		s := c.Server
		if s.Address != "" {
			if err := WithAddress(s.Address)(cfg); err != nil {
				return err
			}
		}
		setDuration(&cfg.requestTimeout, s.RequestTimeout)
		setDuration(&cfg.readTimeout, s.ReadTimeout)
		setDuration(&cfg.writeTimeout, s.WriteTimeout)
		setDuration(&cfg.idleTimeout, s.IdleTimeout)
		setDuration(&cfg.shutdownTimeout, s.ShutdownTimeout)
		return nil
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithStorageFactory allows injecting a custom storage factory (for testing)
func WithStorageFactory(f storage.Factory) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.storageFactory = f
		return nil
	}
}

// WithGitHubClient allows injecting a custom GitHub client (for testing)
func WithGitHubClient(c github.Client) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.githubClient = c
		return nil
	}
}

// WithAuthMiddleware replaces the GitHub token middleware (for testing)
func WithAuthMiddleware(mw func(http.Handler) http.Handler) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.authMiddleware = mw
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider for HTTP, sync and job metrics
func WithMeterProvider(mp metric.MeterProvider) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) MirrorAppOptions {
	return func(cfg *mirrorAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

func buildGitHubClient(c config.GitHubConfig) (*github.RESTClient, error) {
	var opts []github.Option
	if c.BaseURL != "" {
		opts = append(opts, github.WithBaseURL(c.BaseURL))
	}
	if c.Timeout > 0 {
		opts = append(opts, github.WithTimeout(c.Timeout))
	}
	if c.UserAgent != "" {
		opts = append(opts, github.WithUserAgent(c.UserAgent))
	}
	if c.MaxPages > 0 {
		opts = append(opts, github.WithMaxPages(c.MaxPages))
	}
	return github.NewClient(opts...)
}

func (b *mirrorAppConfig) tracer(name string) trace.Tracer {
	if b.tracerProvider == nil {
		return nil
	}
	return b.tracerProvider.Tracer(name)
}

// buildServiceComponents builds the job pool, orchestrator and mirror service
func buildServiceComponents(
	ctx context.Context,
	b *mirrorAppConfig,
	st store.Store,
) (*AppComponents, error) {
	slog.Info("Initializing service components")

	locks := lock.NewManager()

	jobOpts := []jobs.Option{jobs.WithBaseContext(ctx)}
	if b.config.Jobs.Workers > 0 {
		jobOpts = append(jobOpts, jobs.WithWorkers(b.config.Jobs.Workers))
	}
	if b.config.Jobs.Timeout > 0 {
		jobOpts = append(jobOpts, jobs.WithTimeout(b.config.Jobs.Timeout))
	}

	syncOpts := []mirrorsync.Option{
		mirrorsync.WithClient(b.githubClient),
		mirrorsync.WithStore(st),
		mirrorsync.WithLocks(locks),
		mirrorsync.WithLimits(mirrorsync.Limits{
			MaxPullRequests:     b.config.Sync.MaxPullRequests,
			MaxPullRequestFiles: b.config.Sync.MaxPullRequestFiles,
			MaxCommits:          b.config.Sync.MaxCommits,
			Lookback:            b.config.Sync.Lookback,
		}),
		mirrorsync.WithFetchCommitDetails(b.config.Sync.ShouldFetchCommitDetails()),
		mirrorsync.WithFetchPullRequestDetails(b.config.Sync.ShouldFetchPullRequestDetails()),
		mirrorsync.WithTracer(b.tracer(mirrorsync.TracerName)),
	}

	repoFilter := b.config.Sync.Repositories
	rules := filtering.Rules{
		Include:          repoFilter.Include,
		Exclude:          repoFilter.Exclude,
		IncludeLanguages: repoFilter.IncludeLanguages,
		ExcludeLanguages: repoFilter.ExcludeLanguages,
		SkipArchived:     repoFilter.SkipArchived,
	}
	if !rules.IsEmpty() {
		filter, err := filtering.New(rules)
		if err != nil {
			return nil, fmt.Errorf("invalid repository filter: %w", err)
		}
		syncOpts = append(syncOpts, mirrorsync.WithRepositoryFilter(filter))
	}

	if b.meterProvider != nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}
		syncOpts = append(syncOpts, mirrorsync.WithSyncMetrics(syncMetrics))

		jobMetrics, err := telemetry.NewJobMetrics(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create job metrics: %w", err)
		}
		jobOpts = append(jobOpts, jobs.WithJobMetrics(jobMetrics))
		slog.Info("Sync and job metrics enabled")
	}

	jobService, err := jobs.New(jobOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	orchestrator, err := mirrorsync.New(syncOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync orchestrator: %w", err)
	}

	authorizer, err := authz.NewAuthorizer(b.config.Authz.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer: %w", err)
	}

	svc, err := mirror.New(
		mirror.WithStore(st),
		mirror.WithClient(b.githubClient),
		mirror.WithSynchronizer(orchestrator),
		mirror.WithJobs(jobService),
		mirror.WithLocks(locks),
		mirror.WithAuthorizer(authorizer),
		mirror.WithTracer(b.tracer(mirror.ServiceTracerName)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror service: %w", err)
	}

	slog.Info("Service components initialized successfully")
	return &AppComponents{
		Store:         st,
		Jobs:          jobService,
		Locks:         locks,
		Orchestrator:  orchestrator,
		MirrorService: svc,
	}, nil
}

func buildAuthMiddleware(b *mirrorAppConfig, st store.Store) (func(http.Handler) http.Handler, error) {
	opts := []auth.Option{auth.WithRealm(b.config.Auth.Realm)}
	if b.config.Auth.CacheTTL > 0 || b.config.Auth.CacheSize > 0 {
		ttl := b.config.Auth.CacheTTL
		if ttl == 0 {
			ttl = auth.DefaultCacheTTL
		}
		opts = append(opts, auth.WithCache(b.config.Auth.CacheSize, ttl))
	}

	m, err := auth.NewMiddleware(b.githubClient, st.Users(), opts...)
	if err != nil {
		return nil, err
	}
	return m.Handler, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
//
//nolint:unparam // we prefer having a similar interface
func buildHTTPServer(
	_ context.Context,
	b *mirrorAppConfig,
	svc service.MirrorService,
) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	middlewares := b.middlewares
	if middlewares == nil {
		middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// Tracing and metrics go first so rejected requests are observed too
	if b.tracerProvider != nil {
		middlewares = append([]func(http.Handler) http.Handler{telemetry.TracingMiddleware(b.tracerProvider)}, middlewares...)
		slog.Info("HTTP tracing middleware enabled")
	}
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		if metricsMiddleware != nil {
			middlewares = append([]func(http.Handler) http.Handler{metricsMiddleware}, middlewares...)
			slog.Info("HTTP metrics middleware enabled")
		}
	}

	if b.authMiddleware != nil {
		publicPaths := append([]string{}, auth.DefaultPublicPaths...)
		if b.config != nil {
			publicPaths = append(publicPaths, b.config.Auth.PublicPaths...)
		}
		middlewares = append(middlewares, auth.WrapWithPublicPaths(b.authMiddleware, publicPaths))
	}

	router := api.NewServer(svc, api.WithMiddlewares(middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}
