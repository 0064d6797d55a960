package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/keel/internal/hierarchy/application"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/commands"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/queries"
	"github.com/felixgeelhaar/keel/internal/hierarchy/application/subscribers"
	"github.com/felixgeelhaar/keel/internal/hierarchy/domain"
	"github.com/felixgeelhaar/keel/internal/hierarchy/infrastructure/cache"
	"github.com/felixgeelhaar/keel/internal/hierarchy/infrastructure/kpidirectory"
	sharedApplication "github.com/felixgeelhaar/keel/internal/shared/application"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/keel/internal/shared/infrastructure/database/postgres"
	_ "github.com/felixgeelhaar/keel/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/keel/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/keel/pkg/config"
	"github.com/felixgeelhaar/keel/pkg/observability"
	"github.com/redis/go-redis/v9"
)

// Container holds all application dependencies.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics observability.Metrics
	Health  *observability.HealthRegistry

	// Infrastructure
	DBConn      database.Connection
	DBDriver    database.Driver
	RedisClient *redis.Client

	// Repositories
	HierarchyRepo    domain.Repository
	ContributionRepo domain.ContributionRepository
	OutboxRepo       outbox.Repository
	UnitOfWork       sharedApplication.UnitOfWork

	// Ports
	Cache        application.HierarchyCache
	KPIDirectory application.KPIDirectory

	// Events
	EventPublisher    eventbus.Publisher
	InProcessEventBus *eventbus.InProcessEventBus
	OutboxProcessor   *outbox.Processor
	CacheSubscriber   *subscribers.CacheInvalidationSubscriber

	// Command handlers
	CreateMilestone  *commands.CreateMilestoneHandler
	DeleteMilestone  *commands.DeleteMilestoneHandler
	AddSubMilestone  *commands.AddSubMilestoneHandler
	AddTask          *commands.AddTaskHandler
	DecideApproval   *commands.DecideApprovalHandler
	UpdateStatus     *commands.UpdateStatusHandler
	UpdateProgress   *commands.UpdateProgressHandler
	SubmitCompletion *commands.SubmitCompletionHandler
	ReviewCompletion *commands.ReviewCompletionHandler
	RemoveNode       *commands.RemoveNodeHandler
	ImportPlan       *commands.ImportPlanHandler

	// Query handlers
	GetHierarchy      *queries.GetHierarchyHandler
	ListMilestones    *queries.ListMilestonesHandler
	ListTasks         *queries.ListTasksHandler
	GetCapacity       *queries.GetCapacityHandler
	ListContributions *queries.ListContributionsHandler
	ExportPlan        *queries.ExportPlanHandler
	ApprovedKPIs      *queries.ApprovedKPIsHandler
}

// NewContainer opens the configured database, applies migrations and wires
// every handler. Without DATABASE_URL it runs against the local SQLite file.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	return NewContainerWithMetrics(ctx, cfg, logger, observability.NewInMemoryMetrics())
}

// NewContainerWithMetrics is NewContainer with an explicit metrics sink.
func NewContainerWithMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics observability.Metrics) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
		Health:  observability.NewHealthRegistry(),
	}

	conn, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()
	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))

	factory := NewRepositoryFactory(conn)
	if c.HierarchyRepo, err = factory.HierarchyRepository(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create hierarchy repository: %w", err)
	}
	if c.ContributionRepo, err = factory.ContributionRepository(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create contribution repository: %w", err)
	}
	if c.OutboxRepo, err = factory.OutboxRepository(); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create outbox repository: %w", err)
	}
	c.UnitOfWork = factory.UnitOfWork()

	if err := c.initCache(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initKPIDirectory(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initEvents(); err != nil {
		c.Close()
		return nil, err
	}

	deps := commands.Deps{
		Repo:    c.HierarchyRepo,
		Outbox:  c.OutboxRepo,
		UoW:     c.UnitOfWork,
		Cache:   c.Cache,
		Metrics: c.Metrics,
	}

	c.CreateMilestone = commands.NewCreateMilestoneHandler(deps, c.KPIDirectory)
	c.DeleteMilestone = commands.NewDeleteMilestoneHandler(deps)
	c.AddSubMilestone = commands.NewAddSubMilestoneHandler(deps, c.KPIDirectory)
	c.AddTask = commands.NewAddTaskHandler(deps, c.KPIDirectory)
	c.DecideApproval = commands.NewDecideApprovalHandler(deps)
	c.UpdateStatus = commands.NewUpdateStatusHandler(deps)
	c.UpdateProgress = commands.NewUpdateProgressHandler(deps)
	c.SubmitCompletion = commands.NewSubmitCompletionHandler(deps)
	c.ReviewCompletion = commands.NewReviewCompletionHandler(deps, c.ContributionRepo)
	c.RemoveNode = commands.NewRemoveNodeHandler(deps)
	c.ImportPlan = commands.NewImportPlanHandler(deps, c.KPIDirectory)

	c.GetHierarchy = queries.NewGetHierarchyHandler(c.HierarchyRepo, c.Cache, c.Metrics, logger)
	c.ListMilestones = queries.NewListMilestonesHandler(c.HierarchyRepo)
	c.ListTasks = queries.NewListTasksHandler(c.HierarchyRepo)
	c.GetCapacity = queries.NewGetCapacityHandler(c.HierarchyRepo)
	c.ListContributions = queries.NewListContributionsHandler(c.ContributionRepo)
	c.ExportPlan = queries.NewExportPlanHandler(c.HierarchyRepo)
	c.ApprovedKPIs = queries.NewApprovedKPIsHandler(c.KPIDirectory, c.Metrics)

	logger.Info("container initialized",
		"driver", c.DBDriver,
		"broker", cfg.EventBroker,
		"cache", cacheKind(c.Cache),
	)
	return c, nil
}

func openDatabase(ctx context.Context, cfg *config.Config, logger *slog.Logger) (database.Connection, error) {
	dbCfg := database.Config{
		Driver:   database.Driver(cfg.DatabaseDriver),
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DatabaseMaxConns,
	}
	if cfg.LocalMode() {
		dbCfg.Driver = database.DriverSQLite
		dbCfg.SQLitePath = cfg.SQLitePath
	}

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	logger.Info("connected to database", "driver", conn.Driver())

	if err := migrations.Run(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return conn, nil
}

// initCache connects to Redis when REDIS_URL is set. Outside production an
// unreachable Redis degrades to the in-memory cache.
func (c *Container) initCache(ctx context.Context) error {
	cfg := c.Config
	if cfg.RedisURL == "" {
		c.Cache = cache.NewMemoryHierarchyCache(cfg.CacheTTL)
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		if cfg.IsProduction() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, using in-memory cache", "error", err)
		c.Cache = cache.NewMemoryHierarchyCache(cfg.CacheTTL)
		return nil
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if cfg.IsProduction() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, using in-memory cache", "error", err)
		c.Cache = cache.NewMemoryHierarchyCache(cfg.CacheTTL)
		return nil
	}

	c.RedisClient = client
	c.Cache = cache.NewRedisHierarchyCache(client, cfg.CacheTTL)
	c.Health.Register("cache", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

// initKPIDirectory picks the HTTP tracker client or the static file. With
// neither configured KPI links are accepted unverified.
func (c *Container) initKPIDirectory() error {
	cfg := c.Config
	switch {
	case cfg.KPIServiceURL != "":
		dir := kpidirectory.NewHTTPDirectory(kpidirectory.HTTPConfig{
			BaseURL:          cfg.KPIServiceURL,
			Timeout:          cfg.KPIServiceTimeout,
			FailureThreshold: uint32(max(cfg.KPIBreakerFailures, 0)),
			OpenTimeout:      cfg.KPIBreakerTimeout,
		}, c.Logger)
		c.KPIDirectory = dir
		c.Health.Register("kpi_directory", observability.DependencyHealthChecker("kpi directory", dir.Healthy))
		c.Logger.Info("KPI directory configured", "url", cfg.KPIServiceURL)
	case cfg.KPIDirectoryFile != "":
		dir, err := kpidirectory.LoadFileDirectory(cfg.KPIDirectoryFile)
		if err != nil {
			return fmt.Errorf("failed to load KPI directory file: %w", err)
		}
		c.KPIDirectory = dir
		c.Logger.Info("KPI directory loaded", "path", cfg.KPIDirectoryFile)
	default:
		c.Logger.Warn("no KPI directory configured, KPI links are not verified")
	}
	return nil
}

// initEvents builds the publisher the outbox relays to. The in-process bus
// also receives the cache invalidation subscriber so a single binary keeps
// its cache coherent without a broker.
func (c *Container) initEvents() error {
	cfg := c.Config
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		publisher, err := eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, c.Logger)
		if err != nil {
			if cfg.IsProduction() {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
			c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		} else {
			c.EventPublisher = publisher
		}
	case config.BrokerKafka:
		publisher, err := eventbus.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		c.EventPublisher = publisher
	case config.BrokerInProcess:
		c.InProcessEventBus = eventbus.NewInProcessEventBus(c.Logger)
		c.CacheSubscriber = subscribers.NewCacheInvalidationSubscriber(c.Cache, c.Metrics, c.Logger)
		c.InProcessEventBus.RegisterConsumer(c.CacheSubscriber)
		c.EventPublisher = c.InProcessEventBus
	default:
		c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
	}

	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, c.ProcessorConfig(), c.Logger).
		WithMetrics(c.Metrics)
	return nil
}

// ProcessorConfig maps the OUTBOX_* settings onto the processor.
func (c *Container) ProcessorConfig() outbox.ProcessorConfig {
	pc := outbox.DefaultProcessorConfig()
	if c.Config.OutboxPollInterval > 0 {
		pc.PollInterval = c.Config.OutboxPollInterval
	}
	if c.Config.OutboxBatchSize > 0 {
		pc.BatchSize = c.Config.OutboxBatchSize
	}
	if c.Config.OutboxMaxRetries > 0 {
		pc.MaxRetries = c.Config.OutboxMaxRetries
	}
	return pc
}

// Session returns the identity configured for local tools (CLI and MCP).
func (c *Container) Session() (sharedApplication.Session, error) {
	return SessionFromConfig(c.Config)
}

// Close cleans up all resources.
func (c *Container) Close() {
	if c.OutboxProcessor != nil && c.OutboxProcessor.IsRunning() {
		c.OutboxProcessor.Stop()
	}

	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("error closing event publisher", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		} else {
			c.Logger.Info("Redis connection closed")
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}

func cacheKind(hc application.HierarchyCache) string {
	switch hc.(type) {
	case *cache.RedisHierarchyCache:
		return "redis"
	case *cache.MemoryHierarchyCache:
		return "memory"
	default:
		return "none"
	}
}
