package di

import (
	"context"
	"fmt"
	"strings"
	"time"

	"calctree/application/commands"
	"calctree/application/commands/bus"
	commandhandlers "calctree/application/commands/handlers"
	"calctree/application/ports"
	"calctree/application/queries"
	querybus "calctree/application/queries/bus"
	queryhandlers "calctree/application/queries/handlers"
	"calctree/application/services"
	domainconfig "calctree/domain/config"
	"calctree/infrastructure/config"
	"calctree/infrastructure/messaging/eventbridge"
	"calctree/infrastructure/persistence/badger"
	"calctree/infrastructure/persistence/dynamodb"
	"calctree/infrastructure/persistence/memory"
	"calctree/pkg/observability"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
		}
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}

	return zcfg.Build()
}

// ProvideDomainConfig picks the environment profile, overlays the optional
// YAML file and then the environment overrides.
func ProvideDomainConfig(cfg *config.Config) (*domainconfig.DomainConfig, error) {
	dc := domainconfig.LoadDomainConfig(cfg.Environment)

	if cfg.DomainConfigFile != "" {
		loaded, err := domainconfig.LoadDomainConfigFile(cfg.DomainConfigFile, dc)
		if err != nil {
			return nil, err
		}
		dc = loaded
	}

	if cfg.MaxTreeDepth > 0 {
		dc.MaxTreeDepth = cfg.MaxTreeDepth
	}
	if cfg.CacheTTLSeconds > 0 {
		dc.RootSummaryTTL = time.Duration(cfg.CacheTTLSeconds) * time.Second
	}

	if err := dc.Validate(); err != nil {
		return nil, err
	}
	return dc, nil
}

// ProvideAWSConfig creates AWS configuration. Nothing is loaded when no
// component needs AWS, so local runs need no credentials.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if !cfg.UsesAWS() {
		return aws.Config{Region: cfg.AWSRegion}, nil
	}
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideStore opens the configured persistence backend. The cleanup
// closes it.
func ProvideStore(
	cfg *config.Config,
	domainCfg *domainconfig.DomainConfig,
	awsCfg aws.Config,
	logger *zap.Logger,
) (ports.TxManager, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendBadger:
		store, err := badger.Open(badger.DefaultConfig(cfg.BadgerPath), logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := store.Close(); err != nil {
				logger.Error("Failed to close badger store", zap.Error(err))
			}
		}
		return store, cleanup, nil

	case config.BackendDynamoDB:
		client := awsdynamodb.NewFromConfig(awsCfg)
		store := dynamodb.NewStore(client, dynamodb.Tables{
			TableName:       cfg.DynamoDBTable,
			ParentIndex:     cfg.IndexName,
			DiscussionIndex: cfg.GSI2IndexName,
		}, domainCfg, logger)
		return store, func() {}, nil

	default:
		return memory.NewStore(), func() {}, nil
	}
}

// ProvideCache creates the root-summary cache
func ProvideCache() (ports.Cache, func()) {
	cache := NewInMemoryCache(time.Minute)
	return cache, cache.Close
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and only logs otherwise.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EventBusName == "" {
		return eventbridge.NewLogPublisher(logger)
	}
	client := awseventbridge.NewFromConfig(awsCfg)
	return eventbridge.NewPublisher(client, cfg.EventBusName, eventbridge.DefaultBreakerConfig(), logger)
}

// ProvideMetrics creates metrics instance. Disabled metrics get a nil
// client, which makes every call a no-op.
func ProvideMetrics(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return observability.NewMetrics(cfg.MetricsNamespace, nil, logger)
	}
	return observability.NewMetrics(cfg.MetricsNamespace, awscloudwatch.NewFromConfig(awsCfg), logger)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("calctree", cfg.EnableTracing)
}

// ProvideRecalculationService creates the recalculation engine
func ProvideRecalculationService(txm ports.TxManager, domainCfg *domainconfig.DomainConfig, logger *zap.Logger) *services.RecalculationService {
	return services.NewRecalculationService(txm, domainCfg, logger)
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	txm ports.TxManager,
	recalc *services.RecalculationService,
	publisher ports.EventPublisher,
	cache ports.Cache,
	domainCfg *domainconfig.DomainConfig,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus(
		bus.LoggingMiddleware(logger),
		bus.TracingMiddleware(tracer),
		bus.MetricsMiddleware(metrics),
	)
	notifier := commandhandlers.NewNotifier(publisher, cache, logger)

	registrations := []struct {
		cmd     bus.Command
		handler bus.CommandHandler
	}{
		{commands.CreateDiscussionCommand{}, commandhandlers.NewCreateDiscussionHandler(txm, recalc, notifier, domainCfg, logger)},
		{commands.UpdateDiscussionCommand{}, commandhandlers.NewUpdateDiscussionHandler(txm, notifier, domainCfg)},
		{commands.EndDiscussionCommand{}, commandhandlers.NewEndDiscussionHandler(txm, notifier)},
		{commands.DeleteDiscussionCommand{}, commandhandlers.NewDeleteDiscussionHandler(txm, notifier, logger)},
		{commands.CreateOperationCommand{}, commandhandlers.NewCreateOperationHandler(recalc, notifier)},
		{commands.UpdateOperationCommand{}, commandhandlers.NewUpdateOperationHandler(recalc, notifier, metrics)},
	}
	for _, r := range registrations {
		if err := commandBus.Register(r.cmd, r.handler); err != nil {
			return nil, err
		}
	}
	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers
func ProvideQueryBus(
	txm ports.TxManager,
	cache ports.Cache,
	domainCfg *domainconfig.DomainConfig,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus(
		querybus.NewLoggingMiddleware(logger),
		querybus.NewTracingMiddleware(tracer),
		querybus.NewMetricsMiddleware(metrics),
		querybus.NewCachingMiddleware(cache, int(domainCfg.RootSummaryTTL/time.Second)),
	)

	registrations := []struct {
		query   querybus.Query
		handler querybus.QueryHandler
	}{
		{queries.GetOperationQuery{}, queryhandlers.NewGetOperationHandler(txm)},
		{queries.ListOperationsQuery{}, queryhandlers.NewListOperationsHandler(txm, domainCfg)},
		{queries.GetDiscussionQuery{}, queryhandlers.NewGetDiscussionHandler(txm)},
		{queries.ListDiscussionsQuery{}, queryhandlers.NewListDiscussionsHandler(txm, domainCfg)},
		{queries.GetDiscussionTreeQuery{}, queryhandlers.NewGetDiscussionTreeHandler(txm, domainCfg, logger)},
		{queries.GetRootSummaryQuery{}, queryhandlers.NewGetRootSummaryHandler(txm)},
	}
	for _, r := range registrations {
		if err := queryBus.Register(r.query, r.handler); err != nil {
			return nil, err
		}
	}
	return queryBus, nil
}
