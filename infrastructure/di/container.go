package di

import (
	"calctree/application/commands/bus"
	"calctree/application/ports"
	querybus "calctree/application/queries/bus"
	"calctree/application/services"
	domainconfig "calctree/domain/config"
	"calctree/infrastructure/config"
	"calctree/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config         *config.Config
	DomainConfig   *domainconfig.DomainConfig
	Logger         *zap.Logger
	Store          ports.TxManager
	Cache          ports.Cache
	EventPublisher ports.EventPublisher
	Metrics        *observability.Metrics
	Tracer         *observability.Tracer
	Recalculation  *services.RecalculationService
	CommandBus     *bus.CommandBus
	QueryBus       *querybus.QueryBus
}
