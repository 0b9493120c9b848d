package config

import (
	"context"
	"fmt"

	"github.com/draftea/saga-engine/orchestrator-service/application"
	"github.com/draftea/saga-engine/orchestrator-service/domain"
	"github.com/draftea/saga-engine/orchestrator-service/handlers"
	"github.com/draftea/saga-engine/orchestrator-service/infrastructure"
	sharedinfra "github.com/draftea/saga-engine/shared/infrastructure"
	"github.com/draftea/saga-engine/shared/saga"
	"github.com/draftea/saga-engine/shared/telemetry"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type Dependencies struct {
	// Database
	DB *sqlx.DB

	// Observability
	Logger            *zap.Logger
	Telemetry         *telemetry.Telemetry
	telemetryShutdown func()

	// State and repositories
	SagaStore        *sharedinfra.PostgresStateStore
	WalletRepository *infrastructure.PostgresWalletRepository
	PaymentGateway   *infrastructure.HTTPPaymentGateway

	// Orchestrators
	PaymentSaga *saga.Orchestrator
	RefundSaga  *saga.Orchestrator

	// Use Cases
	ProcessPayment *application.ProcessPayment
	RefundPayment  *application.RefundPayment
	GetSaga        *application.GetSaga
	RecoverSagas   *application.RecoverSagas

	// HTTP Handlers
	SagaHandlers *handlers.SagaHandlers

	// Event Handlers
	SagaEventHandlers *handlers.SagaEventHandlers

	// Infrastructure
	EventPublisher  *sharedinfra.SNSEventPublisher
	EventSubscriber *sharedinfra.SQSEventSubscriber
}

func BuildDependencies(ctx context.Context, config *Config) (*Dependencies, error) {
	deps := &Dependencies{}

	// Initialize logging
	logger, err := newLogger(config.Env)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	deps.Logger = logger

	// Initialize telemetry
	tel, telShutdown, err := telemetry.InitTelemetry(ctx, telemetry.Config{
		ServiceName:    config.ServiceName,
		ServiceVersion: "1.0.0",
		OTLPEndpoint:   config.Telemetry.OTLPEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	deps.Telemetry = tel
	deps.telemetryShutdown = telShutdown

	sagaMetrics, err := telemetry.NewSagaMetrics(tel.Meter())
	if err != nil {
		return nil, fmt.Errorf("failed to create saga metrics: %w", err)
	}

	// Initialize database
	db, err := sqlx.Connect("postgres", config.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	deps.DB = db

	// Initialize AWS infrastructure
	eventPublisher, err := sharedinfra.NewSNSEventPublisherFromConfig(ctx, config.AWS.SNSTopicArn, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SNS publisher: %w", err)
	}
	deps.EventPublisher = eventPublisher

	// Initialize state store and repositories
	deps.SagaStore = sharedinfra.NewPostgresStateStore(db)
	deps.WalletRepository = infrastructure.NewPostgresWalletRepository(db)
	deps.PaymentGateway = infrastructure.NewHTTPPaymentGateway(config.Gateway.BaseURL, config.GatewayTimeout())

	// Initialize orchestrators
	retryPolicy := saga.RetryPolicy{
		MaxAttempts: config.Saga.MaxAttempts,
		BaseDelay:   config.RetryBaseDelay(),
		MaxDelay:    config.RetryMaxDelay(),
	}
	orchestratorOpts := []saga.Option{
		saga.WithRetryPolicy(retryPolicy),
		saga.WithLogger(logger),
		saga.WithPublisher(eventPublisher),
		saga.WithMetrics(sagaMetrics),
		saga.WithTimeout(config.SagaTimeout()),
	}

	paymentSaga, err := saga.NewOrchestrator(
		domain.PaymentSagaName,
		domain.PaymentSagaSteps(deps.WalletRepository, deps.PaymentGateway, eventPublisher),
		deps.SagaStore,
		orchestratorOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build payment saga: %w", err)
	}
	deps.PaymentSaga = paymentSaga

	refundSaga, err := saga.NewOrchestrator(
		domain.RefundSagaName,
		domain.RefundSagaSteps(deps.WalletRepository, deps.PaymentGateway, eventPublisher),
		deps.SagaStore,
		orchestratorOpts...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build refund saga: %w", err)
	}
	deps.RefundSaga = refundSaga

	// Initialize use cases
	deps.ProcessPayment = application.NewProcessPayment(paymentSaga)
	deps.RefundPayment = application.NewRefundPayment(refundSaga)
	deps.GetSaga = application.NewGetSaga(deps.SagaStore)
	deps.RecoverSagas = application.NewRecoverSagas(
		deps.SagaStore,
		[]application.SagaRunner{paymentSaga, refundSaga},
		logger,
		config.Saga.RecoveryConcurrency,
	)

	// Initialize handlers
	deps.SagaHandlers = handlers.NewSagaHandlers(deps.ProcessPayment, deps.RefundPayment, deps.GetSaga)
	deps.SagaEventHandlers = handlers.NewSagaEventHandlers(deps.RefundPayment, logger)

	eventSubscriber, err := sharedinfra.NewSQSEventSubscriberFromConfig(ctx, config.AWS.SQSQueueURL, deps.SagaEventHandlers, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS subscriber: %w", err)
	}
	deps.EventSubscriber = eventSubscriber

	return deps, nil
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Close closes all dependencies
func (d *Dependencies) Close() error {
	var errs []error

	if d.EventSubscriber != nil {
		if err := d.EventSubscriber.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop event subscriber: %w", err))
		}
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.EventPublisher != nil {
		if err := d.EventPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close event publisher: %w", err))
		}
	}

	if d.telemetryShutdown != nil {
		d.telemetryShutdown()
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %v", errs)
	}

	return nil
}
