// Package base provides the foundational BaseConnector that brazesync
// connectors embed. It implements the common production surface:
// circuit breaking, rate limiting, health monitoring, retry logic,
// error categorization, metrics, and progress reporting.
//
// All connectors should embed BaseConnector to inherit its
// functionality:
//
//	type BrazeSource struct {
//	    *base.BaseConnector
//	    // connector-specific fields
//	}
//
//	func NewBrazeSource() *BrazeSource {
//	    return &BrazeSource{
//	        BaseConnector: base.NewBaseConnector("braze", core.ConnectorTypeSource, "1.0.0"),
//	    }
//	}
//
// Lifecycle: create with NewBaseConnector, call Initialize before use,
// Close when done.
package base

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/brazesync/pkg/clients"
	"github.com/ajitpratap0/brazesync/pkg/config"
	"github.com/ajitpratap0/brazesync/pkg/connector/core"
	"github.com/ajitpratap0/brazesync/pkg/errors"
	"github.com/ajitpratap0/brazesync/pkg/logger"
	"github.com/ajitpratap0/brazesync/pkg/metrics"
)

// BaseConnector provides common functionality for all connectors:
// lifecycle and state management plus the reliability features every
// connector needs against an external API.
type BaseConnector struct {
	// Core fields
	name          string
	connectorType core.ConnectorType
	version       string
	config        *config.BaseConfig
	logger        *zap.Logger

	// State management
	state      core.State
	position   core.Position
	stateMutex sync.RWMutex

	// Resource management
	ctx        context.Context
	cancel     context.CancelFunc
	closed     bool
	closeMutex sync.Mutex

	// Production features
	circuitBreaker   *clients.CircuitBreaker
	rateLimiter      clients.RateLimiter
	healthChecker    *HealthChecker
	metricsCollector *metrics.Collector
	errorHandler     *ErrorHandler
	retryPolicy      *RetryPolicy

	// Progress tracking
	progressReporter *ProgressReporter
}

// NewBaseConnector creates a new base connector with the specified
// name, type, and version. Call this from connector constructors.
func NewBaseConnector(name string, connectorType core.ConnectorType, version string) *BaseConnector {
	return &BaseConnector{
		name:          name,
		connectorType: connectorType,
		version:       version,
		state:         make(core.State),
		logger:        logger.Get().With(zap.String("connector", name)),
	}
}

// Initialize sets up the production features of the base connector.
// This must be called before using the connector.
func (bc *BaseConnector) Initialize(ctx context.Context, config *config.BaseConfig) error {
	if config == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	bc.config = config
	bc.ctx, bc.cancel = context.WithCancel(ctx)

	if config.Reliability.CircuitBreaker {
		bc.circuitBreaker = clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
			FailureThreshold: 5,
			SuccessThreshold: 3,
			Timeout:          30 * time.Second,
		}, bc.logger)
	}

	if config.Reliability.RateLimitPerSec > 0 {
		bc.rateLimiter = clients.NewRateLimiter(
			config.Reliability.RateLimitPerSec,
			config.Reliability.RateLimitPerSec*2,
		)
	}

	if config.Reliability.HealthCheck {
		bc.healthChecker = NewHealthChecker(bc.name, 30*time.Second)
		bc.healthChecker.Start(bc.ctx)
	}

	bc.metricsCollector = metrics.NewCollector(bc.name)

	bc.errorHandler = NewErrorHandler(
		bc.logger,
		config.Reliability.RetryAttempts,
		config.Reliability.RetryDelay,
	)

	bc.retryPolicy = NewRetryPolicy(
		config.Reliability.RetryAttempts,
		config.Reliability.RetryDelay,
	)
	if config.Reliability.RetryMultiplier > 0 {
		bc.retryPolicy.Multiplier = config.Reliability.RetryMultiplier
	}
	if config.Reliability.MaxRetryDelay > 0 {
		bc.retryPolicy.MaxDelay = config.Reliability.MaxRetryDelay
	}

	bc.progressReporter = NewProgressReporter(bc.logger, bc.name)

	bc.logger.Info("connector initialized",
		zap.String("type", string(bc.connectorType)),
		zap.String("version", bc.version))

	return nil
}

// Name returns the connector name
func (bc *BaseConnector) Name() string {
	return bc.name
}

// Type returns the connector type
func (bc *BaseConnector) Type() core.ConnectorType {
	return bc.connectorType
}

// Version returns the connector version
func (bc *BaseConnector) Version() string {
	return bc.version
}

// GetState returns a copy of the current state.
func (bc *BaseConnector) GetState() core.State {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()

	stateCopy := make(core.State, len(bc.state))
	for k, v := range bc.state {
		stateCopy[k] = v
	}
	return stateCopy
}

// SetState updates the connector state
func (bc *BaseConnector) SetState(state core.State) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.state = state
	bc.logger.Debug("state updated", zap.Any("state", state))
	return nil
}

// GetPosition returns the current position
func (bc *BaseConnector) GetPosition() core.Position {
	bc.stateMutex.RLock()
	defer bc.stateMutex.RUnlock()
	return bc.position
}

// SetPosition updates the current position
func (bc *BaseConnector) SetPosition(position core.Position) error {
	bc.stateMutex.Lock()
	defer bc.stateMutex.Unlock()

	bc.position = position
	if position != nil {
		bc.logger.Debug("position updated", zap.String("position", position.String()))
	}
	return nil
}

// Health performs a health check
func (bc *BaseConnector) Health(ctx context.Context) error {
	if bc.closed {
		return errors.New(errors.ErrorTypeConnection, "connector is closed")
	}

	if bc.healthChecker == nil {
		return nil
	}
	status := bc.healthChecker.GetStatus()
	if status.Status != "healthy" {
		return errors.Wrap(status.Error, errors.ErrorTypeConnection, "health check failed")
	}

	return nil
}

// Metrics returns current metrics
func (bc *BaseConnector) Metrics() map[string]interface{} {
	out := bc.metricsCollector.GetAll()

	out["name"] = bc.name
	out["type"] = string(bc.connectorType)
	out["version"] = bc.version

	if bc.circuitBreaker != nil {
		cbState := bc.circuitBreaker.GetState()
		out["circuit_breaker_state"] = cbState.State
		out["circuit_breaker_failure_rate"] = cbState.FailureRate
	}

	if bc.rateLimiter != nil {
		rlStats := bc.rateLimiter.GetStats()
		out["rate_limit"] = rlStats.Rate
		out["rate_limit_burst"] = rlStats.Burst
		out["rate_limiter_allowed"] = rlStats.AllowedRequests
		out["rate_limiter_blocked"] = rlStats.BlockedRequests
	}

	if bc.healthChecker != nil {
		status := bc.healthChecker.GetStatus()
		out["health_status"] = status.Status
		out["health_check_count"] = bc.healthChecker.CheckCount()
		out["health_failure_count"] = bc.healthChecker.FailureCount()
	}

	if bc.errorHandler != nil {
		for k, v := range bc.errorHandler.GetErrorStats() {
			out[k] = v
		}
	}

	return out
}

// Close shuts down the connector
func (bc *BaseConnector) Close(ctx context.Context) error {
	bc.closeMutex.Lock()
	defer bc.closeMutex.Unlock()

	if bc.closed {
		return nil
	}

	bc.logger.Info("closing connector")

	if bc.cancel != nil {
		bc.cancel()
	}

	if bc.healthChecker != nil {
		bc.healthChecker.Stop()
	}

	bc.closed = true
	bc.logger.Info("connector closed")

	return nil
}

// ExecuteWithRetry executes a function with exponential backoff,
// retrying only errors the error handler considers retryable.
func (bc *BaseConnector) ExecuteWithRetry(ctx context.Context, fn func() error) error {
	return bc.retryPolicy.ExecuteWithCondition(ctx, fn, bc.errorHandler.ShouldRetry)
}

// ExecuteWithCircuitBreaker executes a function with circuit breaker
// protection. If the circuit is open the function is not executed and
// an error is returned immediately.
func (bc *BaseConnector) ExecuteWithCircuitBreaker(fn func() error) error {
	if bc.circuitBreaker == nil {
		return fn()
	}
	return bc.circuitBreaker.Execute(fn)
}

// RateLimit enforces the configured rate limit, blocking if necessary.
// Returns immediately if no rate limiter is configured.
func (bc *BaseConnector) RateLimit(ctx context.Context) error {
	if bc.rateLimiter == nil {
		return nil
	}
	return bc.rateLimiter.Wait(ctx)
}

// HandleError handles an error with the configured error handler
func (bc *BaseConnector) HandleError(ctx context.Context, err error, recordID string) error {
	return bc.errorHandler.HandleError(ctx, err, recordID)
}

// ShouldRetry checks if an error should be retried
func (bc *BaseConnector) ShouldRetry(err error) bool {
	return bc.errorHandler.ShouldRetry(err)
}

// GetLogger returns the connector logger
func (bc *BaseConnector) GetLogger() *zap.Logger {
	return bc.logger
}

// GetConfig returns the connector configuration
func (bc *BaseConnector) GetConfig() *config.BaseConfig {
	return bc.config
}

// GetContext returns the connector context
func (bc *BaseConnector) GetContext() context.Context {
	return bc.ctx
}

// IsHealthy returns true if the connector is healthy
func (bc *BaseConnector) IsHealthy() bool {
	if bc.closed {
		return false
	}

	if bc.healthChecker != nil {
		return bc.healthChecker.IsHealthy()
	}

	return true
}

// UpdateHealth updates the health status
func (bc *BaseConnector) UpdateHealth(healthy bool, details map[string]interface{}) {
	if bc.healthChecker != nil {
		bc.healthChecker.UpdateStatus(healthy, details)
	}
}

// GetCircuitBreaker returns the circuit breaker
func (bc *BaseConnector) GetCircuitBreaker() *clients.CircuitBreaker {
	return bc.circuitBreaker
}

// GetRateLimiter returns the rate limiter
func (bc *BaseConnector) GetRateLimiter() clients.RateLimiter {
	return bc.rateLimiter
}

// GetErrorHandler returns the error handler
func (bc *BaseConnector) GetErrorHandler() *ErrorHandler {
	return bc.errorHandler
}

// GetRetryPolicy returns the retry policy
func (bc *BaseConnector) GetRetryPolicy() *RetryPolicy {
	return bc.retryPolicy
}

// GetMetricsCollector returns the metrics collector
func (bc *BaseConnector) GetMetricsCollector() *metrics.Collector {
	return bc.metricsCollector
}

// GetProgressReporter returns the progress reporter
func (bc *BaseConnector) GetProgressReporter() *ProgressReporter {
	return bc.progressReporter
}

// Validate validates the connector configuration, applying defaults for
// unset performance fields.
func (bc *BaseConnector) Validate() error {
	if bc.config == nil {
		return errors.New(errors.ErrorTypeConfig, "configuration is required")
	}

	if bc.config.Name == "" {
		return errors.New(errors.ErrorTypeConfig, "connector name is required")
	}

	if bc.config.Performance.BatchSize <= 0 {
		bc.config.Performance.BatchSize = 75
	}

	if bc.config.Performance.MaxConcurrency <= 0 {
		bc.config.Performance.MaxConcurrency = 10
	}

	if bc.config.Performance.BufferSize <= 0 {
		bc.config.Performance.BufferSize = 10000
	}

	return nil
}
