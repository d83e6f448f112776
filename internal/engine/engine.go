package engine

import (
	"time"

	"automation-service/internal/repository"

	"go.uber.org/zap"
)

// DefaultStepTimeout bounds a single step execution when the step does not
// configure its own timeout.
const DefaultStepTimeout = 30 * time.Second

// Engine wires the condition evaluator, step registry and store together.
// One Engine instance is shared by the HTTP handlers and the cron scheduler.
type Engine struct {
	store       repository.Store
	registry    *Registry
	log         *zap.Logger
	stepTimeout time.Duration
}

// New creates an Engine. stepTimeout is the per-step execution bound used
// when a step has no timeout of its own; zero selects DefaultStepTimeout.
func New(store repository.Store, registry *Registry, log *zap.Logger, stepTimeout time.Duration) *Engine {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	return &Engine{
		store:       store,
		registry:    registry,
		log:         log,
		stepTimeout: stepTimeout,
	}
}

// Registry exposes the step handler registry, used by the create API to
// validate step types at save time.
func (e *Engine) Registry() *Registry {
	return e.registry
}
