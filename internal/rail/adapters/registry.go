package adapters

import (
	"strings"

	"github.com/paygrid/disburse/internal/rail/domain"
)

type Registry struct {
	factories map[string]domain.ExecutorFactory
}

func NewRegistry(factories ...domain.ExecutorFactory) *Registry {
	registry := &Registry{factories: map[string]domain.ExecutorFactory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		provider := strings.ToLower(strings.TrimSpace(factory.Provider()))
		if provider == "" {
			continue
		}
		registry.factories[provider] = factory
	}
	return registry
}

func (r *Registry) ProviderExists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	return ok
}

func (r *Registry) NewExecutor(provider string, cfg domain.ExecutorConfig) (domain.Executor, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	factory, ok := r.factories[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return factory.NewExecutor(cfg)
}
