package llm

import (
	"context"
	"sync"

	"github.com/teilomillet/promptopt/catalog"
	"github.com/teilomillet/promptopt/utils"
)

// Router sends each request to the generator registered for its model's
// provider. Model names are resolved through the catalog; unknown names are
// routed explicitly to the catalog's default model.
type Router struct {
	catalog    *catalog.Catalog
	logger     utils.Logger
	mu         sync.RWMutex
	generators map[string]Generator
	missing    map[string]string
}

func NewRouter(models *catalog.Catalog, logger utils.Logger) *Router {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Router{
		catalog:    models,
		logger:     logger,
		generators: make(map[string]Generator),
		missing:    make(map[string]string),
	}
}

// Register serves provider with g.
func (r *Router) Register(provider string, g Generator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[provider] = g
	delete(r.missing, provider)
}

// MarkUnavailable records why a provider has no generator, for error messages.
func (r *Router) MarkUnavailable(provider, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.generators[provider]; !ok {
		r.missing[provider] = reason
	}
}

// Providers lists the providers with a registered generator.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.generators))
	for name := range r.generators {
		out = append(out, name)
	}
	return out
}

// Generate resolves req.Model and forwards the request with the provider's
// model identifier.
func (r *Router) Generate(ctx context.Context, req Request) (string, error) {
	spec, known := r.catalog.Resolve(req.Model)
	if !known {
		r.logger.Warn("Unknown model, routing to default", "model", req.Model, "default", spec.Name)
	}

	r.mu.RLock()
	g, ok := r.generators[spec.Provider]
	reason := r.missing[spec.Provider]
	r.mu.RUnlock()
	if !ok {
		if reason == "" {
			reason = "not configured"
		}
		return "", Unavailable(spec.Provider, reason)
	}

	req.Model = spec.RemoteName()
	return g.Generate(ctx, req)
}
