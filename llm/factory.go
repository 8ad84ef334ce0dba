package llm

import (
	"context"
	"net/http"

	"github.com/teilomillet/promptopt/catalog"
	"github.com/teilomillet/promptopt/config"
	"github.com/teilomillet/promptopt/providers"
	"github.com/teilomillet/promptopt/utils"
)

// NewRouterFromConfig registers a generator for every catalog provider that has
// an API key. Providers without a key stay unavailable rather than failing
// startup.
func NewRouterFromConfig(ctx context.Context, cfg *config.Config, models *catalog.Catalog, registry *providers.ProviderRegistry, logger utils.Logger) *Router {
	router := NewRouter(models, logger)
	if registry == nil {
		registry = providers.NewProviderRegistry()
	}
	httpClient := &http.Client{Timeout: cfg.GenerationTimeout}

	baseURLs := map[string]string{
		catalog.ProviderOpenAI:    cfg.OpenAIBaseURL,
		catalog.ProviderAnthropic: cfg.AnthropicBaseURL,
	}

	for provider := range models.ByProvider() {
		apiKey, ok := cfg.APIKey(provider)
		if !ok {
			router.MarkUnavailable(provider, "API key not configured")
			logger.Info("Provider disabled", "provider", provider, "reason", "no API key")
			continue
		}

		if provider == catalog.ProviderGoogle {
			g, err := NewGeminiGenerator(ctx, apiKey)
			if err != nil {
				router.MarkUnavailable(provider, err.Error())
				logger.Warn("Provider disabled", "provider", provider, "error", err)
				continue
			}
			router.Register(provider, g)
			continue
		}

		p, err := registry.Get(provider, apiKey, baseURLs[provider], nil)
		if err != nil {
			router.MarkUnavailable(provider, err.Error())
			logger.Warn("Provider disabled", "provider", provider, "error", err)
			continue
		}
		router.Register(provider, NewClient(p,
			WithHTTPClient(httpClient),
			WithRateLimit(cfg.LLMRatePerMinute),
			WithClientLogger(logger),
		))
	}
	return router
}
