package providers

import "strings"

// Public endpoints of providers that speak the OpenAI chat completions format.
const (
	groqBaseURL     = "https://api.groq.com/openai"
	mistralBaseURL  = "https://api.mistral.ai"
	deepSeekBaseURL = "https://api.deepseek.com"
)

// compatibleProvider reuses the OpenAI wire format under another name and
// default endpoint.
type compatibleProvider struct {
	*OpenAIProvider
	name string
}

func (p *compatibleProvider) Name() string {
	return p.name
}

func newCompatible(name, defaultBaseURL string) ProviderConstructor {
	return func(apiKey, baseURL string, extraHeaders map[string]string) Provider {
		if baseURL == "" {
			baseURL = defaultBaseURL
		}
		openai := NewOpenAIProvider(apiKey, strings.TrimSuffix(baseURL, "/"), extraHeaders).(*OpenAIProvider)
		return &compatibleProvider{OpenAIProvider: openai, name: name}
	}
}

var (
	NewGroqProvider     = newCompatible("groq", groqBaseURL)
	NewMistralProvider  = newCompatible("mistral", mistralBaseURL)
	NewDeepSeekProvider = newCompatible("deepseek", deepSeekBaseURL)
)
