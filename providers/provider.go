// Package providers adapts chat-completion HTTP APIs to a single request and
// response shape. Each provider knows its endpoint, auth headers and body
// format; transport and error mapping live in the llm package.
package providers

import "github.com/teilomillet/promptopt/utils"

// Provider defines the interface every HTTP-backed LLM provider implements.
type Provider interface {
	Name() string
	Endpoint() string
	Headers() map[string]string
	SetLogger(logger utils.Logger)

	PrepareRequest(req *Request) ([]byte, error)
	ParseResponse(body []byte) (string, error)
}

// ProviderConstructor creates a provider. An empty baseURL selects the
// provider's public endpoint.
type ProviderConstructor func(apiKey, baseURL string, extraHeaders map[string]string) Provider

func mergeHeaders(base, extra map[string]string) map[string]string {
	for k, v := range extra {
		base[k] = v
	}
	return base
}
