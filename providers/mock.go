package providers

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/teilomillet/promptopt/utils"
)

// MockProvider implements the Provider interface for testing purposes.
// Responses are served from a queue; the request body is ignored.
type MockProvider struct {
	mu            sync.Mutex
	endpoint      string
	extraHeaders  map[string]string
	responseText  string
	err           error
	responses     []string
	currentIndex  int
	loopResponses bool
	requests      []Request
}

// NewMockProvider creates a new mock provider instance for testing.
func NewMockProvider(_, baseURL string, extraHeaders map[string]string) Provider {
	return &MockProvider{
		endpoint:     baseURL,
		extraHeaders: mergeHeaders(make(map[string]string), extraHeaders),
		responseText: "This is a mock response",
	}
}

// SetMockResponse configures the default response text
func (p *MockProvider) SetMockResponse(response string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responseText = response
}

// SetMockError makes ParseResponse fail with err. A nil err clears it.
func (p *MockProvider) SetMockError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetResponses configures a list of responses to be returned in sequence
func (p *MockProvider) SetResponses(responses []string, loop bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responses = responses
	p.currentIndex = 0
	p.loopResponses = loop
}

// Requests returns every request prepared so far.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Request(nil), p.requests...)
}

func (p *MockProvider) SetLogger(utils.Logger) {}
func (p *MockProvider) Name() string          { return "mock" }
func (p *MockProvider) Endpoint() string      { return p.endpoint }

func (p *MockProvider) Headers() map[string]string {
	return mergeHeaders(map[string]string{"Content-Type": "application/json"}, p.extraHeaders)
}

func (p *MockProvider) PrepareRequest(req *Request) ([]byte, error) {
	p.mu.Lock()
	p.requests = append(p.requests, *req)
	p.mu.Unlock()
	return json.Marshal(req)
}

var errMockExhausted = errors.New("mock responses exhausted")

func (p *MockProvider) ParseResponse([]byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	if len(p.responses) == 0 {
		return p.responseText, nil
	}
	if p.currentIndex >= len(p.responses) {
		if !p.loopResponses {
			return "", errMockExhausted
		}
		p.currentIndex = 0
	}
	response := p.responses[p.currentIndex]
	p.currentIndex++
	return response, nil
}
