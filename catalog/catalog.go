// Package catalog is the explicit registry of supported models. It maps exact
// model names (and their declared aliases) to a provider, a tokenizer encoding and
// a per-1K-token price. Unknown names never match by prefix; callers fall back to
// the catalog's default model instead.
package catalog

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"

	// DefaultEncoding is the tiktoken encoding used when a model declares none.
	DefaultEncoding = "cl100k_base"

	DefaultModel = "gpt-4"
)

// Pricing is the USD price per 1000 tokens.
type Pricing struct {
	InputPer1K  float64 `yaml:"input" json:"input_cost_per_1k"`
	OutputPer1K float64 `yaml:"output" json:"output_cost_per_1k"`
}

// ModelSpec describes one supported model.
type ModelSpec struct {
	Name     string   `yaml:"name" json:"name"`
	Provider string   `yaml:"provider" json:"provider"`
	APIModel string   `yaml:"api_model,omitempty" json:"api_model,omitempty"`
	Encoding string   `yaml:"encoding,omitempty" json:"encoding"`
	Pricing  *Pricing `yaml:"pricing,omitempty" json:"pricing,omitempty"`
	Aliases  []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// RemoteName is the identifier sent to the provider API.
func (m ModelSpec) RemoteName() string {
	if m.APIModel != "" {
		return m.APIModel
	}
	return m.Name
}

// Catalog is safe for concurrent use.
type Catalog struct {
	mu           sync.RWMutex
	models       map[string]ModelSpec
	aliases      map[string]string
	defaultModel string
}

// New builds a catalog from specs. defaultModel must be one of them.
func New(defaultModel string, specs ...ModelSpec) (*Catalog, error) {
	c := &Catalog{
		models:  make(map[string]ModelSpec),
		aliases: make(map[string]string),
	}
	for _, spec := range specs {
		if err := c.Register(spec); err != nil {
			return nil, err
		}
	}
	if err := c.SetDefault(defaultModel); err != nil {
		return nil, err
	}
	return c, nil
}

// Default returns the catalog populated with the built-in model table.
func Default() *Catalog {
	c, err := New(DefaultModel, defaultSpecs()...)
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid built-in table: %v", err))
	}
	return c
}

func defaultSpecs() []ModelSpec {
	price := func(in, out float64) *Pricing { return &Pricing{InputPer1K: in, OutputPer1K: out} }
	return []ModelSpec{
		{Name: "gpt-4", Provider: ProviderOpenAI, Pricing: price(0.03, 0.06)},
		{Name: "gpt-4-turbo", Provider: ProviderOpenAI, Pricing: price(0.01, 0.03)},
		{Name: "gpt-3.5-turbo", Provider: ProviderOpenAI, Pricing: price(0.0015, 0.002)},
		{
			Name: "claude-3-opus", Provider: ProviderAnthropic, APIModel: "claude-3-opus-20240229",
			Pricing: price(0.015, 0.075), Aliases: []string{"claude-3-opus-20240229"},
		},
		{
			Name: "claude-3-sonnet", Provider: ProviderAnthropic, APIModel: "claude-3-sonnet-20240229",
			Pricing: price(0.003, 0.015), Aliases: []string{"claude-3-sonnet-20240229"},
		},
		{
			Name: "claude-3-haiku", Provider: ProviderAnthropic, APIModel: "claude-3-haiku-20240307",
			Pricing: price(0.00025, 0.00125), Aliases: []string{"claude-3-haiku-20240307"},
		},
		{Name: "gemini-pro", Provider: ProviderGoogle, Pricing: price(0.0005, 0.0015)},
		// Supported for generation but unpriced: costs use the default model's rate.
		{Name: "gemini-pro-vision", Provider: ProviderGoogle},
	}
}

// Register adds or replaces a model. The default model cannot be replaced by
// an unpriced spec.
func (c *Catalog) Register(spec ModelSpec) error {
	name := normalize(spec.Name)
	if name == "" {
		return fmt.Errorf("catalog: model name is required")
	}
	if spec.Provider == "" {
		return fmt.Errorf("catalog: model %q has no provider", spec.Name)
	}
	if spec.Pricing != nil && (spec.Pricing.InputPer1K < 0 || spec.Pricing.OutputPer1K < 0) {
		return fmt.Errorf("catalog: model %q has negative pricing", spec.Name)
	}
	spec.Name = name
	spec.Provider = strings.ToLower(spec.Provider)
	if spec.Encoding == "" {
		spec.Encoding = DefaultEncoding
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if name == c.defaultModel && spec.Pricing == nil {
		return fmt.Errorf("catalog: default model %q must have pricing", name)
	}
	c.models[name] = spec
	for _, alias := range spec.Aliases {
		c.aliases[normalize(alias)] = name
	}
	return nil
}

// SetDefault changes the fallback model.
func (c *Catalog) SetDefault(name string) error {
	name = normalize(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	spec, ok := c.models[name]
	if !ok {
		return fmt.Errorf("catalog: default model %q is not registered", name)
	}
	if spec.Pricing == nil {
		return fmt.Errorf("catalog: default model %q must have pricing", name)
	}
	c.defaultModel = name
	return nil
}

// Lookup finds a model by exact name or declared alias.
func (c *Catalog) Lookup(name string) (ModelSpec, bool) {
	name = normalize(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if spec, ok := c.models[name]; ok {
		return spec, true
	}
	if canonical, ok := c.aliases[name]; ok {
		spec, ok := c.models[canonical]
		return spec, ok
	}
	return ModelSpec{}, false
}

// Resolve returns the named model, or the default model when the name is unknown.
// The second result reports whether the name itself was recognised.
func (c *Catalog) Resolve(name string) (ModelSpec, bool) {
	if spec, ok := c.Lookup(name); ok {
		return spec, true
	}
	return c.Default(), false
}

// Default returns the default model's spec.
func (c *Catalog) Default() ModelSpec {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.models[c.defaultModel]
}

// Pricing returns the model's price, falling back to the default model's when the
// model is unknown or unpriced. It never fails.
func (c *Catalog) Pricing(name string) (Pricing, bool) {
	if spec, ok := c.Lookup(name); ok && spec.Pricing != nil {
		return *spec.Pricing, true
	}
	return *c.Default().Pricing, false
}

// Names returns the sorted canonical model names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PricedNames returns the sorted names of models that carry their own pricing.
func (c *Catalog) PricedNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for name, spec := range c.models {
		if spec.Pricing != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// ByProvider lists the models served by a provider.
func (c *Catalog) ByProvider() map[string][]string {
	out := make(map[string][]string)
	for _, name := range c.Names() {
		spec, _ := c.Lookup(name)
		out[spec.Provider] = append(out[spec.Provider], name)
	}
	return out
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
