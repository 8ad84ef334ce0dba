// Package tokens counts tokens with tiktoken encodings and prices them with the
// model catalog.
package tokens

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/teilomillet/promptopt/catalog"
	"github.com/teilomillet/promptopt/utils"
)

// fallbackWordFactor approximates tokens per whitespace-separated word.
const fallbackWordFactor = 1.3

// Encoder turns text into token ids. *tiktoken.Tiktoken satisfies it.
type Encoder interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
}

// EncodingLoader loads an encoding by name, e.g. "cl100k_base".
type EncodingLoader func(encoding string) (Encoder, error)

// TiktokenLoader loads encodings through tiktoken-go. The first load of an
// encoding may download its BPE ranks unless an offline loader is installed.
func TiktokenLoader(encoding string) (Encoder, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return enc, nil
}

type cacheEntry struct {
	once    sync.Once
	encoder Encoder
}

// Counter counts tokens per model. It is safe for concurrent use; encodings are
// loaded at most once per model name and never evicted.
type Counter struct {
	catalog  *catalog.Catalog
	load     EncodingLoader
	logger   utils.Logger
	encoders sync.Map // model name -> *cacheEntry
}

type Option func(*Counter)

// WithLoader replaces the tiktoken loader.
func WithLoader(load EncodingLoader) Option {
	return func(c *Counter) {
		c.load = load
	}
}

func WithLogger(logger utils.Logger) Option {
	return func(c *Counter) {
		c.logger = logger
	}
}

// NewCounter creates a Counter backed by the given catalog.
//
// Parameters:
//   - models: catalog used for encodings and pricing; nil selects catalog.Default()
//   - opts: optional loader and logger overrides
//
// Returns:
//   - Initialized Counter
func NewCounter(models *catalog.Catalog, opts ...Option) *Counter {
	if models == nil {
		models = catalog.Default()
	}
	c := &Counter{
		catalog: models,
		load:    TiktokenLoader,
		logger:  utils.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Catalog returns the catalog the counter prices against.
func (c *Counter) Catalog() *catalog.Catalog {
	return c.catalog
}

// CountTokens returns the number of tokens text encodes to under model's
// encoding. It never fails: when the encoding cannot be loaded or encoding
// panics, it falls back to a word-count estimate.
func (c *Counter) CountTokens(text, model string) int {
	if text == "" {
		return 0
	}
	enc := c.encoder(model)
	if enc == nil {
		return EstimateFromWords(text)
	}
	n, ok := c.encode(enc, text, model)
	if !ok {
		return EstimateFromWords(text)
	}
	return n
}

func (c *Counter) encode(enc Encoder, text, model string) (n int, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("Tokenizer panicked, using word estimate", "model", model, "panic", r)
			n, ok = 0, false
		}
	}()
	return len(enc.Encode(text, nil, nil)), true
}

func (c *Counter) encoder(model string) Encoder {
	key := strings.ToLower(strings.TrimSpace(model))
	v, _ := c.encoders.LoadOrStore(key, &cacheEntry{})
	entry := v.(*cacheEntry)
	entry.once.Do(func() {
		spec, known := c.catalog.Resolve(key)
		if !known {
			c.logger.Debug("Unknown model, using default model encoding", "model", model, "default", spec.Name)
		}
		enc, err := c.safeLoad(spec.Encoding)
		if err != nil {
			// Cached as a nil encoder: this model name stays on the fallback.
			c.logger.Warn("Failed to load encoding, using word estimate", "model", model, "encoding", spec.Encoding, "error", err)
			return
		}
		entry.encoder = enc
	})
	return entry.encoder
}

func (c *Counter) safeLoad(encoding string) (enc Encoder, err error) {
	defer func() {
		if r := recover(); r != nil {
			enc, err = nil, fmt.Errorf("encoding loader panicked: %v", r)
		}
	}()
	return c.load(encoding)
}

// EstimateFromWords is the word-count fallback: round(words * 1.3).
func EstimateFromWords(text string) int {
	return int(math.Round(float64(len(strings.Fields(text))) * fallbackWordFactor))
}
