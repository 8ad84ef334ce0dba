package cli

import (
	"context"
	"fmt"

	"github.com/teilomillet/promptopt/catalog"
	"github.com/teilomillet/promptopt/config"
	"github.com/teilomillet/promptopt/llm"
	"github.com/teilomillet/promptopt/optimizer"
	"github.com/teilomillet/promptopt/providers"
	"github.com/teilomillet/promptopt/quality"
	"github.com/teilomillet/promptopt/store"
	"github.com/teilomillet/promptopt/tokens"
	"github.com/teilomillet/promptopt/utils"
)

// Swapped in tests to stay offline.
var (
	encodingLoader tokens.EncodingLoader = tokens.TiktokenLoader
	newGenerator                         = func(ctx context.Context, cfg *config.Config, models *catalog.Catalog, logger utils.Logger) llm.Generator {
		return llm.NewRouterFromConfig(ctx, cfg, models, providers.NewProviderRegistry(), logger)
	}
)

// loadCatalog returns the built-in catalog merged with cfg.PricingFile.
func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	models := catalog.Default()
	if cfg.PricingFile != "" {
		if err := models.LoadFile(cfg.PricingFile); err != nil {
			return nil, err
		}
	}
	if err := models.SetDefault(cfg.DefaultModel); err != nil {
		return nil, err
	}
	return models, nil
}

func newCounter(cfg *config.Config, models *catalog.Catalog) *tokens.Counter {
	return tokens.NewCounter(models,
		tokens.WithLoader(encodingLoader),
		tokens.WithLogger(cfg.GetLogger()),
	)
}

// engine is the optimizer and everything it depends on.
type engine struct {
	cfg     *config.Config
	logger  utils.Logger
	models  *catalog.Catalog
	counter *tokens.Counter
	store   *store.Store
	service *optimizer.Service
}

func newEngine(ctx context.Context, cfg *config.Config, dbPath string) (*engine, error) {
	logger := cfg.GetLogger()
	models, err := loadCatalog(cfg)
	if err != nil {
		return nil, err
	}
	counter := newCounter(cfg, models)
	gen := newGenerator(ctx, cfg, models, logger)

	judgeModel := cfg.JudgeModel
	if judgeModel == "" {
		judgeModel = cfg.DefaultModel
	}
	assessor := quality.NewAssessor(quality.NewLLMJudge(gen, judgeModel, cfg.JudgeTimeout), logger)

	st, err := store.Open(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	svc := optimizer.NewService(st, counter, gen, assessor, cfg.DefaultModel,
		optimizer.WithLogger(logger),
		optimizer.WithMaxPromptLength(cfg.MaxPromptLength),
		optimizer.WithDefaultParams(cfg.DefaultReductionTarget, cfg.DefaultQualityThreshold),
	)
	return &engine{
		cfg:     cfg,
		logger:  logger,
		models:  models,
		counter: counter,
		store:   st,
		service: svc,
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}
