package container

import (
	"context"
	"fmt"

	historyfile "warpmine/adapters/history/file"
	historymemory "warpmine/adapters/history/memory"
	historypg "warpmine/adapters/history/postgres"
	"warpmine/adapters/knowledge"
	"warpmine/adapters/llm"
	"warpmine/domain/optimization"
	"warpmine/internal"
	"warpmine/internal/api"
	"warpmine/internal/assistant"
	"warpmine/internal/config"
	"warpmine/internal/errors"
	"warpmine/internal/exploration"
	"warpmine/internal/extraction"
	"warpmine/internal/migration"
	"warpmine/internal/optimize"
	"warpmine/ports"

	"go.uber.org/zap"
)

// Version is reported by /health
var Version = "dev"

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	// Engines. Nil when disabled by configuration.
	Extraction   *extraction.Simulator
	Exploration  *exploration.Simulator
	Optimization *optimize.Engine

	Knowledge ports.KnowledgeClient
	Assistant *assistant.Assistant
	History   ports.HistoryPort

	Server *api.Server
}

// New wires every component from cfg. ctx bounds database setup.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	c := &Container{Config: cfg, Logger: internal.OrNop(logger)}

	if err := c.initEngines(); err != nil {
		return nil, err
	}
	if err := c.initKnowledge(); err != nil {
		return nil, err
	}
	if err := c.initHistory(ctx); err != nil {
		return nil, err
	}
	c.initAssistant()

	c.Server = api.NewServer(api.Dependencies{
		Extraction:   c.Extraction,
		Exploration:  c.Exploration,
		Optimization: c.Optimization,
		Assistant:    c.Assistant,
		History:      c.History,
		Seed:         cfg.Engines.Seed,
		Version:      Version,
		Logger:       c.Logger,

		MaxConcurrentOptimizations: cfg.Optimization.MaxConcurrent,
	}, cfg.Server.GinMode)

	c.Logger.Info("container initialized",
		zap.Bool("extraction", c.Extraction != nil),
		zap.Bool("exploration", c.Exploration != nil),
		zap.Bool("optimization", c.Optimization != nil),
		zap.String("knowledge", cfg.Knowledge.Backend),
		zap.String("history", cfg.History.Backend))
	return c, nil
}

func (c *Container) initEngines() error {
	eng := c.Config.Engines

	// The optimizer scores candidates with the extraction simulator, so it is
	// built even when only optimization is enabled.
	var sim *extraction.Simulator
	if eng.ExtractionEnabled || eng.OptimizationEnabled {
		s, err := extraction.NewSimulator(extraction.DefaultRegistry(), eng.DefaultModel, c.Logger)
		if err != nil {
			return errors.ConfigInvalid(err.Error())
		}
		sim = s
	}
	if eng.ExtractionEnabled {
		c.Extraction = sim
	}
	if eng.ExplorationEnabled {
		c.Exploration = exploration.NewSimulator(c.Logger)
	}
	if eng.OptimizationEnabled {
		o := c.Config.Optimization
		base := optimization.Config{
			PopulationSize: o.PopulationSize,
			MaxIterations:  o.MaxIterations,
			Tolerance:      o.Tolerance,
			Patience:       o.Patience,
			MaxDuration:    o.MaxDuration,
			Workers:        o.Workers,
			Seed:           eng.Seed,
		}
		engine, err := optimize.NewEngine(sim, base, eng.DefaultAlgorithm, c.Logger)
		if err != nil {
			return errors.ConfigInvalid(err.Error())
		}
		c.Optimization = engine
	}
	return nil
}

func (c *Container) initKnowledge() error {
	k := c.Config.Knowledge
	switch k.Backend {
	case config.KnowledgeLLM:
		client, err := llm.NewClient(llm.Config{
			BaseURL:     k.BaseURL,
			APIKey:      k.APIKey,
			Model:       k.Model,
			MaxTokens:   k.MaxTokens,
			Temperature: k.Temperature,
			Timeout:     k.Timeout,
		})
		if err != nil {
			return errors.ConfigInvalid(err.Error())
		}
		c.Knowledge = llm.NewKnowledgeAdapter(client, k.Model, k.MaxTokens, c.Logger)
	default:
		local, err := knowledge.NewLocal()
		if err != nil {
			return errors.Wrap(err, "load knowledge base")
		}
		c.Knowledge = local
	}
	return nil
}

func (c *Container) initHistory(ctx context.Context) error {
	h := c.Config.History
	switch h.Backend {
	case config.HistoryFile:
		store, err := historyfile.Open(h.Path, h.MemoryTail, c.Logger)
		if err != nil {
			return errors.Wrap(err, "open history log")
		}
		c.History = store
	case config.HistoryPostgres:
		db, err := historypg.Connect(ctx, c.Config.Database.URL)
		if err != nil {
			return err
		}
		if err := migration.NewRunner().Run(ctx, db); err != nil {
			db.Close()
			return errors.DatabaseError("migrate history schema", err)
		}
		c.History = historypg.New(db)
	case config.HistoryMemory:
		c.History = historymemory.New()
	default:
		c.History = ports.NopHistory{}
	}
	return nil
}

// initAssistant passes only enabled engines; a typed nil pointer inside an
// interface would not read as disabled
func (c *Container) initAssistant() {
	opts := assistant.Options{
		Knowledge:        c.Knowledge,
		Threshold:        c.Config.Router.ConfidenceThreshold,
		KnowledgeTimeout: c.Config.Knowledge.Timeout,
		Seed:             c.Config.Engines.Seed,
		Logger:           c.Logger,
	}
	if c.Extraction != nil {
		opts.Extraction = c.Extraction
	}
	if c.Exploration != nil {
		opts.Exploration = c.Exploration
	}
	if c.Optimization != nil {
		opts.Optimization = c.Optimization
	}
	c.Assistant = assistant.New(opts)
}

// Shutdown releases the server hub and the history backend
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Server != nil {
		c.Server.Close()
	}
	if c.History != nil {
		if err := c.History.Close(); err != nil {
			return errors.Wrap(err, "close history")
		}
	}
	return nil
}
