// Package app wires the pipeline's collaborators from configuration: the
// retrieval backends, the LLM client, the hypothesis service, and the
// re-ranker. Both binaries (the one-shot runner and the HTTP server)
// build the same App and construct a fresh scheduler per query from it —
// collaborators are shared across queries, query-scoped state is not.
package app

import (
	"context"
	"log/slog"

	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"

	arangoclient "veritas.app/relay/common/arangodb"
	"veritas.app/relay/common/llm"
	"veritas.app/relay/core/config"
	"veritas.app/relay/core/db"
	"veritas.app/relay/internal/executor"
	"veritas.app/relay/internal/hypothesis"
	"veritas.app/relay/internal/progress"
	"veritas.app/relay/internal/rerank"
	"veritas.app/relay/internal/retrieval"
	"veritas.app/relay/internal/retrieval/backends"
	"veritas.app/relay/internal/scheduler"
)

// App holds every long-lived collaborator. All of them are safe for
// concurrent use and carry no query-scoped state.
type App struct {
	Cfg        config.Config
	Engine     *retrieval.Engine
	LLM        llm.Client
	Hypothesis *hypothesis.Service
	Reranker   *rerank.Reranker
	Redis      *redis.Client
	Log        *slog.Logger

	closers []func()
}

// Build constructs an App from cfg. Every backend is optional: a backend
// whose configuration is absent, or whose connection fails, is logged and
// left out — the engine degrades per the hybrid-search contract rather
// than refusing to start.
func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}
	a := &App{Cfg: cfg, Log: log}

	var client llm.Client
	if cfg.LLM.APIKey != "" {
		c, err := llm.New(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLM.Timeout,
		})
		if err != nil {
			return nil, err
		}
		client = c
		a.LLM = c
	} else {
		log.Warn("no LLM API key configured, hypothesis and re-ranking disabled")
	}

	a.Engine = retrieval.New(
		a.vectorBackend(cfg, log),
		a.graphBackend(ctx, cfg, log),
		a.relationalBackend(ctx, cfg, log),
		nil,
		log,
	)

	if client != nil {
		svc, err := hypothesis.New(client, "")
		if err != nil {
			return nil, err
		}
		a.Hypothesis = svc

		if cfg.Scheduler.EnableReranking {
			a.Reranker = rerank.New(client, rerank.Config{})
			a.Engine.Reranker = a.Reranker
		}
	}

	if cfg.Redis.Enabled() {
		a.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = a.Redis.Close() })
	}

	return a, nil
}

// NewScheduler builds a query-scoped scheduler publishing to bus. The
// executor and scheduler are cheap to construct; the App's collaborators
// behind them are reused.
func (a *App) NewScheduler(bus *progress.Bus) *scheduler.Scheduler {
	ex := executor.New(a.Engine, bus)
	ex.Rerank = a.Cfg.Scheduler.EnableReranking && a.Reranker != nil
	ex.UseAgents = a.Cfg.Scheduler.UseAgents

	var hyp scheduler.HypothesisGenerator
	if a.Hypothesis != nil {
		hyp = a.Hypothesis
	}

	return scheduler.New(ex, bus, hyp, scheduler.Config{
		MaxWorkers:       a.Cfg.Scheduler.MaxWorkers,
		RetryFailed:      a.Cfg.Scheduler.RetryFailed,
		EnableHypothesis: a.Cfg.Scheduler.EnableHypothesis,
	}, a.Log)
}

// Close releases every connection the App owns.
func (a *App) Close() {
	for _, closeFn := range a.closers {
		closeFn()
	}
}

func (a *App) vectorBackend(cfg config.Config, log *slog.Logger) retrieval.Backend {
	if !cfg.Qdrant.Enabled() {
		return nil
	}
	if cfg.LLM.APIKey == "" {
		log.Warn("qdrant configured but no LLM API key for query embedding, vector backend disabled")
		return nil
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Qdrant.Host,
		Port:   cfg.Qdrant.Port,
		APIKey: cfg.Qdrant.APIKey,
		UseTLS: cfg.Qdrant.UseTLS,
	})
	if err != nil {
		log.Warn("qdrant unavailable, vector backend disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	embedder := llm.NewEmbedder(llm.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
	})

	return &backends.QdrantBackend{
		Client:     client,
		Collection: cfg.Qdrant.Collection,
		Embedder:   embedder,
	}
}

func (a *App) graphBackend(ctx context.Context, cfg config.Config, log *slog.Logger) retrieval.Backend {
	if !cfg.Arango.Enabled() {
		return nil
	}

	client, err := arangoclient.New(ctx, arangoclient.Config{
		URL:                cfg.Arango.URL,
		Username:           cfg.Arango.Username,
		Password:           cfg.Arango.Password,
		Database:           cfg.Arango.Database,
		DocumentCollection: cfg.Arango.DocumentCollection,
		EdgeCollection:     cfg.Arango.EdgeCollection,
	})
	if err != nil {
		log.Warn("arangodb unavailable, graph backend disabled", "error", err)
		return nil
	}
	if err := client.EnsureDatabase(ctx); err != nil {
		log.Warn("arangodb database unavailable, graph backend disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, func() { _ = client.Close() })

	return &backends.ArangoBackend{
		DB:                 client.Database(),
		DocumentCollection: cfg.Arango.DocumentCollection,
		EdgeCollection:     cfg.Arango.EdgeCollection,
	}
}

func (a *App) relationalBackend(ctx context.Context, cfg config.Config, log *slog.Logger) retrieval.Backend {
	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		log.Warn("postgres unavailable, relational backend disabled", "error", err)
		return nil
	}
	a.closers = append(a.closers, database.Close)

	return &backends.PostgresBackend{Pool: database.Pool()}
}
