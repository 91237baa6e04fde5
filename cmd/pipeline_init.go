package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/enrich"
	"github.com/sells-group/leadscout/internal/fetcher"
	"github.com/sells-group/leadscout/internal/queue"
	"github.com/sells-group/leadscout/internal/store"
)

// env bundles the wired pipeline components for a command invocation.
type env struct {
	Store     store.Store
	Queue     *queue.Queue
	Processor *enrich.Processor
	Runner    *enrich.Runner
}

func (e *env) Close() {
	e.Store.Close() //nolint:errcheck
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "leadscout.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initPipeline opens the store, runs migrations, and wires queue, processor,
// and batch runner from config.
func initPipeline(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}

	client := fetcher.New(fetcher.Options{
		UserAgent:    cfg.Fetch.UserAgent,
		PerHostRPS:   cfg.Fetch.PerHostRPS,
		PerHostBurst: cfg.Fetch.PerHostBurst,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
	})

	validator := enrich.NewValidator(client, enrich.ValidatorOptions{
		Timeout:  time.Duration(cfg.Validator.TimeoutSecs) * time.Second,
		SlowLoad: time.Duration(cfg.Validator.SlowLoadMs) * time.Millisecond,
	})
	emails := enrich.NewEmailExtractor(client, enrich.EmailExtractorOptions{
		MaxPages:      cfg.Email.MaxPages,
		MaxDepth:      cfg.Email.MaxDepth,
		Timeout:       time.Duration(cfg.Email.TimeoutSecs) * time.Second,
		RespectRobots: cfg.Email.RespectRobots,
		BotName:       cfg.Email.BotName,
	})
	socials := enrich.NewSocialScraper(client, time.Duration(cfg.Social.TimeoutSecs)*time.Second)

	q := queue.New(st)
	processor := enrich.NewProcessor(st, validator, emails, socials)
	runner := enrich.NewRunner(q, processor,
		cfg.Worker.BatchSize,
		time.Duration(cfg.Worker.BudgetSecs)*time.Second)

	return &env{Store: st, Queue: q, Processor: processor, Runner: runner}, nil
}
