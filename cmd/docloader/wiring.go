package main

import (
	"context"
	"fmt"

	"github.com/timmy/docloader/internal/config"
	"github.com/timmy/docloader/internal/credentials"
	"github.com/timmy/docloader/internal/fetcher"
	"github.com/timmy/docloader/internal/index"
	"github.com/timmy/docloader/internal/loader"
	"github.com/timmy/docloader/internal/logger"
	"github.com/timmy/docloader/internal/pipeline"
	"github.com/timmy/docloader/internal/repository"
	"github.com/timmy/docloader/internal/storage"
	"github.com/urfave/cli/v2"
)

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newIndexClient resolves credentials once for the whole run.
func newIndexClient(cfg *config.Config) (*index.Client, error) {
	creds, err := credentials.FromConfig(cfg.Index).Credentials()
	if err != nil {
		return nil, err
	}
	return index.NewClient(&index.Config{
		BaseURL:     cfg.Index.BaseURL(),
		IndexName:   cfg.Index.IndexName,
		Credentials: creds,
	}), nil
}

// openLedger returns nil when the database is disabled.
func openLedger(cfg *config.Config) (*repository.RunRepository, error) {
	if !cfg.Database.Enabled {
		return nil, nil
	}
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, err
	}
	return repository.NewRunRepository(db), nil
}

func newFetcher(ctx context.Context, cfg *config.Config) (*fetcher.Fetcher, error) {
	fetchCfg := &fetcher.Config{
		APIURL:   cfg.Fetch.APIURL,
		DataPath: cfg.Fetch.DataPath,
		Timeout:  cfg.Fetch.Timeout,
	}
	if !cfg.Storage.Enabled {
		return fetcher.New(fetchCfg, nil), nil
	}

	mirror, err := storage.NewArchiveMirrorFromConfig(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize archive mirror: %w", err)
	}
	if err := mirror.Prepare(ctx); err != nil {
		return nil, fmt.Errorf("failed to prepare archive mirror: %w", err)
	}
	logger.FromContext(ctx).WithField("bucket", cfg.Storage.Bucket).Info("Archive mirror enabled")
	return fetcher.New(fetchCfg, mirror), nil
}

func newLoader(cfg *config.Config) *loader.Loader {
	return loader.New(&loader.Config{
		DataPath:          cfg.Fetch.DataPath,
		IndexName:         cfg.Index.IndexName,
		InsertRate:        cfg.Index.BulkInsertRate,
		DocumentNameField: cfg.Index.DocumentNameFieldKey,
	})
}

// components holds what a pipeline command was able to build.
type components struct {
	orchestrator *pipeline.Orchestrator
	runs         *repository.RunRepository
}

type phases struct {
	fetch bool
	load  bool
}

func buildPipeline(ctx context.Context, cfg *config.Config, want phases) (*components, error) {
	runs, err := openLedger(cfg)
	if err != nil {
		return nil, err
	}

	opts := pipeline.Options{}
	if runs != nil {
		opts.Ledger = runs
	}

	if want.fetch {
		if opts.Fetcher, err = newFetcher(ctx, cfg); err != nil {
			return nil, err
		}
	}
	if want.load {
		client, err := newIndexClient(cfg)
		if err != nil {
			return nil, err
		}
		opts.Loader = newLoader(cfg)
		opts.Submitter = client
	}

	return &components{
		orchestrator: pipeline.New(cfg.DocumentTypes, opts),
		runs:         runs,
	}, nil
}
