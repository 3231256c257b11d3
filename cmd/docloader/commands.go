package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/timmy/docloader/internal/api"
	"github.com/timmy/docloader/internal/api/handler"
	"github.com/timmy/docloader/internal/index"
	"github.com/timmy/docloader/internal/logger"
	"github.com/timmy/docloader/internal/pipeline"
	"github.com/urfave/cli/v2"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
}

func fetchCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateFetch(); err != nil {
		return err
	}

	comp, err := buildPipeline(ctx, cfg, phases{fetch: true})
	if err != nil {
		return err
	}

	summaries, err := comp.orchestrator.FetchAll(ctx)
	if err != nil {
		return err
	}

	for _, s := range summaries {
		fmt.Fprintf(c.App.Writer, "%-24s %3d links %8s files\n", s.DocumentType, s.Links, humanize.Comma(int64(s.Files)))
	}
	return nil
}

func loadCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLoad(); err != nil {
		return err
	}

	comp, err := buildPipeline(ctx, cfg, phases{load: true})
	if err != nil {
		return err
	}

	summaries, err := comp.orchestrator.LoadAll(ctx)
	if err != nil {
		return err
	}

	for _, s := range summaries {
		if s.Skipped {
			fmt.Fprintf(c.App.Writer, "%-24s skipped\n", s.DocumentType)
			continue
		}
		line := fmt.Sprintf("%-24s %8s documents in %d batches", s.DocumentType, humanize.Comma(int64(s.Documents)), s.Batches)
		if s.Truncated {
			line += " (hard limit reached)"
		}
		if s.SkippedEntries > 0 {
			line += fmt.Sprintf(" (%d nested entries not loaded)", s.SkippedEntries)
		}
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func checkCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newIndexClient(cfg)
	if err != nil {
		return err
	}

	info, err := client.ClusterInfo(c.Context)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(out))
	return nil
}

func infoCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLoad(); err != nil {
		return err
	}
	client, err := newIndexClient(cfg)
	if err != nil {
		return err
	}

	counts, err := client.CountByType(c.Context)
	if err != nil {
		return err
	}
	size, err := client.StoreSize(c.Context)
	if err != nil {
		return err
	}

	w := c.App.Writer
	fmt.Fprintf(w, "Index %s (%s)\n", cfg.Index.IndexName, humanize.Bytes(uint64(size)))
	for _, tc := range counts {
		fmt.Fprintf(w, "  %-24s %12s documents\n", tc.Type, humanize.Comma(tc.Count))
	}

	folders, err := pipeline.Inventory(cfg.Fetch.DataPath, cfg.DocumentTypes)
	if err != nil {
		return err
	}

	var total int64
	fmt.Fprintf(w, "Data folder %s\n", cfg.Fetch.DataPath)
	for _, f := range folders {
		if f.Missing {
			fmt.Fprintf(w, "  %-24s not fetched\n", f.DocumentType)
			continue
		}
		total += f.Bytes
		fmt.Fprintf(w, "  %-24s %12s files %10s\n", f.DocumentType, humanize.Comma(int64(f.Files)), humanize.Bytes(uint64(f.Bytes)))
	}
	fmt.Fprintf(w, "  %-24s %23s\n", "total", humanize.Bytes(uint64(total)))
	return nil
}

func createIndexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateLoad(); err != nil {
		return err
	}
	client, err := newIndexClient(cfg)
	if err != nil {
		return err
	}

	mappings := make(map[string]interface{})
	for _, dt := range cfg.DocumentTypes {
		if len(dt.Mappings) > 0 {
			mappings[dt.Name] = dt.Mappings
		}
	}

	if err := client.CreateIndex(c.Context, cfg.Index.IndexSettings, mappings); err != nil {
		return err
	}
	logger.GetDefault().WithField("index", cfg.Index.IndexName).Info("Index created")
	return nil
}

func removeIndexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newIndexClient(cfg)
	if err != nil {
		return err
	}

	name := c.String("index")
	if name == "" {
		name = cfg.Index.IndexName
	}
	if err := client.RemoveIndex(c.Context, name); err != nil {
		return err
	}
	logger.GetDefault().WithField("index", name).Info("Index removed")
	return nil
}

func resetQueryIndexCommand(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	client, err := newIndexClient(cfg)
	if err != nil {
		return err
	}

	name := c.String("index")
	if err := client.ResetIndex(c.Context, name, index.QueryIndexMappings()); err != nil {
		return err
	}
	logger.GetDefault().WithField("index", name).Info("Query index reset")
	return nil
}

func serveCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := cfg.ValidateFetch(); err != nil {
		return err
	}
	if err := cfg.ValidateLoad(); err != nil {
		return err
	}

	comp, err := buildPipeline(ctx, cfg, phases{fetch: true, load: true})
	if err != nil {
		return err
	}

	// A nil repository must not become a non-nil interface.
	var runs handler.RunStore
	if comp.runs != nil {
		runs = comp.runs
	}

	port := cfg.Server.Port
	if c.IsSet("port") {
		port = c.Int("port")
	}

	log := logger.GetDefault()
	router := api.SetupRouter(comp.orchestrator, runs, log, cfg.Server.Mode)
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.WithFields(logger.Fields{
			"port": port,
			"mode": cfg.Server.Mode,
		}).Info("Starting API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited")
	return nil
}
