package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/timmy/docloader/internal/domain"
	"github.com/timmy/docloader/internal/logger"
	"github.com/urfave/cli/v2"
)

func main() {
	app := newApp()
	if err := app.Run(os.Args); err != nil {
		reportFailure(logger.GetDefault(), err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "docloader",
		Usage: "Fetch open-data document archives and bulk-load them into a search index",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (defaults to ./configs/config.yaml or ./config.yaml)",
				EnvVars: []string{"CONFIG_PATH"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (text, json)",
				EnvVars: []string{"LOG_FORMAT"},
				Value:   "text",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "fetch",
				Usage:  "Download and extract every configured archive, replacing each document type's folder",
				Action: fetchCommand,
			},
			{
				Name:   "load",
				Usage:  "Bulk-load extracted documents into the index",
				Action: loadCommand,
			},
			{
				Name:   "check",
				Usage:  "Print cluster information from the index endpoint",
				Action: checkCommand,
			},
			{
				Name:   "info",
				Usage:  "Show indexed document counts, index size and local data folders",
				Action: infoCommand,
			},
			{
				Name:   "create-index",
				Usage:  "Create the index with configured settings and mappings",
				Action: createIndexCommand,
			},
			{
				Name:   "remove-index",
				Usage:  "Clear the cache of an index and delete it",
				Action: removeIndexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "index",
						Usage: "Index to remove (defaults to the configured index)",
					},
				},
			},
			{
				Name:   "reset-query-index",
				Usage:  "Drop and recreate the index that stores logged search queries",
				Action: resetQueryIndexCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "index",
						Usage: "Query index name",
						Value: "queries",
					},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP status and trigger API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port (defaults to server.port)",
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	level := strings.ToLower(c.String("log-level"))
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", level)
	}

	envCfg := logger.LoadFromEnv()
	envCfg.Level = level
	envCfg.Format = c.String("log-format")
	if c.App.Writer != nil && c.App.Writer != os.Stdout {
		envCfg.Output = c.App.Writer
	}

	logger.SetDefaultLogger(logger.NewFromEnv(envCfg))
	return nil
}

// reportFailure logs a fatal run error. Remote failures carry the response
// status, body and target URL.
func reportFailure(log *logger.Logger, err error) {
	var transportErr *domain.TransportError
	if errors.As(err, &transportErr) {
		log.WithFields(logger.Fields{
			logger.FieldStatus: transportErr.StatusCode,
			logger.FieldURL:    transportErr.URL,
			"body":             transportErr.Body,
		}).WithError(err).Error("Remote call failed")
		return
	}

	var malformed *domain.MalformedDocumentError
	if errors.As(err, &malformed) {
		log.WithFields(logger.Fields{
			logger.FieldDocumentType: malformed.DocumentType,
			"file":                   malformed.File,
		}).WithError(err).Error("Malformed document")
		return
	}

	var extractErr *domain.ExtractionError
	if errors.As(err, &extractErr) {
		log.WithFields(logger.Fields{
			logger.FieldDocumentType: extractErr.DocumentType,
			logger.FieldLink:         extractErr.Link,
		}).WithError(err).Error("Archive extraction failed")
		return
	}

	log.WithError(err).Error("Command failed")
}
