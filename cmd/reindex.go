package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/ticket-webhook/internal/application"
	"github.com/psds-microservice/ticket-webhook/internal/searchindex"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Create the knowledge base data store and/or import documents from GCS",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

var reindexOpts struct {
	dataStoreID string
	displayName string
	gcsURIs     []string
	create      bool
	location    string
	timeout     time.Duration
}

func init() {
	f := reindexCmd.Flags()
	f.StringVar(&reindexOpts.dataStoreID, "data-store-id", "", "Discovery Engine data store id (required)")
	f.StringVar(&reindexOpts.displayName, "name", "", "display name for a new data store (defaults to the id)")
	f.StringSliceVar(&reindexOpts.gcsURIs, "gcs-uri", nil, "GCS object or wildcard to import, e.g. gs://bucket/docs/*.pdf")
	f.BoolVar(&reindexOpts.create, "create", false, "create the data store before importing")
	f.StringVar(&reindexOpts.location, "location", "", "data store location (defaults to DATA_STORE_LOCATION)")
	f.DurationVar(&reindexOpts.timeout, "timeout", 30*time.Minute, "overall deadline for the long-running operations")
	_ = reindexCmd.MarkFlagRequired("data-store-id")
}

func runReindex(cmd *cobra.Command, args []string) error {
	if !reindexOpts.create && len(reindexOpts.gcsURIs) == 0 {
		return errors.New("reindex: nothing to do, pass --create and/or --gcs-uri")
	}
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	location := reindexOpts.location
	if location == "" {
		location = cfg.DataStoreLocation
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), reindexOpts.timeout)
	defer cancel()

	client, err := searchindex.NewClient(ctx, cfg.Agent.ProjectID, location, log, application.GoogleOptions(cfg)...)
	if err != nil {
		return err
	}
	defer client.Close()

	if reindexOpts.create {
		name := reindexOpts.displayName
		if name == "" {
			name = reindexOpts.dataStoreID
		}
		op, err := client.CreateDataStore(ctx, reindexOpts.dataStoreID, name)
		if err != nil {
			return err
		}
		log.Info("reindex: data store ready", zap.String("operation", op))
	}
	if len(reindexOpts.gcsURIs) > 0 {
		op, err := client.ImportDocuments(ctx, reindexOpts.dataStoreID, reindexOpts.gcsURIs...)
		if err != nil {
			return err
		}
		log.Info("reindex: import finished", zap.String("operation", op))
	}
	return nil
}
