// Package searchindex manages the Discovery Engine data store that backs the
// agent's knowledge base.
package searchindex

import (
	"context"
	"errors"
	"fmt"

	discoveryengine "cloud.google.com/go/discoveryengine/apiv1"
	"cloud.google.com/go/discoveryengine/apiv1/discoveryenginepb"
	"github.com/psds-microservice/ticket-webhook/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const (
	defaultCollection = "default_collection"
	defaultBranch     = "default_branch"
)

type Client struct {
	project  string
	location string
	stores   *discoveryengine.DataStoreClient
	docs     *discoveryengine.DocumentClient
	log      *zap.Logger
}

// NewClient opens the data store and document clients for a project and
// location. Non-global locations use the regional endpoint.
func NewClient(ctx context.Context, project, location string, log *zap.Logger, opts ...option.ClientOption) (*Client, error) {
	if project == "" {
		return nil, errors.New("searchindex: project id is required")
	}
	if location == "" {
		location = "global"
	}
	if log == nil {
		log = logger.Discard()
	}
	if ep := Endpoint(location); ep != "" {
		opts = append(opts, option.WithEndpoint(ep))
	}
	stores, err := discoveryengine.NewDataStoreClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("searchindex: data store client: %w", err)
	}
	docs, err := discoveryengine.NewDocumentClient(ctx, opts...)
	if err != nil {
		stores.Close()
		return nil, fmt.Errorf("searchindex: document client: %w", err)
	}
	return &Client{project: project, location: location, stores: stores, docs: docs, log: log}, nil
}

// Endpoint returns the regional API endpoint, or "" for the global default.
func Endpoint(location string) string {
	if location == "" || location == "global" {
		return ""
	}
	return location + "-discoveryengine.googleapis.com:443"
}

func CollectionPath(project, location string) string {
	return fmt.Sprintf("projects/%s/locations/%s/collections/%s", project, location, defaultCollection)
}

func BranchPath(project, location, dataStoreID string) string {
	return fmt.Sprintf("%s/dataStores/%s/branches/%s", CollectionPath(project, location), dataStoreID, defaultBranch)
}

func newDataStoreRequest(project, location, dataStoreID, displayName string) *discoveryenginepb.CreateDataStoreRequest {
	return &discoveryenginepb.CreateDataStoreRequest{
		Parent:      CollectionPath(project, location),
		DataStoreId: dataStoreID,
		DataStore: &discoveryenginepb.DataStore{
			DisplayName:      displayName,
			IndustryVertical: discoveryenginepb.IndustryVertical_GENERIC,
			SolutionTypes:    []discoveryenginepb.SolutionType{discoveryenginepb.SolutionType_SOLUTION_TYPE_CHAT},
			ContentConfig:    discoveryenginepb.DataStore_CONTENT_REQUIRED,
		},
	}
}

func newImportRequest(project, location, dataStoreID string, gcsURIs []string) *discoveryenginepb.ImportDocumentsRequest {
	return &discoveryenginepb.ImportDocumentsRequest{
		Parent: BranchPath(project, location, dataStoreID),
		Source: &discoveryenginepb.ImportDocumentsRequest_GcsSource{
			GcsSource: &discoveryenginepb.GcsSource{
				InputUris:  gcsURIs,
				DataSchema: "content",
			},
		},
		ReconciliationMode: discoveryenginepb.ImportDocumentsRequest_INCREMENTAL,
	}
}

// CreateDataStore creates an unstructured chat data store and waits for the
// long-running operation. It returns the operation name.
func (c *Client) CreateDataStore(ctx context.Context, dataStoreID, displayName string) (string, error) {
	op, err := c.stores.CreateDataStore(ctx, newDataStoreRequest(c.project, c.location, dataStoreID, displayName))
	if err != nil {
		return "", fmt.Errorf("searchindex: create data store %s: %w", dataStoreID, err)
	}
	c.log.Info("waiting for data store creation", zap.String("operation", op.Name()))
	ds, err := op.Wait(ctx)
	if err != nil {
		return op.Name(), fmt.Errorf("searchindex: create data store %s: %w", dataStoreID, err)
	}
	c.log.Info("data store created", zap.String("name", ds.GetName()), zap.String("display_name", ds.GetDisplayName()))
	return op.Name(), nil
}

// ImportDocuments incrementally imports unstructured documents from GCS
// (a single object or a wildcard pattern) and waits for completion.
func (c *Client) ImportDocuments(ctx context.Context, dataStoreID string, gcsURIs ...string) (string, error) {
	if len(gcsURIs) == 0 {
		return "", errors.New("searchindex: at least one gcs uri is required")
	}
	op, err := c.docs.ImportDocuments(ctx, newImportRequest(c.project, c.location, dataStoreID, gcsURIs))
	if err != nil {
		return "", fmt.Errorf("searchindex: import documents into %s: %w", dataStoreID, err)
	}
	c.log.Info("waiting for document import", zap.String("operation", op.Name()))
	resp, err := op.Wait(ctx)
	if err != nil {
		return op.Name(), fmt.Errorf("searchindex: import documents into %s: %w", dataStoreID, err)
	}
	for _, s := range resp.GetErrorSamples() {
		c.log.Warn("document import error", zap.Int32("code", s.GetCode()), zap.String("message", s.GetMessage()))
	}
	c.log.Info("documents imported", zap.String("data_store", dataStoreID), zap.Int("error_samples", len(resp.GetErrorSamples())))
	return op.Name(), nil
}

func (c *Client) Close() error {
	return errors.Join(c.stores.Close(), c.docs.Close())
}
