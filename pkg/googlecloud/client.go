package googlecloud

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/datastore"
	"github.com/rs/zerolog"
)

// Client wraps the Google Cloud Datastore client to provide the import audit operations.
type Client struct {
	ds  *datastore.Client
	log zerolog.Logger
}

// NewClient creates a new Google Cloud Datastore client.
// The official client picks up DATASTORE_EMULATOR_HOST on its own; it is logged for visibility.
func NewClient(ctx context.Context, projectID string, log zerolog.Logger) (*Client, error) {
	if emulatorHost := os.Getenv("DATASTORE_EMULATOR_HOST"); emulatorHost != "" {
		log.Info().Str("emulator", emulatorHost).Msg("initializing datastore client against emulator")
	}

	ds, err := datastore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create datastore client: %w", err)
	}

	return &Client{ds: ds, log: log}, nil
}

// Close closes the underlying datastore client.
func (c *Client) Close() error {
	return c.ds.Close()
}
