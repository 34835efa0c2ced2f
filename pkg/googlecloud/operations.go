package googlecloud

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/datastore"
	"google.golang.org/api/iterator"
)

const (
	KindImportBatch = "ImportBatch"
	KindImportIssue = "ImportIssue"

	// maxBatchEntities is the Datastore limit for one multi-entity call.
	maxBatchEntities = 500
)

// RecordImport stores the batch and its issues; issues are children of the batch key.
func (c *Client) RecordImport(ctx context.Context, batch *ImportBatch, issues []ImportIssue) error {
	if batch.ID == "" {
		return ErrInvalidKey
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}

	parentKey := datastore.NameKey(KindImportBatch, batch.ID, nil)
	err := WithRetry(ctx, DefaultRetryConfig(), func() error {
		_, err := c.ds.Put(ctx, parentKey, batch)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to store import batch %s: %w", batch.ID, err)
	}

	for _, chunk := range chunkIssues(issues, maxBatchEntities) {
		keys := make([]*datastore.Key, len(chunk))
		for i := range chunk {
			// IncompleteKey will auto-generate an int64 ID
			keys[i] = datastore.IncompleteKey(KindImportIssue, parentKey)
		}
		err := WithRetry(ctx, DefaultRetryConfig(), func() error {
			newKeys, err := c.ds.PutMulti(ctx, keys, chunk)
			if err != nil {
				return err
			}
			for i, key := range newKeys {
				chunk[i].ID = key.ID
				chunk[i].BatchID = batch.ID
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to store issues of import %s: %w", batch.ID, err)
		}
	}

	c.log.Debug().Str("batch", batch.ID).Int("issues", len(issues)).Msg("recorded import")
	return nil
}

func chunkIssues(issues []ImportIssue, size int) [][]ImportIssue {
	var chunks [][]ImportIssue
	for start := 0; start < len(issues); start += size {
		end := start + size
		if end > len(issues) {
			end = len(issues)
		}
		chunks = append(chunks, issues[start:end])
	}
	return chunks
}

// GetImportBatch retrieves a batch by ID.
func (c *Client) GetImportBatch(ctx context.Context, id string) (*ImportBatch, error) {
	key := datastore.NameKey(KindImportBatch, id, nil)
	var batch ImportBatch
	if err := c.ds.Get(ctx, key, &batch); err != nil {
		return nil, WrapDatastoreError(err)
	}
	batch.ID = id
	return &batch, nil
}

// MarkCommitted records how many rows of the batch reached the database.
func (c *Client) MarkCommitted(ctx context.Context, id string, rows int) error {
	key := datastore.NameKey(KindImportBatch, id, nil)
	_, err := c.ds.RunInTransaction(ctx, func(tx *datastore.Transaction) error {
		var batch ImportBatch
		if err := tx.Get(key, &batch); err != nil {
			return WrapDatastoreError(err)
		}
		batch.Committed = true
		batch.CommittedRows = rows
		_, err := tx.Put(key, &batch)
		return err
	})
	return err
}

// IssuePage holds one page of issues with a cursor for the next page.
type IssuePage struct {
	Issues     []ImportIssue `json:"issues"`
	NextCursor string        `json:"next_cursor,omitempty"`
	HasMore    bool          `json:"has_more"`
}

// ListIssues pages through the issues of a batch in record order with an
// ancestor query. A pageSize of zero returns every issue.
func (c *Client) ListIssues(ctx context.Context, batchID string, pageSize int, cursorStr string) (*IssuePage, error) {
	if _, err := c.GetImportBatch(ctx, batchID); err != nil {
		return nil, err
	}

	parentKey := datastore.NameKey(KindImportBatch, batchID, nil)
	query := datastore.NewQuery(KindImportIssue).Ancestor(parentKey).Order("record")
	if pageSize > 0 {
		query = query.Limit(pageSize)
	}
	if cursorStr != "" {
		cursor, err := datastore.DecodeCursor(cursorStr)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		query = query.Start(cursor)
	}

	page := &IssuePage{Issues: []ImportIssue{}}
	it := c.ds.Run(ctx, query)
	for {
		var issue ImportIssue
		key, err := it.Next(&issue)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		issue.ID = key.ID
		issue.BatchID = batchID
		page.Issues = append(page.Issues, issue)
	}

	if pageSize > 0 && len(page.Issues) == pageSize {
		cursor, err := it.Cursor()
		if err != nil {
			return nil, err
		}
		page.NextCursor = cursor.String()
		page.HasMore = true
	}
	return page, nil
}

// DeleteImport removes a batch together with its issues, found with a keys-only query.
func (c *Client) DeleteImport(ctx context.Context, batchID string) error {
	if _, err := c.GetImportBatch(ctx, batchID); err != nil {
		return err
	}
	parentKey := datastore.NameKey(KindImportBatch, batchID, nil)
	keys, err := c.ds.GetAll(ctx, datastore.NewQuery(KindImportIssue).Ancestor(parentKey).KeysOnly(), nil)
	if err != nil {
		return err
	}
	for start := 0; start < len(keys); start += maxBatchEntities {
		end := start + maxBatchEntities
		if end > len(keys) {
			end = len(keys)
		}
		if err := c.ds.DeleteMulti(ctx, keys[start:end]); err != nil {
			return err
		}
	}
	if err := c.ds.Delete(ctx, parentKey); err != nil {
		return err
	}
	c.log.Debug().Str("batch", batchID).Int("issues", len(keys)).Msg("deleted import")
	return nil
}
