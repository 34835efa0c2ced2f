package googlecloud

import (
	"time"
)

// ImportBatch summarizes one uploaded workbook.
type ImportBatch struct {
	ID            string    `datastore:"-" json:"id"` // Key Name
	FileName      string    `datastore:"file_name" json:"file_name"`
	Format        string    `datastore:"format" json:"format"`
	Strict        bool      `datastore:"strict" json:"strict"`
	TotalRows     int       `datastore:"total_rows" json:"total_rows"`
	ValidRows     int       `datastore:"valid_rows" json:"valid_rows"`
	InvalidRows   int       `datastore:"invalid_rows" json:"invalid_rows"`
	CommittedRows int       `datastore:"committed_rows" json:"committed_rows"`
	Committed     bool      `datastore:"committed" json:"committed"`
	CreatedAt     time.Time `datastore:"created_at" json:"created_at"`
}

// ImportIssue is the validation outcome of one rejected record.
type ImportIssue struct {
	ID       int64    `datastore:"-" json:"id"` // Key ID (Auto-generated int64)
	Record   int      `datastore:"record" json:"record"`
	Field    string   `datastore:"field" json:"field"`
	Messages []string `datastore:"messages,noindex" json:"messages"`

	// BatchID mirrors the ancestor key for JSON.
	BatchID string `datastore:"-" json:"batch_id"`
}
