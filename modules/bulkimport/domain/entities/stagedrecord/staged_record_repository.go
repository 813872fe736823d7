package stagedrecord

import "context"

type FindParams struct {
	FileID      string
	Statuses    []Status
	SequenceNos []int
	Limit       int
	Offset      int
}

type Repository interface {
	// BulkCreate inserts all records in one batch. Used at ingestion.
	BulkCreate(ctx context.Context, records []*StagedRecord) error
	// DeleteByFileID clears the staging area before a re-run.
	DeleteByFileID(ctx context.Context, fileID string) error
	GetByFileID(ctx context.Context, params *FindParams) ([]*StagedRecord, error)
	Update(ctx context.Context, rec *StagedRecord) error
	// UpdateMany persists status changes for a whole batch.
	UpdateMany(ctx context.Context, records []*StagedRecord) error
	// Counts recomputes the aggregate counts from the staging store. They are
	// never incremented ad hoc, to avoid drift under partial failure.
	Counts(ctx context.Context, fileID string) (Counts, error)
}

// Counts aggregates staged record states for one import run.
type Counts struct {
	Total     int
	Pending   int
	Valid     int
	Duplicate int
	Conflict  int
	Error     int
	Created   int
	Updated   int
}
