package transfer

import "context"

type FindParams struct {
	User       string
	UnreadOnly bool
	Limit      int
	Offset     int
}

type Repository interface {
	// Save upserts by fileID: one transfer per import run.
	Save(ctx context.Context, t *Transfer) error
	GetByFileID(ctx context.Context, fileID string) (*Transfer, error)
	List(ctx context.Context, params *FindParams) ([]*Transfer, error)
}
