// Package blob abstracts the byte store import files are uploaded to. The
// pipeline only ever reads whole objects by file id.
package blob

import (
	"context"

	"github.com/fieldline/importhub/pkg/serrors"
)

var ErrNotFound = serrors.NewError("BLOB_NOT_FOUND", "file not found in blob store", "")

type Store interface {
	Read(ctx context.Context, key string) ([]byte, error)
}
