package record

import (
	"context"
	"time"

	"github.com/fieldline/importhub/pkg/serrors"
)

var ErrNotFound = serrors.NewError("RECORD_NOT_FOUND", "record not found in primary store", "")

// Provenance records which import run produced a document.
type Provenance struct {
	FileID     string
	SequenceNo int
	ImportedAt time.Time
}

// Document is one stored record of the primary store.
type Document struct {
	Identifier string
	Data       Payload
	Provenance *Provenance
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store is the primary record store the pipeline reads for conflict checks
// and writes during commit. Keyed by a unique string identifier.
type Store interface {
	// FindByIdentifiers returns the subset of ids that exist, as documents.
	FindByIdentifiers(ctx context.Context, ids []string) ([]*Document, error)
	// FindByIdentifier returns ErrNotFound when the id does not exist.
	FindByIdentifier(ctx context.Context, id string) (*Document, error)
	Insert(ctx context.Context, doc *Document) (*Document, error)
	Update(ctx context.Context, id string, data Payload) (*Document, error)
}
