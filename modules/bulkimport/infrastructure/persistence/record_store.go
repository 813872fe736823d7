package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence/models"
	"github.com/fieldline/importhub/pkg/composables"
)

const (
	documentFindQuery = `
		SELECT identifier, data, import_file_id, import_sequence_no, imported_at, created_at, updated_at
		FROM documents`

	documentInsertQuery = `
		INSERT INTO documents
			(identifier, data, import_file_id, import_sequence_no, imported_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	documentUpdateQuery = `
		UPDATE documents SET data = $1, updated_at = $2 WHERE identifier = $3`
)

// PgRecordStore is the primary record store backed by a JSONB documents table.
type PgRecordStore struct{}

func NewPgRecordStore() record.Store {
	return &PgRecordStore{}
}

func (s *PgRecordStore) FindByIdentifiers(ctx context.Context, ids []string) ([]*record.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.queryDocuments(ctx, documentFindQuery+" WHERE identifier = ANY($1)", ids)
}

func (s *PgRecordStore) FindByIdentifier(ctx context.Context, id string) (*record.Document, error) {
	docs, err := s.queryDocuments(ctx, documentFindQuery+" WHERE identifier = $1", id)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, record.ErrNotFound.WithMessage("document %s does not exist", id)
	}
	return docs[0], nil
}

func (s *PgRecordStore) Insert(ctx context.Context, doc *record.Document) (*record.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	row, err := toDBDocument(doc)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(
		ctx,
		documentInsertQuery,
		row.Identifier,
		row.Data,
		row.ImportFileID,
		row.ImportSequenceNo,
		row.ImportedAt,
		row.CreatedAt,
		row.UpdatedAt,
	); err != nil {
		return nil, errors.Wrapf(err, "failed to insert document %s", doc.Identifier)
	}
	return doc, nil
}

func (s *PgRecordStore) Update(ctx context.Context, id string, data record.Payload) (*record.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal document data")
	}
	tag, err := tx.Exec(ctx, documentUpdateQuery, payload, time.Now(), id)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to update document %s", id)
	}
	if tag.RowsAffected() == 0 {
		return nil, record.ErrNotFound.WithMessage("document %s does not exist", id)
	}
	return s.FindByIdentifier(ctx, id)
}

func (s *PgRecordStore) queryDocuments(ctx context.Context, query string, args ...any) ([]*record.Document, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var docs []*record.Document
	for rows.Next() {
		var m models.Document
		if err := rows.Scan(
			&m.Identifier,
			&m.Data,
			&m.ImportFileID,
			&m.ImportSequenceNo,
			&m.ImportedAt,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan document row")
		}
		doc, err := toDomainDocument(&m)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return docs, nil
}
