package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence/models"
	"github.com/fieldline/importhub/pkg/composables"
)

var ErrTransferNotFound = fmt.Errorf("transfer not found")

const (
	transferFindQuery = `
		SELECT file_id, file_name, user_name, status,
			valid_count, duplicate_count, conflict_count, error_count, created_count, updated_count,
			message, is_read, created_at, updated_at
		FROM import_transfers`

	transferUpsertQuery = `
		INSERT INTO import_transfers
			(file_id, file_name, user_name, status,
			 valid_count, duplicate_count, conflict_count, error_count, created_count, updated_count,
			 message, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (file_id) DO UPDATE SET
			file_name = EXCLUDED.file_name,
			user_name = EXCLUDED.user_name,
			status = EXCLUDED.status,
			valid_count = EXCLUDED.valid_count,
			duplicate_count = EXCLUDED.duplicate_count,
			conflict_count = EXCLUDED.conflict_count,
			error_count = EXCLUDED.error_count,
			created_count = EXCLUDED.created_count,
			updated_count = EXCLUDED.updated_count,
			message = EXCLUDED.message,
			is_read = EXCLUDED.is_read,
			updated_at = EXCLUDED.updated_at`
)

type TransferRepository struct{}

func NewTransferRepository() transfer.Repository {
	return &TransferRepository{}
}

func (r *TransferRepository) Save(ctx context.Context, t *transfer.Transfer) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	row := toDBTransfer(t)
	_, err = tx.Exec(
		ctx,
		transferUpsertQuery,
		row.FileID,
		row.FileName,
		row.UserName,
		row.Status,
		row.ValidCount,
		row.DuplicateCount,
		row.ConflictCount,
		row.ErrorCount,
		row.CreatedCount,
		row.UpdatedCount,
		row.Message,
		row.IsRead,
		row.CreatedAt,
		row.UpdatedAt,
	)
	return errors.Wrap(err, "failed to save transfer")
}

func (r *TransferRepository) GetByFileID(ctx context.Context, fileID string) (*transfer.Transfer, error) {
	transfers, err := r.queryTransfers(ctx, transferFindQuery+" WHERE file_id = $1", fileID)
	if err != nil {
		return nil, err
	}
	if len(transfers) == 0 {
		return nil, ErrTransferNotFound
	}
	return transfers[0], nil
}

func (r *TransferRepository) List(ctx context.Context, params *transfer.FindParams) ([]*transfer.Transfer, error) {
	where := []string{"1 = 1"}
	var args []any

	if params.User != "" {
		args = append(args, params.User)
		where = append(where, fmt.Sprintf("user_name = $%d", len(args)))
	}
	if params.UnreadOnly {
		where = append(where, "NOT is_read")
	}

	query := transferFindQuery + " WHERE " + strings.Join(where, " AND ") + " ORDER BY updated_at DESC"
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", params.Offset)
	}
	return r.queryTransfers(ctx, query, args...)
}

func (r *TransferRepository) queryTransfers(ctx context.Context, query string, args ...any) ([]*transfer.Transfer, error) {
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

	var transfers []*transfer.Transfer
	for rows.Next() {
		var m models.Transfer
		if err := rows.Scan(
			&m.FileID,
			&m.FileName,
			&m.UserName,
			&m.Status,
			&m.ValidCount,
			&m.DuplicateCount,
			&m.ConflictCount,
			&m.ErrorCount,
			&m.CreatedCount,
			&m.UpdatedCount,
			&m.Message,
			&m.IsRead,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan transfer row")
		}
		transfers = append(transfers, toDomainTransfer(&m))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return transfers, nil
}
