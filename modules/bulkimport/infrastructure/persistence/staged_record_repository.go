package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence/models"
	"github.com/fieldline/importhub/pkg/composables"
	"github.com/jackc/pgx/v5"
)

const (
	stagedRecordFindQuery = `
		SELECT id, file_id, sequence_no, data, status, conflict, message, error_source, created_at, updated_at
		FROM import_staged_records`

	stagedRecordInsertQuery = `
		INSERT INTO import_staged_records
			(id, file_id, sequence_no, data, status, conflict, message, error_source, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	stagedRecordUpdateQuery = `
		UPDATE import_staged_records
		SET data = $1, status = $2, conflict = $3, message = $4, error_source = $5, updated_at = $6
		WHERE id = $7`

	stagedRecordCountsQuery = `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'Pending'),
			count(*) FILTER (WHERE status = 'Validated'),
			count(*) FILTER (WHERE status = 'Duplicate' AND NOT conflict),
			count(*) FILTER (WHERE status = 'Duplicate' AND conflict),
			count(*) FILTER (WHERE status = 'Error'),
			count(*) FILTER (WHERE status = 'Created'),
			count(*) FILTER (WHERE status = 'Updated')
		FROM import_staged_records
		WHERE file_id = $1`
)

type StagedRecordRepository struct{}

func NewStagedRecordRepository() stagedrecord.Repository {
	return &StagedRecordRepository{}
}

func (r *StagedRecordRepository) BulkCreate(ctx context.Context, records []*stagedrecord.StagedRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		row, err := toDBStagedRecord(rec)
		if err != nil {
			return err
		}
		batch.Queue(
			stagedRecordInsertQuery,
			row.ID,
			row.FileID,
			row.SequenceNo,
			row.Data,
			row.Status,
			row.Conflict,
			row.Message,
			row.ErrorSource,
			row.CreatedAt,
			row.UpdatedAt,
		)
	}
	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range records {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "failed to bulk insert staged records")
		}
	}
	return nil
}

func (r *StagedRecordRepository) DeleteByFileID(ctx context.Context, fileID string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	_, err = tx.Exec(ctx, `DELETE FROM import_staged_records WHERE file_id = $1`, fileID)
	return errors.Wrap(err, "failed to delete staged records")
}

func (r *StagedRecordRepository) GetByFileID(ctx context.Context, params *stagedrecord.FindParams) ([]*stagedrecord.StagedRecord, error) {
	where := []string{"file_id = $1"}
	args := []any{params.FileID}

	if len(params.Statuses) > 0 {
		statuses := make([]string, 0, len(params.Statuses))
		for _, s := range params.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if len(params.SequenceNos) > 0 {
		args = append(args, params.SequenceNos)
		where = append(where, fmt.Sprintf("sequence_no = ANY($%d)", len(args)))
	}

	query := stagedRecordFindQuery + " WHERE " + strings.Join(where, " AND ") + " ORDER BY sequence_no"
	if params.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", params.Limit)
	}
	if params.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", params.Offset)
	}
	return r.queryRecords(ctx, query, args...)
}

func (r *StagedRecordRepository) Update(ctx context.Context, rec *stagedrecord.StagedRecord) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	row, err := toDBStagedRecord(rec)
	if err != nil {
		return err
	}
	_, err = tx.Exec(
		ctx,
		stagedRecordUpdateQuery,
		row.Data,
		row.Status,
		row.Conflict,
		row.Message,
		row.ErrorSource,
		row.UpdatedAt,
		row.ID,
	)
	return errors.Wrap(err, "failed to update staged record")
}

func (r *StagedRecordRepository) UpdateMany(ctx context.Context, records []*stagedrecord.StagedRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get transaction")
	}
	batch := &pgx.Batch{}
	for _, rec := range records {
		row, err := toDBStagedRecord(rec)
		if err != nil {
			return err
		}
		batch.Queue(
			stagedRecordUpdateQuery,
			row.Data,
			row.Status,
			row.Conflict,
			row.Message,
			row.ErrorSource,
			row.UpdatedAt,
			row.ID,
		)
	}
	results := tx.SendBatch(ctx, batch)
	defer func() { _ = results.Close() }()
	for range records {
		if _, err := results.Exec(); err != nil {
			return errors.Wrap(err, "failed to batch update staged records")
		}
	}
	return nil
}

func (r *StagedRecordRepository) Counts(ctx context.Context, fileID string) (stagedrecord.Counts, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return stagedrecord.Counts{}, errors.Wrap(err, "failed to get transaction")
	}
	var c stagedrecord.Counts
	if err := tx.QueryRow(ctx, stagedRecordCountsQuery, fileID).Scan(
		&c.Total,
		&c.Pending,
		&c.Valid,
		&c.Duplicate,
		&c.Conflict,
		&c.Error,
		&c.Created,
		&c.Updated,
	); err != nil {
		return stagedrecord.Counts{}, errors.Wrap(err, "failed to count staged records")
	}
	return c, nil
}

func (r *StagedRecordRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*stagedrecord.StagedRecord, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get transaction")
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute query")
	}
	defer rows.Close()

	var records []*stagedrecord.StagedRecord
	for rows.Next() {
		var m models.StagedRecord
		if err := rows.Scan(
			&m.ID,
			&m.FileID,
			&m.SequenceNo,
			&m.Data,
			&m.Status,
			&m.Conflict,
			&m.Message,
			&m.ErrorSource,
			&m.CreatedAt,
			&m.UpdatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan staged record row")
		}
		rec, err := toDomainStagedRecord(&m)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "row iteration error")
	}
	return records, nil
}
