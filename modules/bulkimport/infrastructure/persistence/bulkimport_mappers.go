package persistence

import (
	"database/sql"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence/models"
)

func toDBStagedRecord(r *stagedrecord.StagedRecord) (*models.StagedRecord, error) {
	data, err := json.Marshal(r.Data())
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal staged record data")
	}
	return &models.StagedRecord{
		ID:          r.ID().String(),
		FileID:      r.FileID(),
		SequenceNo:  r.SequenceNo(),
		Data:        data,
		Status:      string(r.Status()),
		Conflict:    r.Conflict(),
		Message:     nullString(r.Message()),
		ErrorSource: nullString(string(r.ErrorSource())),
		CreatedAt:   r.CreatedAt(),
		UpdatedAt:   r.UpdatedAt(),
	}, nil
}

func toDomainStagedRecord(m *models.StagedRecord) (*stagedrecord.StagedRecord, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid staged record id")
	}
	var data record.Payload
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal staged record data")
		}
	}
	return stagedrecord.New(
		m.FileID,
		m.SequenceNo,
		data,
		stagedrecord.WithID(id),
		stagedrecord.WithStatus(stagedrecord.Status(m.Status)),
		stagedrecord.WithConflict(m.Conflict),
		stagedrecord.WithMessage(m.Message.String),
		stagedrecord.WithErrorSource(stagedrecord.ErrorSource(m.ErrorSource.String)),
		stagedrecord.WithCreatedAt(m.CreatedAt),
		stagedrecord.WithUpdatedAt(m.UpdatedAt),
	), nil
}

func toDBTransfer(t *transfer.Transfer) *models.Transfer {
	counts := t.Counts()
	return &models.Transfer{
		FileID:         t.FileID(),
		FileName:       nullString(t.FileName()),
		UserName:       nullString(t.User()),
		Status:         string(t.Status()),
		ValidCount:     counts.Valid,
		DuplicateCount: counts.Duplicate,
		ConflictCount:  counts.Conflict,
		ErrorCount:     counts.Error,
		CreatedCount:   counts.Created,
		UpdatedCount:   counts.Updated,
		Message:        nullString(t.Message()),
		IsRead:         t.IsRead(),
		CreatedAt:      t.CreatedAt(),
		UpdatedAt:      t.UpdatedAt(),
	}
}

func toDomainTransfer(m *models.Transfer) *transfer.Transfer {
	return transfer.New(
		m.FileID,
		transfer.WithFileName(m.FileName.String),
		transfer.WithUser(m.UserName.String),
		transfer.WithStatus(transfer.Status(m.Status)),
		transfer.WithCounts(transfer.Counts{
			Valid:     m.ValidCount,
			Duplicate: m.DuplicateCount,
			Conflict:  m.ConflictCount,
			Error:     m.ErrorCount,
			Created:   m.CreatedCount,
			Updated:   m.UpdatedCount,
		}),
		transfer.WithMessage(m.Message.String),
		transfer.WithIsRead(m.IsRead),
		transfer.WithCreatedAt(m.CreatedAt),
		transfer.WithUpdatedAt(m.UpdatedAt),
	)
}

func toDBDocument(d *record.Document) (*models.Document, error) {
	data, err := json.Marshal(d.Data)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal document data")
	}
	m := &models.Document{
		Identifier: d.Identifier,
		Data:       data,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
	if p := d.Provenance; p != nil {
		m.ImportFileID = nullString(p.FileID)
		m.ImportSequenceNo = sql.NullInt32{Int32: int32(p.SequenceNo), Valid: true}
		m.ImportedAt = sql.NullTime{Time: p.ImportedAt, Valid: true}
	}
	return m, nil
}

func toDomainDocument(m *models.Document) (*record.Document, error) {
	var data record.Payload
	if len(m.Data) > 0 {
		if err := json.Unmarshal(m.Data, &data); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal document data")
		}
	}
	doc := &record.Document{
		Identifier: m.Identifier,
		Data:       data,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
	if m.ImportFileID.Valid {
		doc.Provenance = &record.Provenance{
			FileID:     m.ImportFileID.String,
			SequenceNo: int(m.ImportSequenceNo.Int32),
			ImportedAt: m.ImportedAt.Time,
		}
	}
	return doc, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
