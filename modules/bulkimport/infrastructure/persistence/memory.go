package persistence

import (
	"context"
	"sync"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

// Memory-backed repositories. They back tests and local development without
// Postgres; the pipeline services only ever see the domain interfaces.

type MemoryStagedRecordRepository struct {
	mu      sync.Mutex
	records map[string][]*stagedrecord.StagedRecord
}

func NewMemoryStagedRecordRepository() *MemoryStagedRecordRepository {
	return &MemoryStagedRecordRepository{records: make(map[string][]*stagedrecord.StagedRecord)}
}

func (r *MemoryStagedRecordRepository) BulkCreate(_ context.Context, records []*stagedrecord.StagedRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		r.records[rec.FileID()] = append(r.records[rec.FileID()], rec)
	}
	return nil
}

func (r *MemoryStagedRecordRepository) DeleteByFileID(_ context.Context, fileID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, fileID)
	return nil
}

func (r *MemoryStagedRecordRepository) GetByFileID(_ context.Context, params *stagedrecord.FindParams) ([]*stagedrecord.StagedRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	statuses := make(map[stagedrecord.Status]bool, len(params.Statuses))
	for _, s := range params.Statuses {
		statuses[s] = true
	}
	seqNos := make(map[int]bool, len(params.SequenceNos))
	for _, n := range params.SequenceNos {
		seqNos[n] = true
	}

	var out []*stagedrecord.StagedRecord
	for _, rec := range r.records[params.FileID] {
		if len(statuses) > 0 && !statuses[rec.Status()] {
			continue
		}
		if len(seqNos) > 0 && !seqNos[rec.SequenceNo()] {
			continue
		}
		out = append(out, rec)
	}
	if params.Offset > 0 {
		if params.Offset >= len(out) {
			return nil, nil
		}
		out = out[params.Offset:]
	}
	if params.Limit > 0 && params.Limit < len(out) {
		out = out[:params.Limit]
	}
	return out, nil
}

func (r *MemoryStagedRecordRepository) Update(_ context.Context, _ *stagedrecord.StagedRecord) error {
	return nil
}

func (r *MemoryStagedRecordRepository) UpdateMany(_ context.Context, _ []*stagedrecord.StagedRecord) error {
	return nil
}

func (r *MemoryStagedRecordRepository) Counts(_ context.Context, fileID string) (stagedrecord.Counts, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var c stagedrecord.Counts
	for _, rec := range r.records[fileID] {
		c.Total++
		switch rec.Status() {
		case stagedrecord.StatusPending:
			c.Pending++
		case stagedrecord.StatusValidated:
			c.Valid++
		case stagedrecord.StatusDuplicate:
			if rec.Conflict() {
				c.Conflict++
			} else {
				c.Duplicate++
			}
		case stagedrecord.StatusError:
			c.Error++
		case stagedrecord.StatusCreated:
			c.Created++
		case stagedrecord.StatusUpdated:
			c.Updated++
		}
	}
	return c, nil
}

type MemoryTransferRepository struct {
	mu        sync.Mutex
	transfers map[string]*transfer.Transfer
}

func NewMemoryTransferRepository() *MemoryTransferRepository {
	return &MemoryTransferRepository{transfers: make(map[string]*transfer.Transfer)}
}

func (r *MemoryTransferRepository) Save(_ context.Context, t *transfer.Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transfers[t.FileID()] = t
	return nil
}

func (r *MemoryTransferRepository) GetByFileID(_ context.Context, fileID string) (*transfer.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transfers[fileID]
	if !ok {
		return nil, ErrTransferNotFound
	}
	return t, nil
}

func (r *MemoryTransferRepository) List(_ context.Context, params *transfer.FindParams) ([]*transfer.Transfer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transfer.Transfer
	for _, t := range r.transfers {
		if params.User != "" && t.User() != params.User {
			continue
		}
		if params.UnreadOnly && t.IsRead() {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

type MemoryRecordStore struct {
	mu        sync.Mutex
	docs      map[string]*record.Document
	insertErr map[string]error
}

func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		docs:      make(map[string]*record.Document),
		insertErr: make(map[string]error),
	}
}

// Seed preloads a document, bypassing provenance stamping.
func (s *MemoryRecordStore) Seed(id string, data record.Payload) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = &record.Document{Identifier: id, Data: data.Clone()}
}

// FailInsert makes Insert fail for the given identifier. Test hook.
func (s *MemoryRecordStore) FailInsert(id string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertErr[id] = err
}

func (s *MemoryRecordStore) FindByIdentifiers(_ context.Context, ids []string) ([]*record.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*record.Document
	for _, id := range ids {
		if doc, ok := s.docs[id]; ok {
			out = append(out, &record.Document{Identifier: doc.Identifier, Data: doc.Data.Clone(), Provenance: doc.Provenance})
		}
	}
	return out, nil
}

func (s *MemoryRecordStore) FindByIdentifier(_ context.Context, id string) (*record.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, record.ErrNotFound.WithMessage("document %s does not exist", id)
	}
	return &record.Document{Identifier: doc.Identifier, Data: doc.Data.Clone(), Provenance: doc.Provenance}, nil
}

func (s *MemoryRecordStore) Insert(_ context.Context, doc *record.Document) (*record.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.insertErr[doc.Identifier]; ok {
		return nil, err
	}
	s.docs[doc.Identifier] = doc
	return doc, nil
}

func (s *MemoryRecordStore) Update(_ context.Context, id string, data record.Payload) (*record.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, record.ErrNotFound.WithMessage("document %s does not exist", id)
	}
	doc.Data = data.Clone()
	return doc, nil
}
