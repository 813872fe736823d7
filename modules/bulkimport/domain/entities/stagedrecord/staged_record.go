// Package stagedrecord models one row of an import run held in the
// pipeline's own work queue, independent of the primary store.
package stagedrecord

import (
	"time"

	"github.com/google/uuid"

	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
)

type Status string

const (
	StatusPending   Status = "Pending"
	StatusValidated Status = "Validated"
	StatusDuplicate Status = "Duplicate"
	StatusError     Status = "Error"
	StatusCreated   Status = "Created"
	StatusUpdated   Status = "Updated"
	StatusIgnored   Status = "Ignored"
)

// ErrorSource distinguishes a business-hook rejection from a local
// schema/logic failure.
type ErrorSource string

const (
	ErrorSourcePlatform ErrorSource = "platform"
	ErrorSourceBusiness ErrorSource = "business"
)

type StagedRecord struct {
	id          uuid.UUID
	fileID      string
	sequenceNo  int
	data        record.Payload
	status      Status
	conflict    bool
	message     string
	errorSource ErrorSource
	createdAt   time.Time
	updatedAt   time.Time
}

type Option func(*StagedRecord)

func WithID(id uuid.UUID) Option {
	return func(r *StagedRecord) {
		r.id = id
	}
}

func WithStatus(status Status) Option {
	return func(r *StagedRecord) {
		r.status = status
	}
}

func WithConflict(conflict bool) Option {
	return func(r *StagedRecord) {
		r.conflict = conflict
	}
}

func WithMessage(message string) Option {
	return func(r *StagedRecord) {
		r.message = message
	}
}

func WithErrorSource(source ErrorSource) Option {
	return func(r *StagedRecord) {
		r.errorSource = source
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(r *StagedRecord) {
		r.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(r *StagedRecord) {
		r.updatedAt = updatedAt
	}
}

// New stages one mapped row. Records start Pending.
func New(fileID string, sequenceNo int, data record.Payload, opts ...Option) *StagedRecord {
	now := time.Now()
	r := &StagedRecord{
		id:         uuid.New(),
		fileID:     fileID,
		sequenceNo: sequenceNo,
		data:       data,
		status:     StatusPending,
		createdAt:  now,
		updatedAt:  now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *StagedRecord) ID() uuid.UUID            { return r.id }
func (r *StagedRecord) FileID() string           { return r.fileID }
func (r *StagedRecord) SequenceNo() int          { return r.sequenceNo }
func (r *StagedRecord) Data() record.Payload     { return r.data }
func (r *StagedRecord) Status() Status           { return r.status }
func (r *StagedRecord) Conflict() bool           { return r.conflict }
func (r *StagedRecord) Message() string          { return r.message }
func (r *StagedRecord) ErrorSource() ErrorSource { return r.errorSource }
func (r *StagedRecord) CreatedAt() time.Time     { return r.createdAt }
func (r *StagedRecord) UpdatedAt() time.Time     { return r.updatedAt }

// Identifier returns the target identifier from the mapped data.
func (r *StagedRecord) Identifier(field string) (string, bool) {
	return r.data.Identifier(field)
}

// All status transitions go through the mark methods below so diagnostic
// fields and timestamps stay consistent with the status.

func (r *StagedRecord) MarkValidated(enriched record.Payload) {
	r.data = enriched
	r.status = StatusValidated
	r.message = ""
	r.errorSource = ""
	r.updatedAt = time.Now()
}

// MarkDuplicate flags an identifier collision. conflict=true (collision with
// an existing stored record) strictly overrides conflict=false (same-batch
// duplicate); a later duplicate-only mark never downgrades a conflict.
func (r *StagedRecord) MarkDuplicate(conflict bool) {
	r.status = StatusDuplicate
	r.conflict = r.conflict || conflict
	r.updatedAt = time.Now()
}

// MarkPending returns the record to the Pending state, discarding an
// unpersisted validation outcome. Used when a run aborts mid-batch so only
// failures inside the budget reach the staging store.
func (r *StagedRecord) MarkPending() {
	r.status = StatusPending
	r.message = ""
	r.errorSource = ""
	r.updatedAt = time.Now()
}

func (r *StagedRecord) MarkError(source ErrorSource, message string) {
	r.status = StatusError
	r.message = message
	r.errorSource = source
	r.updatedAt = time.Now()
}

func (r *StagedRecord) MarkCreated() {
	r.status = StatusCreated
	r.updatedAt = time.Now()
}

func (r *StagedRecord) MarkUpdated() {
	r.status = StatusUpdated
	r.updatedAt = time.Now()
}

func (r *StagedRecord) MarkIgnored() {
	r.status = StatusIgnored
	r.updatedAt = time.Now()
}

// IsTerminal reports whether the record already reached a commit-phase state.
func (r *StagedRecord) IsTerminal() bool {
	switch r.status {
	case StatusCreated, StatusUpdated, StatusIgnored:
		return true
	default:
		return false
	}
}
