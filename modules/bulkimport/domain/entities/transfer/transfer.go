// Package transfer tracks one logical import run: its state machine and the
// aggregate counts surfaced to the initiating caller.
package transfer

import (
	"time"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/pkg/serrors"
)

type Status string

const (
	StatusPending    Status = "Pending"
	StatusValidating Status = "Validating"
	StatusValidated  Status = "Validated"
	StatusImporting  Status = "Importing"
	StatusCreated    Status = "Created"
	StatusError      Status = "Error"
)

var ErrInvalidTransition = serrors.NewError("TRANSFER_INVALID_TRANSITION", "invalid transfer status transition", "")

var transitions = map[Status][]Status{
	StatusPending:    {StatusValidating},
	StatusValidating: {StatusValidated, StatusError},
	StatusValidated:  {StatusImporting},
	StatusImporting:  {StatusCreated, StatusError},
	// Error and Created are terminal for their phase; a fresh run resets.
}

func (s Status) CanTransition(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Counts are the caller-visible aggregates, always recomputed from the
// staging store at stage boundaries.
type Counts struct {
	Valid     int `json:"validCount"`
	Duplicate int `json:"duplicateCount"`
	Conflict  int `json:"conflictCount"`
	Error     int `json:"errorCount"`
	Created   int `json:"createdCount"`
	Updated   int `json:"updatedCount"`
}

func CountsFromStaged(c stagedrecord.Counts) Counts {
	return Counts{
		Valid:     c.Valid,
		Duplicate: c.Duplicate,
		Conflict:  c.Conflict,
		Error:     c.Error,
		Created:   c.Created,
		Updated:   c.Updated,
	}
}

type Transfer struct {
	fileID    string
	fileName  string
	user      string
	status    Status
	counts    Counts
	message   string
	isRead    bool
	createdAt time.Time
	updatedAt time.Time
}

type Option func(*Transfer)

func WithFileName(fileName string) Option {
	return func(t *Transfer) {
		t.fileName = fileName
	}
}

func WithUser(user string) Option {
	return func(t *Transfer) {
		t.user = user
	}
}

func WithStatus(status Status) Option {
	return func(t *Transfer) {
		t.status = status
	}
}

func WithCounts(counts Counts) Option {
	return func(t *Transfer) {
		t.counts = counts
	}
}

func WithMessage(message string) Option {
	return func(t *Transfer) {
		t.message = message
	}
}

func WithIsRead(isRead bool) Option {
	return func(t *Transfer) {
		t.isRead = isRead
	}
}

func WithCreatedAt(createdAt time.Time) Option {
	return func(t *Transfer) {
		t.createdAt = createdAt
	}
}

func WithUpdatedAt(updatedAt time.Time) Option {
	return func(t *Transfer) {
		t.updatedAt = updatedAt
	}
}

func New(fileID string, opts ...Option) *Transfer {
	now := time.Now()
	t := &Transfer{
		fileID:    fileID,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Transfer) FileID() string       { return t.fileID }
func (t *Transfer) FileName() string     { return t.fileName }
func (t *Transfer) User() string         { return t.user }
func (t *Transfer) Status() Status       { return t.status }
func (t *Transfer) Counts() Counts       { return t.counts }
func (t *Transfer) Message() string      { return t.message }
func (t *Transfer) IsRead() bool         { return t.isRead }
func (t *Transfer) CreatedAt() time.Time { return t.createdAt }
func (t *Transfer) UpdatedAt() time.Time { return t.updatedAt }

// Transition moves the run to the next state, writing the recomputed counts
// and message. The state machine rejects anything not in the transition table.
func (t *Transfer) Transition(to Status, counts Counts, message string) error {
	if !t.status.CanTransition(to) {
		return ErrInvalidTransition.WithMessage("cannot transition from %s to %s", t.status, to)
	}
	t.status = to
	t.counts = counts
	t.message = message
	t.isRead = false
	t.updatedAt = time.Now()
	return nil
}

// Reset prepares the transfer for a fresh run over the same fileID. Allowed
// from any state: a new import overwrites the staging area wholesale.
func (t *Transfer) Reset(fileName, user string) {
	t.fileName = fileName
	t.user = user
	t.status = StatusPending
	t.counts = Counts{}
	t.message = ""
	t.isRead = false
	t.updatedAt = time.Now()
}

func (t *Transfer) MarkRead() {
	t.isRead = true
	t.updatedAt = time.Now()
}

// Terminal reports whether the current phase has finished.
func (t *Transfer) Terminal() bool {
	switch t.status {
	case StatusValidated, StatusCreated, StatusError:
		return true
	default:
		return false
	}
}
