package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence"
	"github.com/fieldline/importhub/pkg/composables"
	"github.com/fieldline/importhub/pkg/configuration"
	"github.com/fieldline/importhub/pkg/eventbus"
	"github.com/fieldline/importhub/pkg/metrics"
	"github.com/fieldline/importhub/pkg/serrors"
	"github.com/fieldline/importhub/pkg/tasks"
)

var ErrCommitNotAllowed = serrors.NewError("COMMIT_NOT_ALLOWED", "transfer is not in a committable state", "")

// CommitRequest selects what to commit. Sequence numbers listed in Creates and
// Updates are committed explicitly regardless of duplicate marks, which is how
// a caller resolves conflicts after reviewing them; Ignores excludes records
// from the run entirely. Every remaining Validated record is committed
// implicitly.
type CommitRequest struct {
	FileID          string
	IdentifierField string
	Creates         []int
	Updates         []int
	Ignores         []int
}

type CommitServiceOptions struct {
	Pool         *pgxpool.Pool
	StagedRepo   stagedrecord.Repository
	TransferRepo transfer.Repository
	RecordStore  record.Store
	Publisher    eventbus.EventBus
	Runner       *tasks.Runner
	Config       configuration.ImportOptions
	Logger       *logrus.Logger
}

// CommitService runs the commit phase: writing validated records into the
// primary store. Each record commits independently; a failed record is marked
// Error without affecting the rest of the run.
type CommitService struct {
	pool         *pgxpool.Pool
	stagedRepo   stagedrecord.Repository
	transferRepo transfer.Repository
	recordStore  record.Store
	publisher    eventbus.EventBus
	runner       *tasks.Runner
	config       configuration.ImportOptions
	logger       *logrus.Logger
}

func NewCommitService(opts CommitServiceOptions) *CommitService {
	return &CommitService{
		pool:         opts.Pool,
		stagedRepo:   opts.StagedRepo,
		transferRepo: opts.TransferRepo,
		recordStore:  opts.RecordStore,
		publisher:    opts.Publisher,
		runner:       opts.Runner,
		config:       opts.Config,
		logger:       opts.Logger,
	}
}

// Commit spawns the commit task after checking the transfer may enter the
// Importing state.
func (s *CommitService) Commit(ctx context.Context, req *CommitRequest) (*tasks.Handle, error) {
	if req.FileID == "" {
		return nil, ErrEmptyFileID
	}
	if req.IdentifierField == "" {
		req.IdentifierField = "id"
	}

	tr, err := s.transferRepo.GetByFileID(ctx, req.FileID)
	if err != nil {
		if errors.Is(err, persistence.ErrTransferNotFound) {
			return nil, ErrCommitNotAllowed.WithMessage("file %s has no import run", req.FileID)
		}
		return nil, err
	}
	if !tr.Status().CanTransition(transfer.StatusImporting) {
		return nil, ErrCommitNotAllowed.WithMessage("file %s is in state %s", req.FileID, tr.Status())
	}

	return s.runner.Spawn(fmt.Sprintf("commit %s", req.FileID), func(taskCtx context.Context) error {
		return s.run(taskCtx, req)
	}), nil
}

func (s *CommitService) run(ctx context.Context, req *CommitRequest) error {
	if s.pool != nil {
		ctx = composables.WithPool(ctx, s.pool)
	}
	log := s.log().WithField("fileId", req.FileID)

	tr, err := s.transferRepo.GetByFileID(ctx, req.FileID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, tr, transfer.StatusImporting, tr.Counts(), ""); err != nil {
		return err
	}

	creates, updates, err := s.selectRecords(ctx, req)
	if err != nil {
		return s.fail(ctx, tr, err.Error())
	}

	s.commitBatches(ctx, req, creates, commitCreate)
	s.commitBatches(ctx, req, updates, commitUpdate)

	counts, err := s.stagedRepo.Counts(ctx, req.FileID)
	if err != nil {
		return s.fail(ctx, tr, err.Error())
	}
	if err := s.transition(ctx, tr, transfer.StatusCreated, transfer.CountsFromStaged(counts), ""); err != nil {
		return err
	}

	s.publish(transfer.NewImportCompletedEvent(tr))
	log.WithField("counts", tr.Counts()).Info("import: commit completed")
	return nil
}

// selectRecords resolves the explicit and implicit record sets. Implicitly
// committed Validated records become updates when their identifier already
// exists in the primary store, creates otherwise.
func (s *CommitService) selectRecords(ctx context.Context, req *CommitRequest) (creates, updates []*stagedrecord.StagedRecord, err error) {
	explicitSeqNos := make(map[int]bool, len(req.Creates)+len(req.Updates)+len(req.Ignores))

	if len(req.Ignores) > 0 {
		recs, err := s.stagedRepo.GetByFileID(ctx, &stagedrecord.FindParams{FileID: req.FileID, SequenceNos: req.Ignores})
		if err != nil {
			return nil, nil, err
		}
		ignored := make([]*stagedrecord.StagedRecord, 0, len(recs))
		for _, rec := range recs {
			if rec.IsTerminal() {
				continue
			}
			rec.MarkIgnored()
			ignored = append(ignored, rec)
			explicitSeqNos[rec.SequenceNo()] = true
		}
		if len(ignored) > 0 {
			if err := s.stagedRepo.UpdateMany(ctx, ignored); err != nil {
				return nil, nil, err
			}
		}
	}

	if len(req.Creates) > 0 {
		recs, err := s.stagedRepo.GetByFileID(ctx, &stagedrecord.FindParams{FileID: req.FileID, SequenceNos: req.Creates})
		if err != nil {
			return nil, nil, err
		}
		for _, rec := range recs {
			if rec.IsTerminal() {
				continue
			}
			creates = append(creates, rec)
			explicitSeqNos[rec.SequenceNo()] = true
		}
	}

	if len(req.Updates) > 0 {
		recs, err := s.stagedRepo.GetByFileID(ctx, &stagedrecord.FindParams{FileID: req.FileID, SequenceNos: req.Updates})
		if err != nil {
			return nil, nil, err
		}
		for _, rec := range recs {
			if rec.IsTerminal() {
				continue
			}
			updates = append(updates, rec)
			explicitSeqNos[rec.SequenceNo()] = true
		}
	}

	validated, err := s.stagedRepo.GetByFileID(ctx, &stagedrecord.FindParams{
		FileID:   req.FileID,
		Statuses: []stagedrecord.Status{stagedrecord.StatusValidated},
	})
	if err != nil {
		return nil, nil, err
	}

	implicit := make([]*stagedrecord.StagedRecord, 0, len(validated))
	ids := make([]string, 0, len(validated))
	for _, rec := range validated {
		if explicitSeqNos[rec.SequenceNo()] {
			continue
		}
		implicit = append(implicit, rec)
		if id, ok := rec.Identifier(req.IdentifierField); ok {
			ids = append(ids, id)
		}
	}

	existing := make(map[string]bool, len(ids))
	for start := 0; start < len(ids); start += conflictLookupChunk {
		end := min(start+conflictLookupChunk, len(ids))
		docs, err := s.recordStore.FindByIdentifiers(ctx, ids[start:end])
		if err != nil {
			return nil, nil, err
		}
		for _, doc := range docs {
			existing[doc.Identifier] = true
		}
	}

	for _, rec := range implicit {
		if id, ok := rec.Identifier(req.IdentifierField); ok && existing[id] {
			updates = append(updates, rec)
		} else {
			creates = append(creates, rec)
		}
	}
	return creates, updates, nil
}

type commitOp func(s *CommitService, ctx context.Context, req *CommitRequest, rec *stagedrecord.StagedRecord)

func (s *CommitService) commitBatches(ctx context.Context, req *CommitRequest, records []*stagedrecord.StagedRecord, op commitOp) {
	for start := 0; start < len(records); start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, len(records))
		batch := records[start:end]

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.config.Parallelism)
		for _, rec := range batch {
			rec := rec
			g.Go(func() error {
				op(s, gctx, req, rec)
				return nil
			})
		}
		_ = g.Wait()

		if err := s.stagedRepo.UpdateMany(ctx, batch); err != nil {
			s.log().WithError(err).Error("import: failed to persist commit marks")
		}
	}
}

func commitCreate(s *CommitService, ctx context.Context, req *CommitRequest, rec *stagedrecord.StagedRecord) {
	id, ok := rec.Identifier(req.IdentifierField)
	if !ok {
		id = rec.ID().String()
	}
	doc := &record.Document{
		Identifier: id,
		Data:       rec.Data(),
		Provenance: &record.Provenance{
			FileID:     rec.FileID(),
			SequenceNo: rec.SequenceNo(),
			ImportedAt: time.Now(),
		},
	}
	if _, err := s.recordStore.Insert(ctx, doc); err != nil {
		rec.MarkError(stagedrecord.ErrorSourcePlatform, err.Error())
		metrics.RecordsFailed.WithLabelValues(string(stagedrecord.ErrorSourcePlatform)).Inc()
		return
	}
	rec.MarkCreated()
	metrics.RecordsCommitted.WithLabelValues("create").Inc()
}

func commitUpdate(s *CommitService, ctx context.Context, req *CommitRequest, rec *stagedrecord.StagedRecord) {
	id, ok := rec.Identifier(req.IdentifierField)
	if !ok {
		rec.MarkError(stagedrecord.ErrorSourcePlatform, "record has no identifier to update by")
		metrics.RecordsFailed.WithLabelValues(string(stagedrecord.ErrorSourcePlatform)).Inc()
		return
	}
	doc, err := s.recordStore.FindByIdentifier(ctx, id)
	if err != nil {
		rec.MarkError(stagedrecord.ErrorSourcePlatform, err.Error())
		metrics.RecordsFailed.WithLabelValues(string(stagedrecord.ErrorSourcePlatform)).Inc()
		return
	}
	merged := record.Merge(doc.Data, rec.Data())
	if _, err := s.recordStore.Update(ctx, id, merged); err != nil {
		rec.MarkError(stagedrecord.ErrorSourcePlatform, err.Error())
		metrics.RecordsFailed.WithLabelValues(string(stagedrecord.ErrorSourcePlatform)).Inc()
		return
	}
	rec.MarkUpdated()
	metrics.RecordsCommitted.WithLabelValues("update").Inc()
}

func (s *CommitService) fail(ctx context.Context, tr *transfer.Transfer, message string) error {
	counts, err := s.stagedRepo.Counts(ctx, tr.FileID())
	if err != nil {
		s.log().WithError(err).Error("import: failed to recompute counts")
	}
	if err := tr.Transition(transfer.StatusError, transfer.CountsFromStaged(counts), message); err != nil {
		return err
	}
	if err := s.transferRepo.Save(ctx, tr); err != nil {
		return err
	}
	s.publish(transfer.NewImportCompletedEvent(tr))
	return nil
}

func (s *CommitService) transition(ctx context.Context, tr *transfer.Transfer, to transfer.Status, counts transfer.Counts, message string) error {
	if err := tr.Transition(to, counts, message); err != nil {
		return err
	}
	return s.transferRepo.Save(ctx, tr)
}

func (s *CommitService) publish(event any) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func (s *CommitService) log() *logrus.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logrus.StandardLogger()
}
