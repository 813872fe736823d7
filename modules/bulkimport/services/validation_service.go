package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/domain/simulation"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence"
	"github.com/fieldline/importhub/pkg/composables"
	"github.com/fieldline/importhub/pkg/configuration"
	"github.com/fieldline/importhub/pkg/eventbus"
	"github.com/fieldline/importhub/pkg/metrics"
	"github.com/fieldline/importhub/pkg/serrors"
	"github.com/fieldline/importhub/pkg/tasks"
)

var ErrRunInProgress = serrors.NewError("IMPORT_IN_PROGRESS", "an import run is already in progress for this file", "")

// conflictLookupChunk bounds the identifier list per primary-store query.
const conflictLookupChunk = 500

type ValidationServiceOptions struct {
	Pool         *pgxpool.Pool
	Ingest       *IngestService
	StagedRepo   stagedrecord.Repository
	TransferRepo transfer.Repository
	RecordStore  record.Store
	Chain        *simulation.Chain
	AccessFilter simulation.AccessFilter
	Publisher    eventbus.EventBus
	Runner       *tasks.Runner
	Config       configuration.ImportOptions
	Logger       *logrus.Logger
}

// ValidationService runs the validation phase: ingest, duplicate and conflict
// detection, schema validation and business-rule simulation. The phase runs as
// a background task; callers observe progress through the transfer.
type ValidationService struct {
	pool         *pgxpool.Pool
	ingest       *IngestService
	stagedRepo   stagedrecord.Repository
	transferRepo transfer.Repository
	recordStore  record.Store
	chain        *simulation.Chain
	access       simulation.AccessFilter
	publisher    eventbus.EventBus
	runner       *tasks.Runner
	config       configuration.ImportOptions
	logger       *logrus.Logger
}

func NewValidationService(opts ValidationServiceOptions) *ValidationService {
	return &ValidationService{
		pool:         opts.Pool,
		ingest:       opts.Ingest,
		stagedRepo:   opts.StagedRepo,
		transferRepo: opts.TransferRepo,
		recordStore:  opts.RecordStore,
		chain:        opts.Chain,
		access:       opts.AccessFilter,
		publisher:    opts.Publisher,
		runner:       opts.Runner,
		config:       opts.Config,
		logger:       opts.Logger,
	}
}

// BeginValidation resets the transfer for a fresh run and spawns the
// validation task. It returns once the run is accepted.
func (s *ValidationService) BeginValidation(ctx context.Context, req *ImportRequest) (*tasks.Handle, error) {
	if req.FileID == "" {
		return nil, ErrEmptyFileID
	}

	tr, err := s.transferRepo.GetByFileID(ctx, req.FileID)
	switch {
	case errors.Is(err, persistence.ErrTransferNotFound):
		tr = transfer.New(req.FileID)
	case err != nil:
		return nil, err
	case tr.Status() == transfer.StatusValidating || tr.Status() == transfer.StatusImporting:
		return nil, ErrRunInProgress.WithMessage("file %s is in state %s", req.FileID, tr.Status())
	}

	tr.Reset(req.FileName, req.User)
	if err := s.transferRepo.Save(ctx, tr); err != nil {
		return nil, err
	}

	return s.runner.Spawn(fmt.Sprintf("validate %s", req.FileID), func(taskCtx context.Context) error {
		return s.run(taskCtx, req)
	}), nil
}

func (s *ValidationService) run(ctx context.Context, req *ImportRequest) error {
	if s.pool != nil {
		ctx = composables.WithPool(ctx, s.pool)
	}
	log := s.log().WithField("fileId", req.FileID)

	tr, err := s.transferRepo.GetByFileID(ctx, req.FileID)
	if err != nil {
		return err
	}
	if err := s.transition(ctx, tr, transfer.StatusValidating, tr.Counts(), ""); err != nil {
		return err
	}

	staged, err := s.ingest.Ingest(ctx, req)
	if err != nil {
		log.WithError(err).Error("import: ingestion failed")
		return s.fail(ctx, tr, err.Error())
	}
	log.WithField("staged", staged).Info("import: records staged")

	records, err := s.stagedRepo.GetByFileID(ctx, &stagedrecord.FindParams{FileID: req.FileID})
	if err != nil {
		return s.fail(ctx, tr, err.Error())
	}

	identifierField := req.Schema.Identifier()
	markDuplicates(records, identifierField)
	conflicts, err := s.markConflicts(ctx, records, identifierField)
	if err != nil {
		return s.fail(ctx, tr, err.Error())
	}

	var duplicates []*stagedrecord.StagedRecord
	for _, rec := range records {
		if rec.Status() == stagedrecord.StatusDuplicate {
			duplicates = append(duplicates, rec)
		}
	}
	if len(duplicates) > 0 {
		if err := s.stagedRepo.UpdateMany(ctx, duplicates); err != nil {
			return s.fail(ctx, tr, err.Error())
		}
	}

	failures := conflicts
	if failures > s.config.ErrorBudget {
		return s.abort(ctx, tr, failures)
	}

	pending := make([]*stagedrecord.StagedRecord, 0, len(records))
	for _, rec := range records {
		if rec.Status() == stagedrecord.StatusPending {
			pending = append(pending, rec)
		}
	}

	batchSize := s.config.BatchSize
	if s.chain.Empty() {
		batchSize = s.config.FastBatchSize
	}

	for start := 0; start < len(pending); start += batchSize {
		end := min(start+batchSize, len(pending))
		batch := pending[start:end]

		s.validateBatch(ctx, req, batch)

		// Truncate at the budget: once it is exceeded, outcomes from this
		// point on are discarded and the records stay Pending, so the store
		// never holds more failures than the budget allows.
		cut := -1
		for i, rec := range batch {
			if rec.Status() == stagedrecord.StatusError {
				failures++
				if failures > s.config.ErrorBudget {
					cut = i
					break
				}
			}
		}
		if cut >= 0 {
			for _, rec := range batch[cut:] {
				rec.MarkPending()
			}
			if cut > 0 {
				if err := s.stagedRepo.UpdateMany(ctx, batch[:cut]); err != nil {
					return s.fail(ctx, tr, err.Error())
				}
			}
			return s.abort(ctx, tr, failures)
		}

		if err := s.stagedRepo.UpdateMany(ctx, batch); err != nil {
			return s.fail(ctx, tr, err.Error())
		}
	}

	counts, err := s.stagedRepo.Counts(ctx, req.FileID)
	if err != nil {
		return s.fail(ctx, tr, err.Error())
	}
	if err := s.transition(ctx, tr, transfer.StatusValidated, transfer.CountsFromStaged(counts), ""); err != nil {
		return err
	}

	s.publish(transfer.NewValidationCompletedEvent(tr))
	log.WithField("counts", tr.Counts()).Info("import: validation completed")
	return nil
}

// validateBatch runs access filtering, schema validation and the simulation
// chain over one batch with bounded parallelism. Failures are recorded on the
// records themselves; the batch as a whole never fails.
func (s *ValidationService) validateBatch(ctx context.Context, req *ImportRequest, batch []*stagedrecord.StagedRecord) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.Parallelism)

	for _, rec := range batch {
		rec := rec
		g.Go(func() error {
			s.validateRecord(gctx, req, rec)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *ValidationService) validateRecord(ctx context.Context, req *ImportRequest, rec *stagedrecord.StagedRecord) {
	if s.access != nil && !s.access.Allows(ctx, rec.Data()) {
		rec.MarkError(stagedrecord.ErrorSourcePlatform, "access denied")
		metrics.RecordsFailed.WithLabelValues(string(stagedrecord.ErrorSourcePlatform)).Inc()
		return
	}

	if err := req.Schema.Validate(rec.Data()); err != nil {
		rec.MarkError(stagedrecord.ErrorSourcePlatform, err.Error())
		metrics.RecordsFailed.WithLabelValues(string(stagedrecord.ErrorSourcePlatform)).Inc()
		return
	}

	op := simulation.OperationCreate
	if _, ok := rec.Identifier(req.Schema.Identifier()); ok {
		op = simulation.OperationUpdate
	}
	enriched, err := s.chain.Simulate(ctx, rec.Data(), op)
	if err != nil {
		source := stagedrecord.ErrorSourcePlatform
		var simErr *simulation.Error
		if errors.As(err, &simErr) {
			source = stagedrecord.ErrorSourceBusiness
		}
		rec.MarkError(source, err.Error())
		metrics.RecordsFailed.WithLabelValues(string(source)).Inc()
		return
	}

	rec.MarkValidated(enriched)
	metrics.RecordsValidated.Inc()
}

// markDuplicates flags every member of a same-file identifier group with more
// than one record.
func markDuplicates(records []*stagedrecord.StagedRecord, identifierField string) {
	groups := make(map[string][]*stagedrecord.StagedRecord)
	for _, rec := range records {
		if id, ok := rec.Identifier(identifierField); ok {
			groups[id] = append(groups[id], rec)
		}
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}
		for _, rec := range group {
			rec.MarkDuplicate(false)
		}
	}
}

// markConflicts flags records whose identifier already exists in the primary
// store. A conflict strictly overrides a same-file duplicate mark. Returns the
// number of conflicting records.
func (s *ValidationService) markConflicts(ctx context.Context, records []*stagedrecord.StagedRecord, identifierField string) (int, error) {
	byID := make(map[string][]*stagedrecord.StagedRecord)
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		id, ok := rec.Identifier(identifierField)
		if !ok {
			continue
		}
		if _, seen := byID[id]; !seen {
			ids = append(ids, id)
		}
		byID[id] = append(byID[id], rec)
	}

	conflicts := 0
	for start := 0; start < len(ids); start += conflictLookupChunk {
		end := min(start+conflictLookupChunk, len(ids))
		docs, err := s.recordStore.FindByIdentifiers(ctx, ids[start:end])
		if err != nil {
			return 0, err
		}
		for _, doc := range docs {
			for _, rec := range byID[doc.Identifier] {
				rec.MarkDuplicate(true)
				conflicts++
			}
		}
	}
	return conflicts, nil
}

func (s *ValidationService) abort(ctx context.Context, tr *transfer.Transfer, failures int) error {
	metrics.RunsAborted.WithLabelValues("error_budget").Inc()
	msg := fmt.Sprintf("too many errors: aborted after %d failed records (budget %d); remaining records were not processed", failures, s.config.ErrorBudget)
	return s.fail(ctx, tr, msg)
}

func (s *ValidationService) fail(ctx context.Context, tr *transfer.Transfer, message string) error {
	counts, err := s.stagedRepo.Counts(ctx, tr.FileID())
	if err != nil {
		s.log().WithError(err).Error("import: failed to recompute counts")
	}
	if err := s.transition(ctx, tr, transfer.StatusError, transfer.CountsFromStaged(counts), message); err != nil {
		return err
	}
	s.publish(transfer.NewValidationCompletedEvent(tr))
	return nil
}

func (s *ValidationService) transition(ctx context.Context, tr *transfer.Transfer, to transfer.Status, counts transfer.Counts, message string) error {
	if err := tr.Transition(to, counts, message); err != nil {
		return err
	}
	return s.transferRepo.Save(ctx, tr)
}

func (s *ValidationService) publish(event any) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

func (s *ValidationService) log() *logrus.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logrus.StandardLogger()
}
