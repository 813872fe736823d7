package services_test

import (
	"github.com/sirupsen/logrus"

	"github.com/fieldline/importhub/modules/bulkimport/domain/simulation"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/blob"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence"
	"github.com/fieldline/importhub/modules/bulkimport/services"
	"github.com/fieldline/importhub/pkg/configuration"
	"github.com/fieldline/importhub/pkg/tasks"
)

func testImportConfig() configuration.ImportOptions {
	return configuration.ImportOptions{
		BatchSize:     500,
		FastBatchSize: 2500,
		Parallelism:   4,
		ErrorBudget:   100,
	}
}

type fixture struct {
	staged    *persistence.MemoryStagedRecordRepository
	transfers *persistence.MemoryTransferRepository
	store     *persistence.MemoryRecordStore
	blobs     *blob.MemoryStore
	runner    *tasks.Runner
}

func newFixture() *fixture {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return &fixture{
		staged:    persistence.NewMemoryStagedRecordRepository(),
		transfers: persistence.NewMemoryTransferRepository(),
		store:     persistence.NewMemoryRecordStore(),
		blobs:     blob.NewMemoryStore(),
		runner:    tasks.NewRunner(log),
	}
}

func (f *fixture) validationService(cfg configuration.ImportOptions, chain *simulation.Chain, access simulation.AccessFilter) *services.ValidationService {
	return services.NewValidationService(services.ValidationServiceOptions{
		Ingest:       services.NewIngestService(f.blobs, f.staged),
		StagedRepo:   f.staged,
		TransferRepo: f.transfers,
		RecordStore:  f.store,
		Chain:        chain,
		AccessFilter: access,
		Runner:       f.runner,
		Config:       cfg,
	})
}

func (f *fixture) commitService(cfg configuration.ImportOptions) *services.CommitService {
	return services.NewCommitService(services.CommitServiceOptions{
		StagedRepo:   f.staged,
		TransferRepo: f.transfers,
		RecordStore:  f.store,
		Runner:       f.runner,
		Config:       cfg,
	})
}
