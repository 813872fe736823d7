package bulkimport

import (
	"embed"

	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/blob"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/hooks"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence"
	"github.com/fieldline/importhub/modules/bulkimport/presentation/controllers"
	"github.com/fieldline/importhub/modules/bulkimport/services"
	"github.com/fieldline/importhub/pkg/application"
	"github.com/fieldline/importhub/pkg/configuration"
)

//go:embed infrastructure/persistence/schema/bulkimport-schema.sql
var schemaFS embed.FS

type Module struct{}

func NewModule() *Module {
	return &Module{}
}

func (m *Module) Name() string {
	return "bulkimport"
}

func (m *Module) Register(app application.Application) error {
	conf := configuration.Use()

	var blobStore blob.Store
	if conf.Blob.UseMinio() {
		store, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  conf.Blob.Endpoint,
			AccessKey: conf.Blob.AccessKey,
			SecretKey: conf.Blob.SecretKey,
			UseSSL:    conf.Blob.UseSSL,
			Bucket:    conf.Blob.Bucket,
		})
		if err != nil {
			return err
		}
		blobStore = store
	} else {
		blobStore = blob.NewLocalStore(conf.Blob.LocalDir)
	}

	chain, err := hooks.BuildChain(conf.Hooks.URLList(), conf.Hooks.Timeout)
	if err != nil {
		return err
	}

	stagedRepo := persistence.NewStagedRecordRepository()
	transferRepo := persistence.NewTransferRepository()
	recordStore := persistence.NewPgRecordStore()

	ingestService := services.NewIngestService(blobStore, stagedRepo)
	validationService := services.NewValidationService(services.ValidationServiceOptions{
		Pool:         app.DB(),
		Ingest:       ingestService,
		StagedRepo:   stagedRepo,
		TransferRepo: transferRepo,
		RecordStore:  recordStore,
		Chain:        chain,
		Publisher:    app.EventPublisher(),
		Runner:       app.Tasks(),
		Config:       conf.Import,
		Logger:       app.Logger(),
	})
	commitService := services.NewCommitService(services.CommitServiceOptions{
		Pool:         app.DB(),
		StagedRepo:   stagedRepo,
		TransferRepo: transferRepo,
		RecordStore:  recordStore,
		Publisher:    app.EventPublisher(),
		Runner:       app.Tasks(),
		Config:       conf.Import,
		Logger:       app.Logger(),
	})
	transferService := services.NewTransferService(transferRepo, stagedRepo)

	app.RegisterServices(ingestService, validationService, commitService, transferService)
	app.RegisterControllers(controllers.NewImportController(
		validationService,
		commitService,
		transferService,
		app.Logger(),
	))
	app.Migrations().RegisterSchema(&schemaFS)
	return nil
}
