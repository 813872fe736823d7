package services

import (
	"context"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
)

// TransferService is the read side of the pipeline: run status, the
// notification inbox and drill-down into staged records.
type TransferService struct {
	transferRepo transfer.Repository
	stagedRepo   stagedrecord.Repository
}

func NewTransferService(transferRepo transfer.Repository, stagedRepo stagedrecord.Repository) *TransferService {
	return &TransferService{transferRepo: transferRepo, stagedRepo: stagedRepo}
}

func (s *TransferService) GetByFileID(ctx context.Context, fileID string) (*transfer.Transfer, error) {
	return s.transferRepo.GetByFileID(ctx, fileID)
}

func (s *TransferService) List(ctx context.Context, params *transfer.FindParams) ([]*transfer.Transfer, error) {
	return s.transferRepo.List(ctx, params)
}

// MarkRead acknowledges the transfer's latest state change.
func (s *TransferService) MarkRead(ctx context.Context, fileID string) (*transfer.Transfer, error) {
	tr, err := s.transferRepo.GetByFileID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	tr.MarkRead()
	if err := s.transferRepo.Save(ctx, tr); err != nil {
		return nil, err
	}
	return tr, nil
}

func (s *TransferService) ListStagedRecords(ctx context.Context, params *stagedrecord.FindParams) ([]*stagedrecord.StagedRecord, error) {
	return s.stagedRepo.GetByFileID(ctx, params)
}
