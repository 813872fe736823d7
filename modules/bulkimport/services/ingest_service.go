package services

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/mappingspec"
	"github.com/fieldline/importhub/modules/bulkimport/domain/record"
	"github.com/fieldline/importhub/modules/bulkimport/domain/schema"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/blob"
	"github.com/fieldline/importhub/pkg/metrics"
	"github.com/fieldline/importhub/pkg/serrors"
)

var (
	ErrEmptyFileID = serrors.NewError("EMPTY_FILE_ID", "file id must not be empty", "")
	ErrParse       = serrors.NewError("PARSE_ERROR", "failed to parse import file", "")
)

// ImportRequest describes one import run. Mapping and Schema may be nil for
// schema-free imports, where the raw row is staged as-is.
type ImportRequest struct {
	FileID    string
	FileName  string
	User      string
	HasHeader bool
	Mapping   *mappingspec.Spec
	Schema    *schema.TargetSchema
}

// IngestService pulls the uploaded file from the blob store, parses it, maps
// each row and fills the staging area. A re-run replaces the previous staging
// rows for the same file wholesale.
type IngestService struct {
	blobStore  blob.Store
	stagedRepo stagedrecord.Repository
}

func NewIngestService(blobStore blob.Store, stagedRepo stagedrecord.Repository) *IngestService {
	return &IngestService{blobStore: blobStore, stagedRepo: stagedRepo}
}

// Ingest stages the file's rows as Pending records and returns how many were
// staged. Blob store misses pass through unwrapped so callers can classify them.
func (s *IngestService) Ingest(ctx context.Context, req *ImportRequest) (int, error) {
	data, err := s.blobStore.Read(ctx, req.FileID)
	if err != nil {
		return 0, err
	}

	rows, err := parseRows(data, req.FileName, req.HasHeader)
	if err != nil {
		return 0, err
	}

	staged := make([]*stagedrecord.StagedRecord, 0, len(rows))
	for _, row := range rows {
		payload := mapRow(row.data, req)
		if payload.IsEmpty() {
			continue
		}
		staged = append(staged, stagedrecord.New(req.FileID, row.sequenceNo, payload))
	}

	err = inTx(ctx, func(txCtx context.Context) error {
		if err := s.stagedRepo.DeleteByFileID(txCtx, req.FileID); err != nil {
			return err
		}
		return s.stagedRepo.BulkCreate(txCtx, staged)
	})
	if err != nil {
		return 0, errors.Wrap(err, "failed to stage records")
	}

	metrics.RecordsStaged.Add(float64(len(staged)))
	return len(staged), nil
}

func mapRow(row record.Payload, req *ImportRequest) record.Payload {
	if req.Mapping == nil || (req.Schema != nil && req.Schema.SchemaFree) {
		return row
	}
	return req.Mapping.Map(row)
}

type parsedRow struct {
	sequenceNo int
	data       record.Payload
}

func parseRows(data []byte, fileName string, hasHeader bool) ([]parsedRow, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm", ".xls":
		return parseSpreadsheet(data, hasHeader)
	default:
		return parseJSON(data)
	}
}

// parseSpreadsheet reads the first sheet. With a header row, columns are keyed
// by header cell and data rows number from 1; without one, columns are keyed
// by position and rows number from 0. Blank cells are omitted so downstream
// pruning treats them as absent.
func parseSpreadsheet(data []byte, hasHeader bool) ([]parsedRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, ErrParse.WithMessage("failed to open spreadsheet: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrParse.WithMessage("spreadsheet has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, ErrParse.WithMessage("failed to read sheet %s: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var header []string
	start := 0
	if hasHeader {
		header = rows[0]
		start = 1
	}

	out := make([]parsedRow, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		payload := record.Payload{}
		for col, cell := range rows[i] {
			if cell == "" {
				continue
			}
			key := strconv.Itoa(col)
			if col < len(header) && header[col] != "" {
				key = header[col]
			}
			payload[key] = cell
		}
		if len(payload) == 0 {
			continue
		}
		out = append(out, parsedRow{sequenceNo: i, data: payload})
	}
	return out, nil
}

// parseJSON accepts an array of objects or a single object, which is treated
// as a one-row import.
func parseJSON(data []byte) ([]parsedRow, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	var rows []record.Payload
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return nil, ErrParse.WithMessage("malformed JSON array: %v", err)
		}
	} else {
		var single record.Payload
		if err := json.Unmarshal(trimmed, &single); err != nil {
			return nil, ErrParse.WithMessage("malformed JSON object: %v", err)
		}
		rows = []record.Payload{single}
	}

	out := make([]parsedRow, 0, len(rows))
	for i, row := range rows {
		if row.IsEmpty() {
			continue
		}
		out = append(out, parsedRow{sequenceNo: i, data: row})
	}
	return out, nil
}
