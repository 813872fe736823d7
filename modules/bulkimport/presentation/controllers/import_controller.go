// Package controllers exposes the import pipeline over a JSON API. Validation
// and commit are asynchronous: both answer 202 and the caller polls the
// transfer resource (or subscribes to completion events) for the outcome.
package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/stagedrecord"
	"github.com/fieldline/importhub/modules/bulkimport/domain/entities/transfer"
	"github.com/fieldline/importhub/modules/bulkimport/domain/mappingspec"
	"github.com/fieldline/importhub/modules/bulkimport/domain/schema"
	"github.com/fieldline/importhub/modules/bulkimport/infrastructure/persistence"
	"github.com/fieldline/importhub/modules/bulkimport/services"
	"github.com/fieldline/importhub/pkg/httpapi"
	"github.com/fieldline/importhub/pkg/serrors"
)

type ImportController struct {
	validation *services.ValidationService
	commit     *services.CommitService
	transfers  *services.TransferService
	logger     *logrus.Logger
}

func NewImportController(
	validation *services.ValidationService,
	commit *services.CommitService,
	transfers *services.TransferService,
	logger *logrus.Logger,
) *ImportController {
	return &ImportController{
		validation: validation,
		commit:     commit,
		transfers:  transfers,
		logger:     logger,
	}
}

func (c *ImportController) Key() string {
	return "/imports"
}

func (c *ImportController) Register(r *mux.Router) {
	router := r.PathPrefix("/imports").Subrouter()
	router.HandleFunc("", c.list).Methods(http.MethodGet)
	router.HandleFunc("/{fileId}", c.get).Methods(http.MethodGet)
	router.HandleFunc("/{fileId}/validate", c.validate).Methods(http.MethodPost)
	router.HandleFunc("/{fileId}/commit", c.commitRun).Methods(http.MethodPost)
	router.HandleFunc("/{fileId}/read", c.markRead).Methods(http.MethodPost)
	router.HandleFunc("/{fileId}/records", c.records).Methods(http.MethodGet)
}

type validateRequest struct {
	FileName        string            `json:"fileName"`
	User            string            `json:"user"`
	HasHeader       bool              `json:"hasHeader"`
	Mapping         *mappingspec.Spec `json:"mapping"`
	IdentifierField string            `json:"identifierField"`
	Rules           map[string]any    `json:"rules"`
	SchemaFree      bool              `json:"schemaFree"`
}

func (c *ImportController) validate(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	var body validateRequest
	if err := decodeBody(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	_, err := c.validation.BeginValidation(r.Context(), &services.ImportRequest{
		FileID:    fileID,
		FileName:  body.FileName,
		User:      body.User,
		HasHeader: body.HasHeader,
		Mapping:   body.Mapping,
		Schema: &schema.TargetSchema{
			IdentifierField: body.IdentifierField,
			Rules:           body.Rules,
			SchemaFree:      body.SchemaFree,
		},
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteAccepted(w, fileID)
}

type commitRequest struct {
	IdentifierField string `json:"identifierField"`
	Creates         []int  `json:"creates"`
	Updates         []int  `json:"updates"`
	Ignores         []int  `json:"ignores"`
}

func (c *ImportController) commitRun(w http.ResponseWriter, r *http.Request) {
	fileID := mux.Vars(r)["fileId"]

	var body commitRequest
	if err := decodeBody(r, &body); err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	_, err := c.commit.Commit(r.Context(), &services.CommitRequest{
		FileID:          fileID,
		IdentifierField: body.IdentifierField,
		Creates:         body.Creates,
		Updates:         body.Updates,
		Ignores:         body.Ignores,
	})
	if err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteAccepted(w, fileID)
}

func (c *ImportController) get(w http.ResponseWriter, r *http.Request) {
	tr, err := c.transfers.GetByFileID(r.Context(), mux.Vars(r)["fileId"])
	if err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toTransferResponse(tr))
}

func (c *ImportController) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := &transfer.FindParams{
		User:       q.Get("user"),
		UnreadOnly: q.Get("unread") == "true",
		Limit:      intQuery(q.Get("limit")),
		Offset:     intQuery(q.Get("offset")),
	}
	out, err := c.transfers.List(r.Context(), params)
	if err != nil {
		c.writeError(w, err)
		return
	}
	resp := make([]*transferResponse, 0, len(out))
	for _, tr := range out {
		resp = append(resp, toTransferResponse(tr))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ImportController) markRead(w http.ResponseWriter, r *http.Request) {
	tr, err := c.transfers.MarkRead(r.Context(), mux.Vars(r)["fileId"])
	if err != nil {
		c.writeError(w, err)
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, toTransferResponse(tr))
}

func (c *ImportController) records(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := &stagedrecord.FindParams{
		FileID: mux.Vars(r)["fileId"],
		Limit:  intQuery(q.Get("limit")),
		Offset: intQuery(q.Get("offset")),
	}
	if status := q.Get("status"); status != "" {
		params.Statuses = []stagedrecord.Status{stagedrecord.Status(status)}
	}
	out, err := c.transfers.ListStagedRecords(r.Context(), params)
	if err != nil {
		c.writeError(w, err)
		return
	}
	resp := make([]*stagedRecordResponse, 0, len(out))
	for _, rec := range out {
		resp = append(resp, toStagedRecordResponse(rec))
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, resp)
}

func (c *ImportController) writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, persistence.ErrTransferNotFound) {
		_ = httpapi.WriteError(w, http.StatusNotFound, "TRANSFER_NOT_FOUND", "no import run for this file", nil)
		return
	}

	code := serrors.CodeOf(err)
	switch code {
	case "EMPTY_FILE_ID", "PARSE_ERROR", "INVALID_BODY":
		_ = httpapi.WriteError(w, http.StatusBadRequest, code, err.Error(), nil)
	case "IMPORT_IN_PROGRESS", "COMMIT_NOT_ALLOWED":
		_ = httpapi.WriteError(w, http.StatusConflict, code, err.Error(), nil)
	case "BLOB_NOT_FOUND":
		_ = httpapi.WriteError(w, http.StatusNotFound, code, err.Error(), nil)
	default:
		if c.logger != nil {
			c.logger.WithError(err).Error("imports: request failed")
		}
		_ = httpapi.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(v)
}

func intQuery(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

type transferResponse struct {
	FileID    string          `json:"fileId"`
	FileName  string          `json:"fileName,omitempty"`
	User      string          `json:"user,omitempty"`
	Status    transfer.Status `json:"status"`
	Counts    transfer.Counts `json:"counts"`
	Message   string          `json:"message,omitempty"`
	IsRead    bool            `json:"isRead"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

func toTransferResponse(tr *transfer.Transfer) *transferResponse {
	return &transferResponse{
		FileID:    tr.FileID(),
		FileName:  tr.FileName(),
		User:      tr.User(),
		Status:    tr.Status(),
		Counts:    tr.Counts(),
		Message:   tr.Message(),
		IsRead:    tr.IsRead(),
		CreatedAt: tr.CreatedAt(),
		UpdatedAt: tr.UpdatedAt(),
	}
}

type stagedRecordResponse struct {
	ID          string              `json:"id"`
	SequenceNo  int                 `json:"sequenceNo"`
	Data        map[string]any      `json:"data"`
	Status      stagedrecord.Status `json:"status"`
	Conflict    bool                `json:"conflict"`
	Message     string              `json:"message,omitempty"`
	ErrorSource string              `json:"errorSource,omitempty"`
}

func toStagedRecordResponse(rec *stagedrecord.StagedRecord) *stagedRecordResponse {
	return &stagedRecordResponse{
		ID:          rec.ID().String(),
		SequenceNo:  rec.SequenceNo(),
		Data:        rec.Data(),
		Status:      rec.Status(),
		Conflict:    rec.Conflict(),
		Message:     rec.Message(),
		ErrorSource: string(rec.ErrorSource()),
	}
}
