package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kbase/kbase/internal/auth"
	"github.com/kbase/kbase/internal/repository"
	"github.com/kbase/kbase/internal/search"
	"github.com/kbase/kbase/internal/service"
)

type handlers struct {
	search    *search.Service
	documents *service.DocumentService
	users     repository.UserRepository
	logger    *slog.Logger
}

func (h *handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	user, err := h.users.GetByID(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "user not found")
			return
		}
		h.logger.Error("user lookup failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"id":       user.ID.String(),
		"username": user.Username,
		"email":    user.Email,
	})
}

// searchRequest is the public search payload. Optional fields are
// pointers so absent values get defaults while explicit zero values are
// still validated and rejected.
type searchRequest struct {
	Query      string   `json:"query"`
	SearchType string   `json:"searchType"`
	MaxResults *int     `json:"maxResults,omitempty"`
	MinScore   *float64 `json:"minScore,omitempty"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	mode := search.ModeSemantic
	if body.SearchType != "" {
		var err error
		mode, err = search.ParseMode(body.SearchType)
		if err != nil {
			h.writeSearchError(w, err)
			return
		}
	}

	req := &search.Request{
		Query:      body.Query,
		UserID:     identity.UserID,
		Username:   identity.Username,
		Mode:       mode,
		MaxResults: search.DefaultMaxResults,
		MinScore:   search.DefaultMinScore,
	}
	if body.MaxResults != nil {
		req.MaxResults = *body.MaxResults
	}
	if body.MinScore != nil {
		req.MinScore = *body.MinScore
	}

	resp, err := h.search.Search(r.Context(), req)
	if err != nil {
		h.writeSearchError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeSearchError maps engine failures onto HTTP statuses: bad input
// is the caller's fault, upstream failures are a bad gateway, and a
// deadline overrun is a gateway timeout.
func (h *handlers) writeSearchError(w http.ResponseWriter, err error) {
	var validationErr *search.ValidationError
	var upstreamErr *search.UpstreamError

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_error", validationErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "search timed out")
	case errors.As(err, &upstreamErr):
		h.logger.Error("upstream search failure", "source", upstreamErr.Source, "error", err)
		writeError(w, http.StatusBadGateway, "upstream_error", upstreamErr.Source+" is unavailable")
	default:
		h.logger.Error("search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
	}
}

type ingestRequest struct {
	FileName string   `json:"fileName"`
	FileType string   `json:"fileType"`
	FileSize int64    `json:"fileSize"`
	Chunks   []string `json:"chunks"`
}

type fileResponse struct {
	ID         string `json:"id"`
	FileName   string `json:"fileName"`
	FileType   string `json:"fileType"`
	FileSize   int64  `json:"fileSize"`
	ChunkCount int    `json:"chunkCount"`
	Status     string `json:"status"`
	UploadedAt string `json:"uploadedAt"`
}

func fileResponseFrom(record *repository.FileRecord) fileResponse {
	return fileResponse{
		ID:         record.ID.String(),
		FileName:   record.FileName,
		FileType:   record.FileType,
		FileSize:   record.FileSize,
		ChunkCount: record.ChunkCount,
		Status:     record.Status,
		UploadedAt: record.UploadedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (h *handlers) handleIngestFile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var body ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if body.FileName == "" || len(body.Chunks) == 0 {
		writeError(w, http.StatusBadRequest, "validation_error", "fileName and chunks are required")
		return
	}

	record, err := h.documents.Ingest(r.Context(), &service.IngestRequest{
		UserID:   identity.UserID,
		Username: identity.Username,
		FileName: body.FileName,
		FileType: body.FileType,
		FileSize: body.FileSize,
		Chunks:   body.Chunks,
	})
	if err != nil {
		h.logger.Error("file ingest failed", "file_name", body.FileName, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to index file")
		return
	}

	writeJSON(w, http.StatusCreated, fileResponseFrom(record))
}

func (h *handlers) handleListFiles(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	records, total, err := h.documents.List(r.Context(), identity.UserID, 20, 0)
	if err != nil {
		h.logger.Error("file listing failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to list files")
		return
	}

	files := make([]fileResponse, 0, len(records))
	for _, record := range records {
		files = append(files, fileResponseFrom(record))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"files": files,
		"total": total,
	})
}

func (h *handlers) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	fileID, err := uuid.Parse(chi.URLParam(r, "fileID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid file ID")
		return
	}

	err = h.documents.Delete(r.Context(), identity.UserID, identity.Username, fileID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "file not found")
	case errors.Is(err, service.ErrNotOwner):
		writeError(w, http.StatusForbidden, "forbidden", "file belongs to another user")
	default:
		h.logger.Error("file deletion failed", "file_id", fileID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete file")
	}
}

func (h *handlers) handleDeleteAllFiles(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	if err := h.documents.DeleteAll(r.Context(), identity.UserID, identity.Username); err != nil {
		h.logger.Error("collection deletion failed", "user_id", identity.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to delete files")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
