package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/topika/internal/content"
	"github.com/hyperengineering/topika/internal/generate"
	"github.com/hyperengineering/topika/internal/recovery"
	"github.com/hyperengineering/topika/internal/store"
	"github.com/hyperengineering/topika/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	library   *store.Library
	generator *generate.Generator
	version   string
}

// NewHandler creates a new Handler.
func NewHandler(l *store.Library, g *generate.Generator, version string) *Handler {
	return &Handler{
		library:   l,
		generator: g,
		version:   version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// HealthResponse is the GET /health payload.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Model        string `json:"model"`
	ContentCount int    `json:"content_count"`
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "healthy",
		Version:      h.version,
		Model:        h.generator.ModelName(),
		ContentCount: len(h.library.All()),
	})
}

// GenerateRequest is the POST /content/generate payload.
type GenerateRequest struct {
	Type  string `json:"type"`
	Level string `json:"level"`
}

// GenerateContent handles POST /api/v1/content/generate
func (h *Handler) GenerateContent(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("type", req.Type))
	c.Add(validation.ValidateContentType("type", req.Type))
	c.Add(validation.ValidateRequired("level", req.Level))
	c.Add(validation.ValidateMaxLength("level", req.Level, 50))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	rec := h.generator.Generate(r.Context(), req.Type, req.Level)
	writeJSON(w, http.StatusOK, rec)
}

// RegenerateRequest is the POST /content/regenerate payload.
type RegenerateRequest struct {
	OriginalContent map[string]any `json:"original_content"`
	UserComment     string         `json:"user_comment"`
}

// RegenerateContent handles POST /api/v1/content/regenerate
func (h *Handler) RegenerateContent(w http.ResponseWriter, r *http.Request) {
	var req RegenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	if len(req.OriginalContent) == 0 {
		c.Add(&validation.ValidationError{Field: "original_content", Message: "is required"})
	}
	c.Add(validation.ValidateRequired("user_comment", req.UserComment))
	c.Add(validation.ValidateMaxLength("user_comment", req.UserComment, 2000))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	rec := h.generator.Regenerate(r.Context(), content.Record(req.OriginalContent), req.UserComment)
	writeJSON(w, http.StatusOK, rec)
}

// SaveResponse is the POST /content payload result.
type SaveResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// SaveContent handles POST /api/v1/content. The body is the record
// itself and runs through the recovery cascade, so double-encoded or
// lightly malformed payloads pasted from model output still save. The
// record is validated against its variant shape and saved even when the
// shape check degrades it.
func (h *Handler) SaveContent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Could not read request body")
		return
	}

	m, err := recovery.Parse(string(body))
	if err != nil {
		if errors.Is(err, recovery.ErrEmptyInput) {
			WriteProblem(w, r, http.StatusBadRequest, "Empty request body")
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Body is not a JSON object: %s", err.Error()))
		return
	}

	rec, err := content.Normalize(m, "", "")
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, "Body must be a JSON object")
		return
	}

	if rec.Type() == "" {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{
			{Field: "type", Message: "is required"},
		})
		return
	}

	outcome := content.Validate(rec)
	if outcome.Status == content.StatusRejected {
		WriteProblemWithErrors(w, r, "Content could not be validated", []validation.ValidationError{
			{Field: "content", Message: outcome.Reason},
		})
		return
	}

	id, err := h.library.SaveContent(rec)
	if err != nil {
		slog.Error("save failed", "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, SaveResponse{
		ID:     id,
		Status: string(outcome.Status),
		Reason: outcome.Reason,
	})
}

// ListResponse wraps a record collection.
type ListResponse struct {
	Items []content.Record `json:"items"`
	Count int              `json:"count"`
}

// ListContent handles GET /api/v1/content with optional q, type and level
// query filters.
func (h *Handler) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := h.library.Search(q.Get("q"), q.Get("type"), q.Get("level"))
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// GetContent handles GET /api/v1/content/{id}
func (h *Handler) GetContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, ok := h.library.GetByID(id)
	if !ok {
		WriteProblem(w, r, http.StatusNotFound, "Resource not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteContent handles DELETE /api/v1/content/{id}: permanent removal
// from the active store, bypassing the trash.
func (h *Handler) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.library.Delete(id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// TrashContent handles POST /api/v1/content/{id}/trash
func (h *Handler) TrashContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.library.Trash(id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "trashed": true})
}

// ListTrash handles GET /api/v1/trash
func (h *Handler) ListTrash(w http.ResponseWriter, r *http.Request) {
	items := h.library.TrashAll()
	writeJSON(w, http.StatusOK, ListResponse{Items: items, Count: len(items)})
}

// RestoreContent handles POST /api/v1/trash/{id}/restore
func (h *Handler) RestoreContent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.library.Restore(id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "restored": true})
}

// DeleteFromTrash handles DELETE /api/v1/trash/{id}
func (h *Handler) DeleteFromTrash(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.library.DeleteFromTrash(id); err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// EmptyTrash handles DELETE /api/v1/trash
func (h *Handler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	removed, err := h.library.EmptyTrash()
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": removed})
}

// ListBackups handles GET /api/v1/backups
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	infos, err := h.library.ListBackups()
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": infos, "count": len(infos)})
}

// CreateBackup handles POST /api/v1/backups
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	path, err := h.library.CreateManualBackup()
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"filename": filepath.Base(path)})
}

// RestoreBackupRequest is the POST /backups/restore payload.
type RestoreBackupRequest struct {
	Filename string `json:"filename"`
}

// RestoreBackup handles POST /api/v1/backups/restore
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	var req RestoreBackupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if e := validation.ValidateRequired("filename", req.Filename); e != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*e})
		return
	}

	restored, safetyNet, err := h.library.RestoreFromBackup(req.Filename)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"restored":   restored,
		"safety_net": filepath.Base(safetyNet),
	})
}

// DownloadBackup handles GET /api/v1/backups/{name}/download
func (h *Handler) DownloadBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	path, err := h.library.ResolveBackup(name)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}
