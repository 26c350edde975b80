package api

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/historian/internal/models"
	"github.com/starford/historian/internal/parser"
	"github.com/starford/historian/internal/storage"
)

// DocumentHandler serves the raw source documents read-only.
type DocumentHandler struct {
	src storage.Source
}

// NewDocumentHandler creates a handler over src.
func NewDocumentHandler(src storage.Source) *DocumentHandler {
	return &DocumentHandler{src: src}
}

// List handles GET /api/documents.
//
//	@Summary		List source documents and whether they follow the naming convention
//	@Tags			documents
//	@Produce		json
//	@Success		200	{object}	DocumentListResponse
//	@Router			/documents [get]
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.src.List(r.Context())
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	items := make([]DocumentItem, 0, len(entries))
	for _, e := range entries {
		item := DocumentItem{Name: e.Name, Size: e.Size, ModTime: e.ModTime}
		if created, title, ok := parser.ParseFilename(e.Name); ok {
			item.Created, item.Title, item.Accepted = created, title, true
			item.EventID = models.EventID(created, title)
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	writeJSON(w, http.StatusOK, DocumentListResponse{Documents: items})
}

// Serve handles GET /api/documents/{name}.
//
//	@Summary		Get the raw Markdown of one document
//	@Tags			documents
//	@Produce		text/markdown
//	@Param			name	path	string	true	"File name"
//	@Success		200		{string}	string
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Router			/documents/{name} [get]
func (h *DocumentHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cleaned := filepath.Clean(name)
	if name == "" || cleaned != filepath.Base(cleaned) || strings.Contains(cleaned, "..") || !strings.HasSuffix(cleaned, ".md") {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid document name"))
		return
	}
	data, err := h.src.Read(r.Context(), cleaned)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeJSON(w, http.StatusNotFound, errorBody("not found"))
			return
		}
		slog.Error("read document failed", slog.String("name", cleaned), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
