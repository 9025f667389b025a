package api

import (
	"bytes"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/starford/quill/internal/bookstore"
)

// maxUploadBytes leaves room for multipart framing around a maximum-size
// cover image.
const maxUploadBytes = bookstore.MaxCoverBytes + 1<<20

// UploadCover handles POST /api/books/cover?path=&kind= (multipart/form-data,
// field "file"). The image format comes from the file name extension and is
// checked against the file's magic bytes.
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	kind, ok := coverKind(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("file name has no extension"))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}

	meta, err := h.svc.SaveCover(r.Context(), path, kind, ext, data)
	if err != nil {
		writeError(w, "upload cover", err)
		return
	}
	writeJSON(w, http.StatusCreated, CoverUploadResponse{
		Kind:     string(kind),
		Size:     len(data),
		Metadata: meta,
	})
}

// ServeCover handles GET /api/books/cover?path=&kind=.
func (h *Handler) ServeCover(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	kind, ok := coverKind(w, r)
	if !ok {
		return
	}
	data, name, err := h.svc.Cover(r.Context(), path, kind)
	if err != nil {
		writeError(w, "serve cover", err)
		return
	}
	http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(data))
}
