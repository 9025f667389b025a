package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quill/internal/bookservice"
	"github.com/starford/quill/internal/bookstore"
	"github.com/starford/quill/internal/models"
)

// defaultSearchLimit applies when ?limit= is absent or invalid.
const defaultSearchLimit = 20

// Handler holds API route handlers.
type Handler struct {
	svc *bookservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *bookservice.Service) *Handler {
	return &Handler{svc: svc}
}

// bookPath returns the ?path= query parameter, writing 400 when it is empty.
func bookPath(w http.ResponseWriter, r *http.Request) (string, bool) {
	p := r.URL.Query().Get("path")
	if p == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'path' is required"))
		return "", false
	}
	return p, true
}

// decode reads the body into v and runs its Validate method when it has one.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := decodeJSON(w, r, v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return false
	}
	if vv, ok := v.(validation.Validatable); ok {
		if err := vv.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
			return false
		}
	}
	return true
}

// ListLibrary handles GET /api/library.
//
//	@Summary		List known books, most recently opened first
//	@Tags			library
//	@Produce		json
//	@Success		200	{object}	models.LibraryIndex
//	@Security		BearerAuth
//	@Router			/library [get]
func (h *Handler) ListLibrary(w http.ResponseWriter, r *http.Request) {
	idx, err := h.svc.ListLibrary(r.Context())
	if err != nil {
		writeError(w, "list library", err)
		return
	}
	writeJSON(w, http.StatusOK, idx)
}

// OpenBook handles POST /api/library/open.
//
//	@Summary		Resolve a path to a book, load it and mark it opened
//	@Tags			library
//	@Accept			json
//	@Produce		json
//	@Param			body	body		OpenBookRequest	true	"Path to resolve"
//	@Success		200		{object}	models.BookProject
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/library/open [post]
func (h *Handler) OpenBook(w http.ResponseWriter, r *http.Request) {
	var req OpenBookRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.OpenBook(r.Context(), req.Path)
	if err != nil {
		writeError(w, "open book", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RemoveBook handles DELETE /api/library?path=&deleteFiles=.
//
//	@Summary		Remove a book from the library, optionally deleting its folder
//	@Tags			library
//	@Param			path		query	string	true	"Book root"
//	@Param			deleteFiles	query	bool	false	"Delete the folder too"
//	@Success		204
//	@Failure		400	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/library [delete]
func (h *Handler) RemoveBook(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	deleteFiles, _ := strconv.ParseBool(r.URL.Query().Get("deleteFiles"))
	if err := h.svc.RemoveBook(r.Context(), path, deleteFiles); err != nil {
		writeError(w, "remove book", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateBook handles POST /api/books.
//
//	@Summary		Create a new book folder
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateBookRequest	true	"Book to create"
//	@Success		201		{object}	models.BookProject
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books [post]
func (h *Handler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateBook(r.Context(), req.ParentDir, req.Title, req.Author)
	if err != nil {
		writeError(w, "create book", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// GetBook handles GET /api/books?path=.
func (h *Handler) GetBook(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	p, err := h.svc.LoadBook(r.Context(), path)
	if err != nil {
		writeError(w, "load book", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// SaveMetadata handles PUT /api/books/metadata?path=.
func (h *Handler) SaveMetadata(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var meta models.BookMetadata
	if !decode(w, r, &meta) {
		return
	}
	saved, err := h.svc.SaveMetadata(r.Context(), path, &meta)
	if err != nil {
		writeError(w, "save metadata", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// SetPublished handles PUT /api/books/publish?path=.
func (h *Handler) SetPublished(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var req PublishRequest
	if !decode(w, r, &req) {
		return
	}
	saved, err := h.svc.SetPublished(r.Context(), path, req.Published)
	if err != nil {
		writeError(w, "publish", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// UpdateChats handles PUT /api/books/chats?path=.
func (h *Handler) UpdateChats(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var req ChatsRequest
	if !decode(w, r, &req) {
		return
	}
	chats := models.BookChats(req)
	saved, err := h.svc.UpdateChats(r.Context(), path, &chats)
	if err != nil {
		writeError(w, "update chats", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// CreateChapter handles POST /api/books/chapters?path=.
//
//	@Summary		Append an empty chapter
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Book root"
//	@Param			body	body		TitleRequest	false	"Chapter title"
//	@Success		201		{object}	ChapterMutationResponse
//	@Security		BearerAuth
//	@Router			/books/chapters [post]
func (h *Handler) CreateChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var req TitleRequest
	if !decode(w, r, &req) {
		return
	}
	meta, c, err := h.svc.CreateChapter(r.Context(), path, req.Title)
	if err != nil {
		writeError(w, "create chapter", err)
		return
	}
	writeJSON(w, http.StatusCreated, ChapterMutationResponse{Metadata: meta, Chapter: c})
}

// GetChapter handles GET /api/books/chapters/{id}?path=.
func (h *Handler) GetChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	c, err := h.svc.Chapter(r.Context(), path, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "get chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// UpdateChapter handles PUT /api/books/chapters/{id}?path=.
//
//	@Summary		Change a chapter's title, content or length preset
//	@Tags			chapters
//	@Accept			json
//	@Produce		json
//	@Param			path	query		string			true	"Book root"
//	@Param			id		path		string			true	"Chapter id"
//	@Param			body	body		ChapterPatch	true	"Fields to change"
//	@Success		200		{object}	models.ChapterDocument
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/books/chapters/{id} [put]
func (h *Handler) UpdateChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var patch ChapterPatch
	if !decode(w, r, &patch) {
		return
	}
	c, err := h.svc.UpdateChapter(r.Context(), path, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeError(w, "update chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// RenameChapter handles POST /api/books/chapters/{id}/rename?path=.
func (h *Handler) RenameChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var req RenameRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.svc.RenameChapter(r.Context(), path, chi.URLParam(r, "id"), req.Title)
	if err != nil {
		writeError(w, "rename chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DuplicateChapter handles POST /api/books/chapters/{id}/duplicate?path=.
func (h *Handler) DuplicateChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	meta, c, err := h.svc.DuplicateChapter(r.Context(), path, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "duplicate chapter", err)
		return
	}
	writeJSON(w, http.StatusCreated, ChapterMutationResponse{Metadata: meta, Chapter: c})
}

// MoveChapter handles POST /api/books/chapters/{id}/move?path=.
func (h *Handler) MoveChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var req MoveRequest
	if !decode(w, r, &req) {
		return
	}
	meta, err := h.svc.MoveChapter(r.Context(), path, chi.URLParam(r, "id"), req.Direction)
	if err != nil {
		writeError(w, "move chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// DeleteChapter handles DELETE /api/books/chapters/{id}?path=.
// Deleting an id that is not in the order succeeds and changes nothing.
func (h *Handler) DeleteChapter(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	meta, err := h.svc.DeleteChapter(r.Context(), path, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "delete chapter", err)
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// ListSnapshots handles GET /api/books/chapters/{id}/snapshots?path=.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	snaps, err := h.svc.ListSnapshots(r.Context(), path, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "list snapshots", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}

// SaveSnapshot handles POST /api/books/chapters/{id}/snapshots?path=.
func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var req SnapshotRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.svc.SaveSnapshot(r.Context(), path, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeError(w, "save snapshot", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// RestoreSnapshot handles POST /api/books/chapters/{id}/restore?path=.
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	c, err := h.svc.RestoreSnapshot(r.Context(), path, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, "restore snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetAppConfig handles GET /api/books/config?path=.
func (h *Handler) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	cfg, err := h.svc.AppConfig(r.Context(), path)
	if err != nil {
		writeError(w, "get config", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// SaveAppConfig handles PUT /api/books/config?path=.
func (h *Handler) SaveAppConfig(w http.ResponseWriter, r *http.Request) {
	path, ok := bookPath(w, r)
	if !ok {
		return
	}
	var cfg models.AppConfig
	if !decode(w, r, &cfg) {
		return
	}
	saved, err := h.svc.SaveAppConfig(r.Context(), path, cfg)
	if err != nil {
		writeError(w, "save config", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across every library chapter
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultSearchLimit
	}
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// coverKind parses ?kind=, writing 400 for unknown kinds.
func coverKind(w http.ResponseWriter, r *http.Request) (bookstore.CoverKind, bool) {
	kind, err := bookstore.ParseCoverKind(r.URL.Query().Get("kind"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return "", false
	}
	return kind, true
}
