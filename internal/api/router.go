package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/quill/internal/bookservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *bookservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Library.
	r.Get("/library", h.ListLibrary)
	r.Post("/library/open", h.OpenBook)
	r.Delete("/library", h.RemoveBook)

	// Books.
	r.Route("/books", func(r chi.Router) {
		r.Post("/", h.CreateBook)
		r.Get("/", h.GetBook)
		r.Put("/metadata", h.SaveMetadata)
		r.Put("/publish", h.SetPublished)
		r.Put("/chats", h.UpdateChats)
		r.Get("/config", h.GetAppConfig)
		r.Put("/config", h.SaveAppConfig)
		r.Post("/cover", h.UploadCover)
		r.Get("/cover", h.ServeCover)

		// Chapters.
		r.Post("/chapters", h.CreateChapter)
		r.Route("/chapters/{id}", func(r chi.Router) {
			r.Get("/", h.GetChapter)
			r.Put("/", h.UpdateChapter)
			r.Delete("/", h.DeleteChapter)
			r.Post("/rename", h.RenameChapter)
			r.Post("/duplicate", h.DuplicateChapter)
			r.Post("/move", h.MoveChapter)
			r.Get("/snapshots", h.ListSnapshots)
			r.Post("/snapshots", h.SaveSnapshot)
			r.Post("/restore", h.RestoreSnapshot)
		})
	})

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
