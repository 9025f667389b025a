package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/quill/internal/bookservice"
	"github.com/starford/quill/internal/bookstore"
	"github.com/starford/quill/internal/index"
	"github.com/starford/quill/internal/models"
)

// OpenBookRequest is the body of POST /library/open.
type OpenBookRequest struct {
	Path string `json:"path" example:"/home/ana/Books/Saga" validate:"required"`
}

// Validate validates the request.
func (r OpenBookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Path, validation.Required),
	)
}

// CreateBookRequest is the body of POST /books.
type CreateBookRequest struct {
	ParentDir string `json:"parentDir" example:"/home/ana/Books" validate:"required"`
	Title     string `json:"title" example:"Saga" validate:"required"`
	Author    string `json:"author" example:"Ana"`
}

// Validate validates the request.
func (r CreateBookRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ParentDir, validation.Required),
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Author, validation.Length(0, 200)),
	)
}

// PublishRequest is the body of PUT /books/publish.
type PublishRequest struct {
	Published bool `json:"published"`
}

// TitleRequest is the body of chapter create and rename.
type TitleRequest struct {
	Title string `json:"title" example:"The Harbour"`
}

// RenameRequest is the body of POST /books/chapters/{id}/rename.
type RenameRequest TitleRequest

// Validate validates the request.
func (r RenameRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
	)
}

// ChapterPatch is the body of PUT /books/chapters/{id}.
type ChapterPatch = bookservice.ChapterPatch

// MoveRequest is the body of POST /books/chapters/{id}/move.
type MoveRequest struct {
	Direction bookstore.Direction `json:"direction" example:"up" validate:"required"`
}

// Validate validates the request.
func (r MoveRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Direction, validation.Required, validation.In(bookstore.MoveUp, bookstore.MoveDown)),
	)
}

// SnapshotRequest is the body of POST /books/chapters/{id}/snapshots.
type SnapshotRequest struct {
	Reason string `json:"reason" example:"before rewrite"`
}

// ChatsRequest is the body of PUT /books/chats.
type ChatsRequest models.BookChats

// Validate checks every message has a known role.
func (r ChatsRequest) Validate() error {
	msgs := append([]models.ChatMessage{}, r.Book...)
	for _, m := range r.Chapters {
		msgs = append(msgs, m...)
	}
	for i := range msgs {
		m := msgs[i]
		if err := validation.ValidateStruct(&m,
			validation.Field(&m.Role, validation.Required, validation.In(models.RoleUser, models.RoleAssistant)),
		); err != nil {
			return err
		}
	}
	return nil
}

// ChapterMutationResponse carries the updated order with the affected chapter.
type ChapterMutationResponse struct {
	Metadata *models.BookMetadata    `json:"metadata"`
	Chapter  *models.ChapterDocument `json:"chapter"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// CoverUploadResponse is returned after a successful cover upload.
type CoverUploadResponse struct {
	Kind     string               `json:"kind" example:"cover"`
	Size     int                  `json:"size" example:"12345"`
	Metadata *models.BookMetadata `json:"metadata"`
}
