package schema

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/starford/quill/internal/models"
)

// ErrNotArray is returned when a chat file is not a JSON array.
var ErrNotArray = errors.New("schema: chat document is not a JSON array")

// NewMessageID generates ids for messages that arrive without one.
var NewMessageID = uuid.NewString

// NormalizeMessages keeps every well-formed message of items: a missing id
// gets a fresh one, role defaults to user, an absent or unknown scope takes
// fallbackScope, and messages whose trimmed content is empty are dropped.
func NormalizeMessages(items []any, fallbackScope models.ChatScope) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if msg, ok := normalizeMessage(Raw(obj), fallbackScope); ok {
			out = append(out, msg)
		}
	}
	return out
}

// NormalizeTyped applies the NormalizeMessages rules to already-typed
// messages, as received from callers.
func NormalizeTyped(msgs []models.ChatMessage, fallbackScope models.ChatScope) []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		r := Raw{
			"id":        m.ID,
			"role":      string(m.Role),
			"scope":     string(m.Scope),
			"content":   m.Content,
			"createdAt": m.CreatedAt,
		}
		if msg, ok := normalizeMessage(r, fallbackScope); ok {
			out = append(out, msg)
		}
	}
	return out
}

func normalizeMessage(r Raw, fallbackScope models.ChatScope) (models.ChatMessage, bool) {
	content := r.Str("content", "")
	if strings.TrimSpace(content) == "" {
		return models.ChatMessage{}, false
	}
	id := r.NonEmptyStr("id", "")
	if id == "" {
		id = NewMessageID()
	}
	role := models.RoleUser
	if r.Str("role", "") == string(models.RoleAssistant) {
		role = models.RoleAssistant
	}
	scope := models.ChatScope(r.Str("scope", ""))
	if scope != models.ScopeBook && scope != models.ScopeChapter {
		scope = fallbackScope
	}
	return models.ChatMessage{
		ID:        id,
		Role:      role,
		Scope:     scope,
		Content:   content,
		CreatedAt: r.NonEmptyStr("createdAt", models.Now()),
	}, true
}

// DecodeChatFile parses one chats/<scope>.json file.
func DecodeChatFile(data []byte, scope models.ChatScope) ([]models.ChatMessage, error) {
	r, err := parseAny(data)
	if err != nil {
		return nil, err
	}
	items, ok := r.([]any)
	if !ok {
		return nil, ErrNotArray
	}
	return NormalizeMessages(items, scope), nil
}

// LegacyChats extracts the chats block embedded in a v1 metadata document.
// It always returns a non-nil aggregate.
func LegacyChats(r Raw) *models.BookChats {
	chats := models.NewBookChats()
	block := r.Object("chats")
	chats.Book = NormalizeMessages(block.Array("book"), models.ScopeBook)
	for id, v := range block.Object("chapters") {
		items, ok := v.([]any)
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		chats.Chapters[id] = NormalizeMessages(items, models.ScopeChapter)
	}
	return chats
}
