package bookstore

import (
	"errors"
	"io/fs"

	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
	"github.com/starford/quill/internal/schema"
)

// LoadChats merges the chat logs under chats/ over legacy, the chats once
// embedded in book.json. A corrupt file keeps the legacy value for its
// scope. Chat files of chapters outside order are still loaded, and every id
// in order gets an entry.
func (s *Store) LoadChats(legacy *models.BookChats, order []string) *models.BookChats {
	chats := legacy.Clone()
	if chats == nil {
		chats = models.NewBookChats()
	}

	if msgs, ok := s.readChatFile(layout.BookChatPath(), models.ScopeBook); ok {
		chats.Book = msgs
	}

	known := make(map[string]struct{}, len(order)+len(chats.Chapters))
	for id := range chats.Chapters {
		known[id] = struct{}{}
	}
	for _, id := range order {
		known[id] = struct{}{}
	}
	entries, err := s.fs.List(layout.ChatsDir, ".json")
	if err != nil {
		s.warnSkipped("cannot list chat files", layout.ChatsDir, err)
	}
	for _, e := range entries {
		if id, ok := chatFileID(e.Name); ok {
			known[id] = struct{}{}
		}
	}

	for id := range known {
		if !layout.ValidID(id) {
			continue
		}
		if msgs, ok := s.readChatFile(layout.ChapterChatFile(id), models.ScopeChapter); ok {
			chats.Chapters[id] = msgs
		}
	}
	for _, id := range order {
		if _, ok := chats.Chapters[id]; !ok {
			chats.Chapters[id] = []models.ChatMessage{}
		}
	}
	return chats
}

// SaveChats writes chats/book.json and one file per chapter that is in order
// or has messages, then deletes every other chapter chat file.
func (s *Store) SaveChats(chats *models.BookChats, order []string) error {
	if chats == nil {
		chats = models.NewBookChats()
	}
	if err := s.fs.MkdirAll(layout.ChatsDir); err != nil {
		return s.ioError("save chats", layout.ChatsDir, err)
	}
	if err := s.writeJSON("save chats", layout.BookChatPath(), nonNil(chats.Book)); err != nil {
		return err
	}

	keep := make(map[string]struct{}, len(order)+len(chats.Chapters))
	for _, id := range order {
		keep[id] = struct{}{}
	}
	for id, msgs := range chats.Chapters {
		if len(msgs) > 0 {
			keep[id] = struct{}{}
		}
	}
	for id := range keep {
		if !layout.ValidID(id) {
			continue
		}
		if err := s.writeJSON("save chats", layout.ChapterChatFile(id), nonNil(chats.Chapters[id])); err != nil {
			return err
		}
	}

	entries, err := s.fs.List(layout.ChatsDir, ".json")
	if err != nil {
		return s.ioError("save chats", layout.ChatsDir, err)
	}
	for _, e := range entries {
		id, ok := chatFileID(e.Name)
		if !ok {
			continue
		}
		if _, kept := keep[id]; kept {
			continue
		}
		if err := s.fs.Delete(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return s.ioError("prune chats", e.Path, err)
		}
	}
	return nil
}

// UpdateBookChats normalizes chats, writes them under chats/ and saves the
// metadata, which drops any legacy embedded copy.
func (s *Store) UpdateBookChats(meta *models.BookMetadata, chats *models.BookChats) (*models.BookMetadata, error) {
	next := models.NewBookChats()
	if chats != nil {
		next.Book = schema.NormalizeTyped(chats.Book, models.ScopeBook)
		for id, msgs := range chats.Chapters {
			next.Chapters[id] = schema.NormalizeTyped(msgs, models.ScopeChapter)
		}
	}
	for _, id := range meta.ChapterOrder {
		if _, ok := next.Chapters[id]; !ok {
			next.Chapters[id] = []models.ChatMessage{}
		}
	}
	if err := s.SaveChats(next, meta.ChapterOrder); err != nil {
		return nil, err
	}
	out := meta.Clone()
	out.Chats = next
	return s.SaveMetadata(out)
}

func (s *Store) readChatFile(rel string, scope models.ChatScope) ([]models.ChatMessage, bool) {
	data, err := s.fs.Read(rel)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.warnSkipped("skipping unreadable chat file", rel, err)
		}
		return nil, false
	}
	msgs, err := schema.DecodeChatFile(data, scope)
	if err != nil {
		s.warnSkipped("skipping corrupt chat file", rel, err)
		return nil, false
	}
	return msgs, true
}

// chatFileID maps a chats/ file name to a chapter id; the book-scope file
// has none.
func chatFileID(name string) (string, bool) {
	if name == layout.BookChatFile {
		return "", false
	}
	return layout.IDFromJSONName(name)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
