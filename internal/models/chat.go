package models

// ChatRole is the author of a chat message.
type ChatRole string

const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatScope says whether a conversation belongs to the book or a chapter.
type ChatScope string

const (
	ScopeBook    ChatScope = "book"
	ScopeChapter ChatScope = "chapter"
)

// ChatMessage is one entry of a conversation log.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Scope     ChatScope `json:"scope"`
	Content   string    `json:"content"`
	CreatedAt string    `json:"createdAt"`
}

// BookChats groups the book-scope log and one log per chapter.
type BookChats struct {
	Book     []ChatMessage            `json:"book"`
	Chapters map[string][]ChatMessage `json:"chapters"`
}

// NewBookChats returns an empty, non-nil aggregate.
func NewBookChats() *BookChats {
	return &BookChats{Book: []ChatMessage{}, Chapters: map[string][]ChatMessage{}}
}

// Clone returns a deep copy of c.
func (c *BookChats) Clone() *BookChats {
	if c == nil {
		return nil
	}
	out := &BookChats{
		Book:     append([]ChatMessage{}, c.Book...),
		Chapters: make(map[string][]ChatMessage, len(c.Chapters)),
	}
	for id, msgs := range c.Chapters {
		out.Chapters[id] = append([]ChatMessage{}, msgs...)
	}
	return out
}
