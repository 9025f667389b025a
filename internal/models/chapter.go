package models

// LengthPreset is the target length of a chapter.
type LengthPreset string

const (
	LengthShort  LengthPreset = "short"
	LengthMedium LengthPreset = "medium"
	LengthLong   LengthPreset = "long"
)

// Valid reports whether p is a known preset.
func (p LengthPreset) Valid() bool {
	switch p {
	case LengthShort, LengthMedium, LengthLong:
		return true
	}
	return false
}

// ChapterDocument is one chapters/<id>.json file.
type ChapterDocument struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	// ContentJSON is deprecated and always written as null.
	ContentJSON  any          `json:"contentJson"`
	LengthPreset LengthPreset `json:"lengthPreset"`
	CreatedAt    string       `json:"createdAt"`
	UpdatedAt    string       `json:"updatedAt"`
}

// Clone returns a copy of c.
func (c *ChapterDocument) Clone() *ChapterDocument {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// ChapterSnapshot is one versions/<id>_v<N>.json file.
type ChapterSnapshot struct {
	Version   int             `json:"version"`
	ChapterID string          `json:"chapterId"`
	Reason    string          `json:"reason"`
	CreatedAt string          `json:"createdAt"`
	Chapter   ChapterDocument `json:"chapter"`
}
