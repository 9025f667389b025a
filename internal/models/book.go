// Package models defines the on-disk document types of a manuscript project.
package models

import "time"

// CurrentSchemaVersion is stamped on every book.json written by this module.
const CurrentSchemaVersion = 2

// timestampLayout matches JavaScript's Date.toISOString so stored values
// compare lexicographically in chronological order.
const timestampLayout = "2006-01-02T15:04:05.000Z"

var timeNow = time.Now

// Now returns the current UTC time formatted as a stored timestamp.
func Now() string {
	return Timestamp(timeNow())
}

// Timestamp formats t as a stored timestamp.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// BookMetadata is the book.json descriptor.
type BookMetadata struct {
	SchemaVersion  int            `json:"schemaVersion"`
	Title          string         `json:"title"`
	Subtitle       string         `json:"subtitle"`
	Author         string         `json:"author"`
	ChapterOrder   []string       `json:"chapterOrder"`
	CoverImage     string         `json:"coverImage"`
	BackCoverImage string         `json:"backCoverImage"`
	SpineText      string         `json:"spineText"`
	Foundation     BookFoundation `json:"foundation"`
	Amazon         AmazonData     `json:"amazon"`
	InteriorFormat InteriorFormat `json:"interiorFormat"`
	IsPublished    bool           `json:"isPublished"`
	PublishedAt    string         `json:"publishedAt"`
	CreatedAt      string         `json:"createdAt"`
	UpdatedAt      string         `json:"updatedAt"`

	// Chats is populated in memory only; ChatStore persists it under chats/.
	Chats *BookChats `json:"chats,omitempty"`
}

// Clone returns a deep copy of m.
func (m *BookMetadata) Clone() *BookMetadata {
	if m == nil {
		return nil
	}
	out := *m
	out.ChapterOrder = append([]string{}, m.ChapterOrder...)
	out.Amazon.Keywords = append([]string{}, m.Amazon.Keywords...)
	out.Amazon.Categories = append([]string{}, m.Amazon.Categories...)
	out.Amazon.MarketPricing = append([]MarketPrice{}, m.Amazon.MarketPricing...)
	out.Chats = m.Chats.Clone()
	return &out
}

// HasChapter reports whether id is listed in the chapter order.
func (m *BookMetadata) HasChapter(id string) bool {
	for _, v := range m.ChapterOrder {
		if v == id {
			return true
		}
	}
	return false
}

// BookFoundation holds free-text authorial constraints.
type BookFoundation struct {
	CentralIdea       string `json:"centralIdea"`
	Promise           string `json:"promise"`
	Audience          string `json:"audience"`
	NarrativeVoice    string `json:"narrativeVoice"`
	StyleRules        string `json:"styleRules"`
	StructureNotes    string `json:"structureNotes"`
	GlossaryPreferred string `json:"glossaryPreferred"`
	GlossaryAvoid     string `json:"glossaryAvoid"`
}

// AmazonKeywordCount is the exact number of keyword slots KDP exposes.
const AmazonKeywordCount = 7

// AmazonMaxCategories bounds the category list.
const AmazonMaxCategories = 3

// AmazonData is marketplace metadata for publishing.
type AmazonData struct {
	PresetType      string        `json:"presetType"`
	KDPTitle        string        `json:"kdpTitle"`
	Subtitle        string        `json:"subtitle"`
	PenName         string        `json:"penName"`
	SeriesName      string        `json:"seriesName"`
	SeriesNumber    string        `json:"seriesNumber"`
	Edition         string        `json:"edition"`
	Language        string        `json:"language"`
	Description     string        `json:"description"`
	Keywords        []string      `json:"keywords"`
	Categories      []string      `json:"categories"`
	ISBN            string        `json:"isbn"`
	EnableDRM       bool          `json:"enableDRM"`
	EnrollKDPSelect bool          `json:"enrollKDPSelect"`
	RoyaltyPlan     int           `json:"royaltyPlan"`
	MarketPricing   []MarketPrice `json:"marketPricing"`
}

// MarketPrice is one marketplace/currency pricing row.
type MarketPrice struct {
	Marketplace string  `json:"marketplace"`
	Currency    string  `json:"currency"`
	EbookPrice  float64 `json:"ebookPrice"`
	PrintPrice  float64 `json:"printPrice"`
}

// InteriorFormat describes print page geometry.
type InteriorFormat struct {
	TrimSize          string  `json:"trimSize"`
	PageWidthIn       float64 `json:"pageWidthIn"`
	PageHeightIn      float64 `json:"pageHeightIn"`
	MarginTopMm       float64 `json:"marginTopMm"`
	MarginBottomMm    float64 `json:"marginBottomMm"`
	MarginInsideMm    float64 `json:"marginInsideMm"`
	MarginOutsideMm   float64 `json:"marginOutsideMm"`
	ParagraphIndentEm float64 `json:"paragraphIndentEm"`
	LineHeight        float64 `json:"lineHeight"`
}

// BookProject is an opened book: its root, descriptor and loaded chapters.
type BookProject struct {
	Path     string                      `json:"path"`
	Metadata *BookMetadata               `json:"metadata"`
	Chapters map[string]*ChapterDocument `json:"chapters"`
}

// OrderedChapters returns the loaded chapters in chapter order, skipping ids
// with no loaded document.
func (p *BookProject) OrderedChapters() []*ChapterDocument {
	out := make([]*ChapterDocument, 0, len(p.Chapters))
	for _, id := range p.Metadata.ChapterOrder {
		if ch, ok := p.Chapters[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// AppConfig is the per-book config.json.
type AppConfig struct {
	Model          string  `json:"model"`
	Language       string  `json:"language"`
	SystemPrompt   string  `json:"systemPrompt"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"maxTokens"`
	AutoVersioning bool    `json:"autoVersioning"`
	// AutoVersionIntervalMinutes spaces automatic snapshots of one chapter.
	AutoVersionIntervalMinutes int `json:"autoVersionIntervalMinutes"`
}
