package schema

import "github.com/starford/quill/internal/models"

// DefaultCategories replaces an empty category list.
var DefaultCategories = []string{
	"Literature & Fiction",
	"Contemporary Fiction",
}

// DefaultMarketPricing replaces a pricing list with no well-formed rows.
func DefaultMarketPricing() []models.MarketPrice {
	return []models.MarketPrice{
		{Marketplace: "amazon.com", Currency: "USD", EbookPrice: 4.99, PrintPrice: 12.99},
		{Marketplace: "amazon.es", Currency: "EUR", EbookPrice: 4.99, PrintPrice: 12.99},
		{Marketplace: "amazon.co.uk", Currency: "GBP", EbookPrice: 3.99, PrintPrice: 10.99},
		{Marketplace: "amazon.com.mx", Currency: "MXN", EbookPrice: 79, PrintPrice: 249},
	}
}

// DefaultAmazon returns the marketplace block of a new book.
func DefaultAmazon(title, author string) models.AmazonData {
	return models.AmazonData{
		PresetType:    "novel",
		KDPTitle:      title,
		PenName:       author,
		Language:      "es",
		Keywords:      make([]string, models.AmazonKeywordCount),
		Categories:    append([]string(nil), DefaultCategories...),
		EnableDRM:     false,
		RoyaltyPlan:   70,
		MarketPricing: DefaultMarketPricing(),
	}
}

// DefaultInteriorFormat returns 6x9 in trade paperback geometry.
func DefaultInteriorFormat() models.InteriorFormat {
	return models.InteriorFormat{
		TrimSize:          "6x9",
		PageWidthIn:       6,
		PageHeightIn:      9,
		MarginTopMm:       20,
		MarginBottomMm:    20,
		MarginInsideMm:    22,
		MarginOutsideMm:   18,
		ParagraphIndentEm: 1.5,
		LineHeight:        1.4,
	}
}

// DefaultAppConfig returns the config.json written for new books.
func DefaultAppConfig() models.AppConfig {
	return models.AppConfig{
		Model:          "gpt-4.1-mini",
		Language:       "es",
		Temperature:    0.7,
		MaxTokens:      4096,
		AutoVersioning: true,

		AutoVersionIntervalMinutes: 10,
	}
}

// DefaultMetadata returns the descriptor of a freshly created book.
func DefaultMetadata(title, author string, chapterOrder []string) *models.BookMetadata {
	now := models.Now()
	return &models.BookMetadata{
		SchemaVersion:  models.CurrentSchemaVersion,
		Title:          title,
		Author:         author,
		ChapterOrder:   append([]string{}, chapterOrder...),
		Amazon:         DefaultAmazon(title, author),
		InteriorFormat: DefaultInteriorFormat(),
		CreatedAt:      now,
		UpdatedAt:      now,
		Chats:          models.NewBookChats(),
	}
}

// DefaultChapter returns an empty chapter document.
func DefaultChapter(id, title string) *models.ChapterDocument {
	now := models.Now()
	return &models.ChapterDocument{
		ID:           id,
		Title:        title,
		Content:      "",
		LengthPreset: models.LengthMedium,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// DefaultLibrary returns an empty library index.
func DefaultLibrary() *models.LibraryIndex {
	return &models.LibraryIndex{
		Books:       []models.LibraryBookEntry{},
		StatusRules: models.StatusRules{AdvancedChapterThreshold: models.DefaultAdvancedChapterThreshold},
		UpdatedAt:   models.Now(),
	}
}
