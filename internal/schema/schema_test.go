package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/quill/internal/models"
)

func TestDecodeMetadataV0(t *testing.T) {
	doc := `{
		"title": "Old Book",
		"author": "Ana",
		"chapters": ["01", 2, "01", "", "intro"],
		"amazon": {"keywords": "sea, storm ,ship", "price": "2.99", "categories": []},
		"createdAt": "2023-01-01T00:00:00.000Z"
	}`
	m, raw, err := DecodeMetadata([]byte(doc), "fallback")
	require.NoError(t, err)

	assert.Equal(t, models.CurrentSchemaVersion, m.SchemaVersion)
	assert.Equal(t, []string{"01", "02", "intro"}, m.ChapterOrder)
	assert.Equal(t, []string{"sea", "storm", "ship", "", "", "", ""}, m.Amazon.Keywords)
	assert.Equal(t, DefaultCategories, m.Amazon.Categories)
	require.Len(t, m.Amazon.MarketPricing, 1)
	assert.Equal(t, 2.99, m.Amazon.MarketPricing[0].EbookPrice)
	assert.Equal(t, "USD", m.Amazon.MarketPricing[0].Currency)
	assert.Equal(t, "2023-01-01T00:00:00.000Z", m.UpdatedAt)
	assert.False(t, raw.Has("chapters"))
}

func TestDecodeMetadataV1EmbeddedChats(t *testing.T) {
	doc := `{
		"title": "Mid Book",
		"chapterOrder": ["01"],
		"chats": {
			"book": [{"id": "b1", "role": "assistant", "content": "hello"}],
			"chapters": {"01": [{"id": "m1", "content": "draft it", "scope": "bogus"}, {"content": "   "}]}
		}
	}`
	m, _, err := DecodeMetadata([]byte(doc), "fallback")
	require.NoError(t, err)
	require.NotNil(t, m.Chats)
	require.Len(t, m.Chats.Book, 1)
	assert.Equal(t, models.RoleAssistant, m.Chats.Book[0].Role)
	assert.Equal(t, models.ScopeBook, m.Chats.Book[0].Scope)

	msgs := m.Chats.Chapters["01"]
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.ScopeChapter, msgs[0].Scope)
}

func TestDecodeMetadataV2MissingBlocks(t *testing.T) {
	m, _, err := DecodeMetadata([]byte(`{"schemaVersion": 2, "chapterOrder": []}`), "Folder Name")
	require.NoError(t, err)

	assert.Equal(t, "Folder Name", m.Title)
	assert.Equal(t, []string{}, m.ChapterOrder)
	assert.Len(t, m.Amazon.Keywords, models.AmazonKeywordCount)
	assert.Equal(t, DefaultMarketPricing(), m.Amazon.MarketPricing)
	assert.Equal(t, DefaultInteriorFormat(), m.InteriorFormat)
	assert.Equal(t, 70, m.Amazon.RoyaltyPlan)
	assert.NotEmpty(t, m.CreatedAt)
	assert.NotNil(t, m.Chats)
}

func TestEnsureAmazonPartiallyTyped(t *testing.T) {
	doc := `{
		"keywords": ["a", 3, "b", "c", "d", "e", "f", "g", "h"],
		"categories": ["  ", "Thriller", "Mystery", "Crime", "Noir"],
		"royaltyPlan": 50,
		"seriesNumber": 2,
		"marketPricing": [
			{"marketplace": "amazon.de", "currency": "eur", "ebookPrice": 3.5},
			{"marketplace": "amazon.fr", "currency": "EUR", "ebookPrice": -1},
			{"marketplace": "", "currency": "EUR"},
			{"marketplace": "amazon.it", "currency": "EUR", "printPrice": "abc"},
			"garbage"
		]
	}`
	var r Raw
	require.NoError(t, json.Unmarshal([]byte(doc), &r))

	a := EnsureAmazon(r, "T", "A")
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, a.Keywords)
	assert.Equal(t, []string{"Thriller", "Mystery", "Crime"}, a.Categories)
	assert.Equal(t, 70, a.RoyaltyPlan)
	assert.Equal(t, "2", a.SeriesNumber)
	assert.Equal(t, []models.MarketPrice{{Marketplace: "amazon.de", Currency: "EUR", EbookPrice: 3.5}}, a.MarketPricing)
	assert.Equal(t, "T", a.KDPTitle)
	assert.Equal(t, "A", a.PenName)
}

func TestEnsureMetadataIdempotent(t *testing.T) {
	first, _, err := DecodeMetadata([]byte(`{"title": "X", "chapters": ["01"]}`), "")
	require.NoError(t, err)
	first.Chats = nil

	data, err := json.Marshal(first)
	require.NoError(t, err)
	second, _, err := DecodeMetadata(data, "")
	require.NoError(t, err)
	second.Chats = nil

	assert.Equal(t, first, second)
}

func TestDetectVersion(t *testing.T) {
	tests := []struct {
		name string
		doc  Raw
		want int
	}{
		{"stamped", Raw{"schemaVersion": 2.0}, 2},
		{"legacy chapters", Raw{"chapters": []any{"01"}}, 0},
		{"chapter order", Raw{"chapterOrder": []any{}}, 1},
		{"empty", Raw{}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectVersion(tt.doc))
		})
	}
}

func TestDecodeMetadataRejectsNonObject(t *testing.T) {
	_, _, err := DecodeMetadata([]byte(`[1,2]`), "x")
	assert.ErrorIs(t, err, ErrNotObject)

	_, _, err = DecodeMetadata([]byte(`{"title":`), "x")
	assert.Error(t, err)
}

func TestDecodeChapter(t *testing.T) {
	c, err := DecodeChapter([]byte(`{"html": "<p>hi</p>", "lengthPreset": "huge"}`), "07")
	require.NoError(t, err)
	assert.Equal(t, "07", c.ID)
	assert.Equal(t, "Chapter 7", c.Title)
	assert.Equal(t, "<p>hi</p>", c.Content)
	assert.Equal(t, models.LengthMedium, c.LengthPreset)
	assert.Nil(t, c.ContentJSON)
	assert.Equal(t, c.CreatedAt, c.UpdatedAt)

	c, err = DecodeChapter([]byte(`{"id": 3, "title": "Three", "content": "", "lengthPreset": "long"}`), "x")
	require.NoError(t, err)
	assert.Equal(t, "03", c.ID)
	assert.Equal(t, models.LengthLong, c.LengthPreset)
}

func TestDecodeSnapshot(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{"version": 2, "chapterId": "01", "reason": " manual ", "chapter": {"title": "One", "content": "c"}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version)
	assert.Equal(t, "manual", s.Reason)
	assert.Equal(t, "01", s.Chapter.ID)
	assert.Equal(t, "c", s.Chapter.Content)

	for _, doc := range []string{
		`{"version": 0, "chapterId": "01", "chapter": {}}`,
		`{"version": 1, "chapter": {}}`,
		`{"version": 1, "chapterId": "01"}`,
	} {
		_, err := DecodeSnapshot([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidSnapshot, doc)
	}
}

func TestNormalizeMessagesGeneratesIDs(t *testing.T) {
	orig := NewMessageID
	NewMessageID = func() string { return "generated" }
	t.Cleanup(func() { NewMessageID = orig })

	msgs := NormalizeMessages([]any{
		map[string]any{"content": "hi", "role": "system"},
		map[string]any{"content": ""},
		42,
	}, models.ScopeChapter)
	require.Len(t, msgs, 1)
	assert.Equal(t, "generated", msgs[0].ID)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Equal(t, models.ScopeChapter, msgs[0].Scope)
	assert.NotEmpty(t, msgs[0].CreatedAt)
}

func TestDecodeChatFile(t *testing.T) {
	msgs, err := DecodeChatFile([]byte(`[{"id":"a","content":"x","scope":"book"}]`), models.ScopeChapter)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.ScopeBook, msgs[0].Scope)

	_, err = DecodeChatFile([]byte(`{"book": []}`), models.ScopeBook)
	assert.ErrorIs(t, err, ErrNotArray)
}

func TestNextChapterID(t *testing.T) {
	assert.Equal(t, "04", NextChapterID([]string{"01", "03"}, nil))
	assert.Equal(t, "01", NextChapterID(nil, nil))
	assert.Equal(t, "03", NextChapterID([]string{"intro", "02", "epilogue"}, nil))
	assert.Equal(t, "100", NextChapterID([]string{"99"}, nil))

	taken := func(id string) bool { return id == "04" }
	assert.Equal(t, "05", NextChapterID([]string{"01", "03"}, taken))
}

func TestNumericID(t *testing.T) {
	n, ok := NumericID("007")
	assert.True(t, ok)
	assert.Equal(t, 7, n)

	for _, id := range []string{"", "-1", "1a", "intro"} {
		_, ok := NumericID(id)
		assert.False(t, ok, id)
	}
}

func TestDecodeLibrary(t *testing.T) {
	idx, err := DecodeLibrary([]byte(`{
		"books": [{"id": "x", "path": "/b", "status": "weird", "chapterCount": -3}, {"title": "no path"}],
		"statusRules": {"advancedChapterThreshold": 0}
	}`))
	require.NoError(t, err)
	require.Len(t, idx.Books, 1)
	assert.Equal(t, models.StatusNew, idx.Books[0].Status)
	assert.Equal(t, 0, idx.Books[0].ChapterCount)
	assert.Equal(t, models.DefaultAdvancedChapterThreshold, idx.StatusRules.AdvancedChapterThreshold)
}

func TestDecodeAppConfig(t *testing.T) {
	assert.Equal(t, DefaultAppConfig(), DecodeAppConfig([]byte("not json")))

	cfg := DecodeAppConfig([]byte(`{"model": "m", "temperature": 9, "maxTokens": 100, "autoVersioning": false}`))
	assert.Equal(t, "m", cfg.Model)
	assert.Equal(t, DefaultAppConfig().Temperature, cfg.Temperature)
	assert.Equal(t, 100, cfg.MaxTokens)
	assert.False(t, cfg.AutoVersioning)
}
