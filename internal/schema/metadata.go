package schema

import (
	"fmt"
	"strings"

	"github.com/starford/quill/internal/models"
)

// Historical book.json shapes:
//
//	v0: chapter ids under "chapters", amazon.keywords as a comma-separated
//	    string, a single amazon.price instead of marketPricing.
//	v1: "chapterOrder", chats embedded in the document, no schemaVersion.
//	v2: schemaVersion stamped, chats persisted under chats/.
var migrations = []func(Raw){
	0: migrateV0,
	1: migrateV1,
}

// DetectVersion infers the schema version of a raw metadata document.
func DetectVersion(r Raw) int {
	if v := r.Int("schemaVersion", -1); v >= 0 {
		return v
	}
	if !r.Has("chapterOrder") && r.Array("chapters") != nil {
		return 0
	}
	return 1
}

// Migrate rewrites r in place until it has the current shape. Documents
// claiming a newer version than this module knows are left as-is and
// decoded best-effort.
func Migrate(r Raw) Raw {
	for v := DetectVersion(r); v < len(migrations); v++ {
		migrations[v](r)
	}
	return r
}

func migrateV0(r Raw) {
	if !r.Has("chapterOrder") {
		r["chapterOrder"] = r.Array("chapters")
	}
	delete(r, "chapters")

	amazon := r.Object("amazon")
	if kw, ok := amazon["keywords"].(string); ok {
		var list []any
		for _, k := range strings.Split(kw, ",") {
			list = append(list, strings.TrimSpace(k))
		}
		amazon["keywords"] = list
	}
	if price, ok := asNumber(amazon["price"]); ok && amazon["marketPricing"] == nil {
		amazon["marketPricing"] = []any{map[string]any{
			"marketplace": "amazon.com",
			"currency":    "USD",
			"ebookPrice":  price,
			"printPrice":  0.0,
		}}
	}
	delete(amazon, "price")
	if len(amazon) > 0 {
		r["amazon"] = map[string]any(amazon)
	}
	r["schemaVersion"] = 1.0
}

func migrateV1(r Raw) {
	// Embedded chats stay in the raw document as the legacy baseline that
	// ChatStore overlays; they are stripped on the next save.
	r["schemaVersion"] = float64(models.CurrentSchemaVersion)
}

// DecodeMetadata parses book.json bytes and returns the ensured descriptor.
func DecodeMetadata(data []byte, fallbackTitle string) (*models.BookMetadata, Raw, error) {
	r, err := ParseObject(data)
	if err != nil {
		return nil, nil, err
	}
	return EnsureMetadata(r, fallbackTitle), r, nil
}

// EnsureMetadata maps any raw metadata shape to a fully populated
// descriptor. It is idempotent: ensuring an ensured document changes nothing
// but never-set timestamps. Chats are populated from the legacy embedded
// block, or empty.
func EnsureMetadata(r Raw, fallbackTitle string) *models.BookMetadata {
	Migrate(r)

	title := r.NonEmptyStr("title", fallbackTitle)
	author := r.Str("author", "")
	createdAt := r.NonEmptyStr("createdAt", models.Now())

	m := &models.BookMetadata{
		SchemaVersion:  models.CurrentSchemaVersion,
		Title:          title,
		Subtitle:       r.Str("subtitle", ""),
		Author:         author,
		ChapterOrder:   EnsureChapterOrder(r.Array("chapterOrder")),
		CoverImage:     r.Str("coverImage", ""),
		BackCoverImage: r.Str("backCoverImage", ""),
		SpineText:      r.Str("spineText", ""),
		Foundation:     ensureFoundation(r.Object("foundation")),
		Amazon:         EnsureAmazon(r.Object("amazon"), title, author),
		InteriorFormat: ensureInterior(r.Object("interiorFormat")),
		IsPublished:    r.Bool("isPublished", false),
		PublishedAt:    r.Str("publishedAt", ""),
		CreatedAt:      createdAt,
		UpdatedAt:      r.NonEmptyStr("updatedAt", createdAt),
		Chats:          LegacyChats(r),
	}
	return m
}

// EnsureChapterOrder keeps well-formed, unique ids in their original order.
func EnsureChapterOrder(items []any) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, v := range items {
		id, ok := idString(v)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func ensureFoundation(r Raw) models.BookFoundation {
	return models.BookFoundation{
		CentralIdea:       r.Str("centralIdea", ""),
		Promise:           r.Str("promise", ""),
		Audience:          r.Str("audience", ""),
		NarrativeVoice:    r.Str("narrativeVoice", ""),
		StyleRules:        r.Str("styleRules", ""),
		StructureNotes:    r.Str("structureNotes", ""),
		GlossaryPreferred: r.Str("glossaryPreferred", ""),
		GlossaryAvoid:     r.Str("glossaryAvoid", ""),
	}
}

// EnsureAmazon normalizes the marketplace block: exactly seven keywords,
// a non-empty bounded category list and only well-formed pricing rows.
func EnsureAmazon(r Raw, title, author string) models.AmazonData {
	def := DefaultAmazon(title, author)

	royalty := r.Int("royaltyPlan", def.RoyaltyPlan)
	if royalty != 35 && royalty != 70 {
		royalty = def.RoyaltyPlan
	}

	return models.AmazonData{
		PresetType:      r.NonEmptyStr("presetType", def.PresetType),
		KDPTitle:        r.Str("kdpTitle", def.KDPTitle),
		Subtitle:        r.Str("subtitle", ""),
		PenName:         r.Str("penName", def.PenName),
		SeriesName:      r.Str("seriesName", ""),
		SeriesNumber:    seriesNumber(r["seriesNumber"]),
		Edition:         r.Str("edition", ""),
		Language:        r.NonEmptyStr("language", def.Language),
		Description:     r.Str("description", ""),
		Keywords:        ensureKeywords(r.Strings("keywords")),
		Categories:      ensureCategories(r.Strings("categories")),
		ISBN:            r.Str("isbn", ""),
		EnableDRM:       r.Bool("enableDRM", def.EnableDRM),
		EnrollKDPSelect: r.Bool("enrollKDPSelect", false),
		RoyaltyPlan:     royalty,
		MarketPricing:   ensurePricing(r.Array("marketPricing")),
	}
}

func seriesNumber(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		return fmt.Sprintf("%g", n)
	}
	return ""
}

func ensureKeywords(in []string) []string {
	out := make([]string, models.AmazonKeywordCount)
	for i := 0; i < len(in) && i < len(out); i++ {
		out[i] = strings.TrimSpace(in[i])
	}
	return out
}

func ensureCategories(in []string) []string {
	var out []string
	for _, c := range in {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
		if len(out) == models.AmazonMaxCategories {
			break
		}
	}
	if len(out) == 0 {
		return append([]string(nil), DefaultCategories...)
	}
	return out
}

func ensurePricing(items []any) []models.MarketPrice {
	var out []models.MarketPrice
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		row := Raw(obj)
		marketplace := row.NonEmptyStr("marketplace", "")
		currency := row.NonEmptyStr("currency", "")
		if marketplace == "" || currency == "" {
			continue
		}
		ebook, ok := priceField(row, "ebookPrice")
		if !ok {
			continue
		}
		printPrice, ok := priceField(row, "printPrice")
		if !ok {
			continue
		}
		out = append(out, models.MarketPrice{
			Marketplace: marketplace,
			Currency:    strings.ToUpper(currency),
			EbookPrice:  ebook,
			PrintPrice:  printPrice,
		})
	}
	if len(out) == 0 {
		return DefaultMarketPricing()
	}
	return out
}

// priceField accepts an absent price as zero but rejects a present,
// non-numeric or negative one.
func priceField(r Raw, key string) (float64, bool) {
	v, present := r[key]
	if !present || v == nil {
		return 0, true
	}
	f, ok := asNumber(v)
	if !ok || f < 0 {
		return 0, false
	}
	return f, true
}

func ensureInterior(r Raw) models.InteriorFormat {
	def := DefaultInteriorFormat()
	positive := func(key string, d float64) float64 {
		if v := r.Num(key, d); v > 0 {
			return v
		}
		return d
	}
	return models.InteriorFormat{
		TrimSize:          r.NonEmptyStr("trimSize", def.TrimSize),
		PageWidthIn:       positive("pageWidthIn", def.PageWidthIn),
		PageHeightIn:      positive("pageHeightIn", def.PageHeightIn),
		MarginTopMm:       positive("marginTopMm", def.MarginTopMm),
		MarginBottomMm:    positive("marginBottomMm", def.MarginBottomMm),
		MarginInsideMm:    positive("marginInsideMm", def.MarginInsideMm),
		MarginOutsideMm:   positive("marginOutsideMm", def.MarginOutsideMm),
		ParagraphIndentEm: positive("paragraphIndentEm", def.ParagraphIndentEm),
		LineHeight:        positive("lineHeight", def.LineHeight),
	}
}
