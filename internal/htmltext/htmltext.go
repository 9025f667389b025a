// Package htmltext reduces chapter HTML to plain text for word counts and
// full-text indexing.
package htmltext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var entityRe = regexp.MustCompile(`&[#a-zA-Z0-9]+;`)

// Result holds the output of parsing chapter HTML.
type Result struct {
	Text    string
	Words   int
	Heading string
}

// Parse strips tags, script and style content from src. Every tag boundary
// becomes whitespace so adjacent block elements do not fuse words together.
// Malformed markup never fails; the tokenizer recovers and Parse keeps
// whatever text it reached.
func Parse(src string) *Result {
	z := html.NewTokenizer(strings.NewReader(src))

	var (
		b         strings.Builder
		counted   strings.Builder
		skipDepth int
		inHeading bool
		heading   strings.Builder
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return finish(b.String(), counted.String(), heading.String())

		case html.StartTagToken:
			name, _ := z.TagName()
			switch tag := string(name); {
			case isSkipped(tag):
				skipDepth++
			case isHeading(tag) && heading.Len() == 0:
				inHeading = true
			}
			b.WriteByte(' ')
			counted.WriteByte(' ')

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if isSkipped(tag) && skipDepth > 0 {
				skipDepth--
			}
			if isHeading(tag) {
				inHeading = false
			}
			b.WriteByte(' ')
			counted.WriteByte(' ')

		case html.SelfClosingTagToken:
			b.WriteByte(' ')
			counted.WriteByte(' ')

		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			// Words are counted on the raw text with entities collapsed to
			// spaces, so "a &amp; b" is two words.
			counted.WriteString(entityRe.ReplaceAllString(string(z.Raw()), " "))
			text := string(z.Text())
			b.WriteString(text)
			if inHeading {
				heading.WriteString(text)
			}
		}
	}
}

func finish(text, counted, heading string) *Result {
	return &Result{
		Text:    strings.Join(strings.Fields(text), " "),
		Words:   len(strings.Fields(counted)),
		Heading: strings.Join(strings.Fields(heading), " "),
	}
}

// Text returns the whitespace-collapsed plain text of src.
func Text(src string) string {
	return Parse(src).Text
}

// WordCount returns the number of whitespace-separated words in src.
func WordCount(src string) int {
	return Parse(src).Words
}

func isSkipped(tag string) bool {
	switch tag {
	case "script", "style", "noscript":
		return true
	}
	return false
}

func isHeading(tag string) bool {
	switch tag {
	case "h1", "h2", "h3":
		return true
	}
	return false
}
