package htmltext

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWordCount(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want int
	}{
		{"empty", "", 0},
		{"plain", "one two three", 3},
		{"paragraphs do not fuse", "<p>one</p><p>two</p>", 2},
		{"script and style skipped", "<p>visible</p><script>var hidden = 1;</script><style>p{color:red}</style>", 1},
		{"entities collapse to spaces", "<p>a&nbsp;b &amp; c</p>", 3},
		{"line breaks", "first<br/>second<br>third", 3},
		{"nested inline", "<p>Hola <strong>mundo</strong> <em>cruel</em></p>", 3},
		{"unclosed tags", "<p>broken <b>markup", 2},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, WordCount(c.in))
		})
	}
}

func TestTextDecodesEntities(t *testing.T) {
	got := Text("<h1>Cap&iacute;tulo uno</h1><p>Tom &amp; Jerry</p>")
	assert.Equal(t, "Capítulo uno Tom & Jerry", got)
}

func TestParseHeading(t *testing.T) {
	r := Parse("<p>intro</p><h2>The <em>storm</em></h2><h1>Later</h1>")
	assert.Equal(t, "The storm", r.Heading)
	assert.Equal(t, 4, r.Words)
}
