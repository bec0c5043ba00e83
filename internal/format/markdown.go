package format

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// ToHTML renders markdown to an HTML fragment for web clients. Raw HTML
// in the input is omitted.
func ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Features reports the block constructs found in a markdown document.
type Features struct {
	Tables         int
	ThematicBreaks int
	Headings       int
}

// Inspect parses markdown and counts the constructs that some surfaces
// cannot render.
func Inspect(markdown string) Features {
	src := []byte(markdown)
	doc := md.Parser().Parse(text.NewReader(src))

	var f Features
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case extast.KindTable:
			f.Tables++
		case ast.KindThematicBreak:
			f.ThematicBreaks++
		case ast.KindHeading:
			f.Headings++
		}
		return ast.WalkContinue, nil
	})
	return f
}

// HasTable reports whether markdown contains a GFM table.
func HasTable(markdown string) bool {
	return Inspect(markdown).Tables > 0
}

// Patterns for stripping markdown formatting.
var (
	mdBold       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	mdItalic     = regexp.MustCompile(`\*(.+?)\*`)
	mdLink       = regexp.MustCompile(`\[([^\]]+)\]\(<?([^)>]+)>?\)`)
	mdAngleURL   = regexp.MustCompile(`<(https?://[^\s<>]+)>`)
	mdHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	mdCodeBlock  = regexp.MustCompile("(?s)```[a-zA-Z]*\n?(.*?)```")
	mdInlineCode = regexp.MustCompile("`([^`]+)`")
)

// ToPlain converts markdown to plain text for surfaces without markdown,
// keeping link targets and list markers.
func ToPlain(markdown string) string {
	s := mdCodeBlock.ReplaceAllString(markdown, "$1")
	s = mdLink.ReplaceAllString(s, "$1 ($2)")
	s = mdAngleURL.ReplaceAllString(s, "$1")
	s = mdBold.ReplaceAllString(s, "$1")
	s = mdItalic.ReplaceAllString(s, "$1")
	s = mdInlineCode.ReplaceAllString(s, "$1")
	s = mdHeading.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
