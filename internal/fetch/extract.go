package fetch

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// skipElements are HTML elements whose content is excluded.
var skipElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Form:     true,
	atom.Button:   true,
}

// extractHTML renders an HTML document as markdown-flavored text: a
// title heading, section headings, list bullets and inline links.
func extractHTML(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return stripTags(raw)
	}

	var w strings.Builder
	title := strings.TrimSpace(collapseSpaces(findTitle(doc)))
	if title != "" {
		w.WriteString("# ")
		w.WriteString(title)
		w.WriteString("\n\n")
	}
	render(doc, &w)
	return cleanWhitespace(w.String())
}

// findTitle walks the DOM looking for a <title> element.
func findTitle(n *html.Node) string {
	if n.Type == html.ElementNode && n.DataAtom == atom.Title {
		return textContent(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// textContent returns the concatenated text below n.
func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// render writes the visible text below n.
func render(n *html.Node, w *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		if text := collapseSpaces(n.Data); strings.TrimSpace(text) != "" {
			w.WriteString(text)
		}
		return
	case html.ElementNode:
		if skipElements[n.DataAtom] {
			return
		}
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			level := int(n.Data[1] - '0')
			w.WriteString("\n\n")
			w.WriteString(strings.Repeat("#", level))
			w.WriteString(" ")
			w.WriteString(strings.TrimSpace(collapseSpaces(textContent(n))))
			w.WriteString("\n\n")
			return
		case atom.A:
			text := strings.TrimSpace(collapseSpaces(textContent(n)))
			href := attr(n, "href")
			if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
				w.WriteString(text)
			} else if text != "" {
				w.WriteString("[" + text + "](" + href + ")")
			}
			return
		case atom.Li:
			w.WriteString("\n- ")
		case atom.Br, atom.Hr:
			w.WriteString("\n")
			return
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		render(c, w)
	}

	if n.Type == html.ElementNode && isBlockElement(n.DataAtom) {
		w.WriteString("\n\n")
	}
}

// isBlockElement reports elements that end a paragraph.
func isBlockElement(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main,
		atom.Blockquote, atom.Pre, atom.Ul, atom.Ol, atom.Table,
		atom.Tr, atom.Dl, atom.Dd, atom.Dt, atom.Figcaption, atom.Figure,
		atom.Details, atom.Summary, atom.Header, atom.Aside:
		return true
	}
	return false
}

// collapseSpaces folds runs of whitespace into single spaces while
// keeping a leading or trailing space if there was one.
func collapseSpaces(s string) string {
	if s == "" {
		return s
	}
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return " "
	}
	out := strings.Join(fields, " ")
	if isSpace(s[0]) {
		out = " " + out
	}
	if isSpace(s[len(s)-1]) {
		out += " "
	}
	return out
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r' || b == '\f'
}

// cleanWhitespace trims each line and collapses blank line runs.
func cleanWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	cleaned := make([]string, 0, len(lines))
	prevEmpty := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if prevEmpty {
				continue
			}
			prevEmpty = true
		} else {
			prevEmpty = false
		}
		cleaned = append(cleaned, line)
	}
	return strings.TrimSpace(strings.Join(cleaned, "\n"))
}

// stripTags is the fallback when the document cannot be parsed.
func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return cleanWhitespace(b.String())
		case html.StartTagToken:
			if name, _ := z.TagName(); string(name) == "script" || string(name) == "style" {
				skip++
			}
		case html.EndTagToken:
			if name, _ := z.TagName(); (string(name) == "script" || string(name) == "style") && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
				b.WriteString(" ")
			}
		}
	}
}
