package helpers

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// elements whose text never belongs to the readable page body
var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Head:     true,
	atom.Meta:     true,
	atom.Noscript: true,
	atom.Header:   true,
	atom.Input:    true,
	atom.Template: true,
}

// VisibleText walks an HTML document and returns the text a reader would see,
// ignoring scripts, styles, the document head, page headers and form inputs.
func VisibleText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var (
		b    strings.Builder
		skip int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", err
			}
			return CollapseWhitespace(b.String()), nil
		case html.StartTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] && !voidElement(a) {
				skip++
			}
			if isBlock(a) {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			a := atom.Lookup(name)
			if skippedElements[a] && !voidElement(a) && skip > 0 {
				skip--
			}
			if isBlock(a) {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}

func voidElement(a atom.Atom) bool {
	return a == atom.Meta || a == atom.Input
}

func isBlock(a atom.Atom) bool {
	switch a {
	case atom.P, atom.Div, atom.Br, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4,
		atom.H5, atom.H6, atom.Tr, atom.Section, atom.Article, atom.Blockquote, atom.Pre:
		return true
	}
	return false
}

// CollapseWhitespace trims every line, squeezes inner runs of spaces and drops
// blank lines.
func CollapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
