package helpers

import (
	"html"
	"strings"
)

const (
	// ReferencesDelimiter opens the references block appended to grounded answers.
	ReferencesDelimiter = "<hr><h3>References:</h3>"
	// legacyFooterMarker is the plain-text references footer older sessions used.
	legacyFooterMarker = "--- \n\n  \nReferences "
)

// RenderReferences appends the references block to answer. With no URLs the
// answer is returned unchanged.
func RenderReferences(answer string, urls []string) string {
	if len(urls) == 0 {
		return answer
	}
	var b strings.Builder
	b.WriteString(answer)
	b.WriteString("\n")
	b.WriteString(ReferencesDelimiter)
	b.WriteString("<ul>")
	for _, u := range urls {
		esc := html.EscapeString(u)
		b.WriteString(`<li><a href="`)
		b.WriteString(esc)
		b.WriteString(`">`)
		b.WriteString(esc)
		b.WriteString("</a></li>")
	}
	b.WriteString("</ul>")
	return b.String()
}

// StripReferences returns the part of a rendered answer before any
// references block or footer.
func StripReferences(content string) string {
	for _, marker := range []string{ReferencesDelimiter, legacyFooterMarker} {
		if i := strings.Index(content, marker); i >= 0 {
			content = content[:i]
		}
	}
	return strings.TrimSpace(content)
}
