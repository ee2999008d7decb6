// Package enml converts plain text, Markdown and HTML into note markup, and
// note markup back into HTML for display.
package enml

import (
	"bytes"
	"errors"
	"html"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/yuin/goldmark"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/jun/gophnote/internal/model"
)

const (
	Header = `<?xml version="1.0" encoding="UTF-8"?>` + "\n" +
		`<!DOCTYPE en-note SYSTEM "http://xml.evernote.com/pub/enml2.dtd">` + "\n"
	openNote  = "<en-note>"
	closeNote = "</en-note>"
)

// ErrInvalid is returned when input cannot be parsed as markup.
var ErrInvalid = errors.New("enml: invalid markup")

// Wrap surrounds an already valid body with the document header and root.
func Wrap(body string) string {
	return Header + openNote + body + closeNote
}

// AppendMedia adds an en-media element for each resource at the end of doc.
func AppendMedia(doc string, resources ...*model.Resource) (string, error) {
	body, ok := strings.CutSuffix(strings.TrimRight(doc, " \n"), closeNote)
	if !ok {
		return "", ErrInvalid
	}
	var b strings.Builder
	b.WriteString(body)
	for _, r := range resources {
		b.WriteString(r.MediaTag())
	}
	b.WriteString(closeNote)
	return b.String(), nil
}

// FromPlainText turns each line of s into its own div. Blank lines become
// empty paragraphs.
func FromPlainText(s string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if line == "" {
			b.WriteString("<div><br/></div>")
			continue
		}
		b.WriteString("<div>")
		b.WriteString(html.EscapeString(line))
		b.WriteString("</div>")
	}
	return Wrap(b.String())
}

// Converter renders Markdown into note markup.
type Converter struct {
	md goldmark.Markdown
}

// NewConverter returns a Converter with GitHub Flavored Markdown and syntax
// highlighting. Highlighting uses inline styles since class attributes are
// not allowed in notes.
func NewConverter() *Converter {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			highlighting.NewHighlighting(
				highlighting.WithStyle("github"),
				highlighting.WithFormatOptions(
					chromahtml.WithClasses(false),
				),
			),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithHardWraps(),
			gmhtml.WithXHTML(),
		),
	)
	return &Converter{md: md}
}

// FromMarkdown renders src and sanitizes the result into a note document.
func (c *Converter) FromMarkdown(src []byte) (string, error) {
	var buf bytes.Buffer
	if err := c.md.Convert(src, &buf); err != nil {
		return "", err
	}
	return FromHTML(buf.String())
}

var defaultConverter = NewConverter()

// FromMarkdown renders src with the default Converter.
func FromMarkdown(src []byte) (string, error) {
	return defaultConverter.FromMarkdown(src)
}
