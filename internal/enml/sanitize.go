package enml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

var allowedElements = map[string]bool{
	"a": true, "abbr": true, "acronym": true, "address": true, "area": true, "b": true, "bdo": true,
	"big": true, "blockquote": true, "br": true, "caption": true, "center": true, "cite": true,
	"code": true, "col": true, "colgroup": true, "dd": true, "del": true, "dfn": true, "div": true,
	"dl": true, "dt": true, "em": true, "font": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "hr": true, "i": true, "img": true, "ins": true, "kbd": true, "li": true,
	"map": true, "ol": true, "p": true, "pre": true, "q": true, "s": true, "samp": true, "small": true,
	"span": true, "strike": true, "strong": true, "sub": true, "sup": true, "table": true,
	"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true, "tr": true, "tt": true,
	"u": true, "ul": true, "var": true, "xmp": true,
	"en-media": true, "en-todo": true, "en-crypt": true,
}

// Elements removed together with their content.
var droppedElements = map[string]bool{
	"script": true, "style": true, "head": true, "title": true, "iframe": true, "object": true,
	"embed": true, "applet": true, "form": true, "frameset": true, "frame": true, "noscript": true,
	"button": true, "select": true, "textarea": true,
}

var droppedAttributes = map[string]bool{
	"id": true, "class": true, "accesskey": true, "data": true, "dynsrc": true, "tabindex": true,
}

// Elements that never have content or an end tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true, "hr": true, "img": true,
	"input": true, "link": true, "meta": true, "param": true, "source": true, "track": true, "wbr": true,
}

type openElement struct {
	in, out string
}

// FromHTML keeps the elements and attributes notes allow. Disallowed
// containers such as html and body are unwrapped; scripts, styles and forms
// are removed with their content. Checkbox inputs become to-do marks.
func FromHTML(s string) (string, error) {
	z := html.NewTokenizer(strings.NewReader(s))

	var out strings.Builder
	e := xml.NewEncoder(&out)
	var stack []openElement
	// Name and depth of the dropped element being skipped.
	var skipping string
	var skipDepth int

	closeTo := func(n int) error {
		for len(stack) > n {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.out != "" {
				if err := e.EncodeToken(xml.EndElement{Name: xml.Name{Local: top.out}}); err != nil {
					return err
				}
			}
		}
		return nil
	}

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: %v", ErrInvalid, err)
			}
			break
		}
		tok := z.Token()
		name := tok.Data

		if skipping != "" {
			switch {
			case tt == html.StartTagToken && name == skipping:
				skipDepth++
			case tt == html.EndTagToken && name == skipping:
				if skipDepth--; skipDepth == 0 {
					skipping = ""
				}
			}
			continue
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			void := tt == html.SelfClosingTagToken || voidElements[name]
			switch {
			case droppedElements[name]:
				if !void {
					skipping, skipDepth = name, 1
				}
			case name == "input":
				if attr(tok, "type") != "checkbox" {
					continue
				}
				todo := xml.StartElement{Name: xml.Name{Local: "en-todo"}}
				if hasAttr(tok, "checked") {
					todo.Attr = []xml.Attr{{Name: xml.Name{Local: "checked"}, Value: "true"}}
				}
				if err := e.EncodeToken(todo); err != nil {
					return "", err
				}
				if err := e.EncodeToken(todo.End()); err != nil {
					return "", err
				}
			case allowedElements[name]:
				start := xml.StartElement{Name: xml.Name{Local: name}, Attr: cleanAttrs(xmlAttrs(tok.Attr))}
				if err := e.EncodeToken(start); err != nil {
					return "", err
				}
				if void {
					if err := e.EncodeToken(start.End()); err != nil {
						return "", err
					}
					continue
				}
				stack = append(stack, openElement{in: name, out: name})
			default:
				if !void {
					stack = append(stack, openElement{in: name})
				}
			}
		case html.EndTagToken:
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].in == name {
					if err := closeTo(i); err != nil {
						return "", err
					}
					break
				}
			}
		case html.TextToken:
			if err := e.EncodeToken(xml.CharData(name)); err != nil {
				return "", err
			}
		}
	}
	if err := closeTo(0); err != nil {
		return "", err
	}
	if err := e.Flush(); err != nil {
		return "", err
	}
	return Wrap(out.String()), nil
}

func xmlAttrs(in []html.Attribute) []xml.Attr {
	out := make([]xml.Attr, 0, len(in))
	for _, a := range in {
		out = append(out, xml.Attr{Name: xml.Name{Space: a.Namespace, Local: a.Key}, Value: a.Val})
	}
	return out
}

func cleanAttrs(in []xml.Attr) []xml.Attr {
	var out []xml.Attr
	for _, a := range in {
		name := strings.ToLower(a.Name.Local)
		if a.Name.Space != "" || droppedAttributes[name] || strings.HasPrefix(name, "on") {
			continue
		}
		if (name == "href" || name == "src") && strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.Value)), "javascript:") {
			continue
		}
		out = append(out, xml.Attr{Name: xml.Name{Local: name}, Value: a.Value})
	}
	return out
}

func attr(t html.Token, name string) string {
	for _, a := range t.Attr {
		if a.Key == name {
			return strings.ToLower(a.Val)
		}
	}
	return ""
}

func hasAttr(t html.Token, name string) bool {
	for _, a := range t.Attr {
		if a.Key == name {
			return true
		}
	}
	return false
}

func xmlAttr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if strings.EqualFold(a.Name.Local, name) {
			return strings.ToLower(a.Value)
		}
	}
	return ""
}
