package enml

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jun/gophnote/internal/model"
)

// ToHTML renders a note document for display. Media whose hash matches one
// of resources is inlined as a data URI; other media become placeholders.
// Encrypted sections are left out.
func ToHTML(doc string, resources []*model.Resource) (string, error) {
	byHash := make(map[string]*model.Resource, len(resources))
	for _, r := range resources {
		byHash[hex.EncodeToString(r.BodyHash())] = r
	}

	d := xml.NewDecoder(strings.NewReader(doc))
	d.Entity = xml.HTMLEntity

	var out strings.Builder
	e := xml.NewEncoder(&out)
	var stack []string
	seenRoot := false

	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrInvalid, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "en-note":
				seenRoot = true
				stack = append(stack, "div")
				if err := e.EncodeToken(xml.StartElement{Name: xml.Name{Local: "div"}, Attr: cleanAttrs(t.Attr)}); err != nil {
					return "", err
				}
			case "en-crypt":
				if err := d.Skip(); err != nil {
					return "", fmt.Errorf("%w: %v", ErrInvalid, err)
				}
			case "en-todo":
				if err := writeTodo(e, t); err != nil {
					return "", err
				}
				if err := d.Skip(); err != nil {
					return "", fmt.Errorf("%w: %v", ErrInvalid, err)
				}
			case "en-media":
				if err := writeMedia(e, t, byHash); err != nil {
					return "", err
				}
				if err := d.Skip(); err != nil {
					return "", fmt.Errorf("%w: %v", ErrInvalid, err)
				}
			default:
				stack = append(stack, t.Name.Local)
				if err := e.EncodeToken(xml.StartElement{Name: xml.Name{Local: t.Name.Local}, Attr: cleanAttrs(t.Attr)}); err != nil {
					return "", err
				}
			}
		case xml.EndElement:
			name := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if err := e.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}}); err != nil {
				return "", err
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			if err := e.EncodeToken(t.Copy()); err != nil {
				return "", err
			}
		}
	}
	if !seenRoot {
		return "", fmt.Errorf("%w: missing en-note root", ErrInvalid)
	}
	if err := e.Flush(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func writeTodo(e *xml.Encoder, t xml.StartElement) error {
	input := xml.StartElement{
		Name: xml.Name{Local: "input"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "type"}, Value: "checkbox"},
			{Name: xml.Name{Local: "disabled"}, Value: "disabled"},
		},
	}
	if xmlAttr(t, "checked") == "true" {
		input.Attr = append(input.Attr, xml.Attr{Name: xml.Name{Local: "checked"}, Value: "checked"})
	}
	if err := e.EncodeToken(input); err != nil {
		return err
	}
	return e.EncodeToken(input.End())
}

func writeMedia(e *xml.Encoder, t xml.StartElement, byHash map[string]*model.Resource) error {
	hash := xmlAttr(t, "hash")
	r, ok := byHash[hash]
	if !ok {
		span := xml.StartElement{
			Name: xml.Name{Local: "span"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "data-media-hash"}, Value: hash}},
		}
		return encodeAll(e, span, xml.CharData("[attachment]"), span.End())
	}

	uri := "data:" + r.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(r.Data)
	if strings.HasPrefix(r.MIMEType, "image/") {
		img := xml.StartElement{
			Name: xml.Name{Local: "img"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "src"}, Value: uri},
				{Name: xml.Name{Local: "alt"}, Value: r.Filename},
			},
		}
		return encodeAll(e, img, img.End())
	}
	label := r.Filename
	if label == "" {
		label = r.MIMEType
	}
	a := xml.StartElement{
		Name: xml.Name{Local: "a"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "href"}, Value: uri},
			{Name: xml.Name{Local: "download"}, Value: r.Filename},
		},
	}
	return encodeAll(e, a, xml.CharData(label), a.End())
}

func encodeAll(e *xml.Encoder, toks ...xml.Token) error {
	for _, tok := range toks {
		if err := e.EncodeToken(tok); err != nil {
			return err
		}
	}
	return nil
}
