package rawhttp

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/beevik/etree"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoRoot is returned when an XHTML document has no root element.
var ErrNoRoot = errors.New("document has no root element")

// InjectHTML inserts fragment into an HTML document: at the end of <head>,
// before the first body content when the head is not closed, after <html>
// or the doctype otherwise. The rest of the document is kept byte for byte.
func InjectHTML(body []byte, fragment string) []byte {
	offset := insertionOffset(body)

	out := make([]byte, 0, len(body)+len(fragment))
	out = append(out, body[:offset]...)
	out = append(out, fragment...)
	out = append(out, body[offset:]...)
	return out
}

func insertionOffset(body []byte) int {
	z := html.NewTokenizer(bytes.NewReader(body))
	offset := 0
	afterHTML := -1
	afterHead := -1
	lead := 0  // after the doctype, so the document keeps its mode
	depth := 0 // open head elements with text content, e.g. <title>

	for {
		tt := z.Next()
		start := offset
		offset += len(z.Raw())

		switch tt {
		case html.ErrorToken:
			return fallback(lead, afterHead, afterHTML, 0)
		case html.DoctypeToken:
			lead = offset
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			switch a := atom.Lookup(name); a {
			case atom.Html:
				afterHTML = offset
			case atom.Head:
				afterHead = offset
			case atom.Meta, atom.Link, atom.Base:
			case atom.Title, atom.Style, atom.Script, atom.Noscript, atom.Template:
				if tt == html.StartTagToken {
					depth++
				}
			default:
				// Any other element starts the body.
				return fallback(lead, afterHead, afterHTML, start)
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch atom.Lookup(name) {
			case atom.Head:
				return start
			case atom.Title, atom.Style, atom.Script, atom.Noscript, atom.Template:
				if depth > 0 {
					depth--
				}
			}
		case html.TextToken:
			if depth == 0 && len(bytes.TrimSpace(z.Raw())) > 0 {
				return fallback(lead, afterHead, afterHTML, start)
			}
		}
	}
}

// fallback picks the insertion point once the head is known to be over.
// bodyStart is where body content begins, 0 when unknown.
func fallback(lead, afterHead, afterHTML, bodyStart int) int {
	switch {
	case bodyStart > 0 && (afterHead >= 0 || afterHTML >= 0):
		return bodyStart
	case afterHead >= 0:
		return afterHead
	case afterHTML >= 0:
		return afterHTML
	default:
		return lead
	}
}

// InjectXHTML appends a style element to the head of an XHTML document,
// creating the head when missing.
func InjectXHTML(body []byte, id string, attrs map[string]string, css string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("parsing xhtml : %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrNoRoot
	}

	head := root.SelectElement("head")
	if head == nil {
		head = etree.NewElement("head")
		root.InsertChildAt(0, head)
	}

	style := head.CreateElement("style")
	style.CreateAttr("id", id)
	for key, value := range attrs {
		style.CreateAttr(key, value)
	}
	style.CreateText(css)

	var out bytes.Buffer
	if _, err := doc.WriteTo(&out); err != nil {
		return nil, fmt.Errorf("writing xhtml : %w", err)
	}
	return out.Bytes(), nil
}
