package lunettes

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/2005czq/lunettes/bionic"
	"github.com/2005czq/lunettes/domain"
	"github.com/2005czq/lunettes/rawhttp"
)

var _ bionic.Document = (*htmlDocument)(nil)

// htmlDocument is a decoded response body the orchestrator injects its style into.
// Injection rewrites the buffered body, Remove restores the body it replaced.
type htmlDocument struct {
	url  *url.URL
	kind rawhttp.Kind
	body []byte

	applyID string
	content string // text of the injected style element, empty when none
}

// StyleDocument runs one orchestrator apply with the current settings of source over
// a decoded HTML or XHTML body. It returns the resulting document and the text of the
// injected style element, ok is false when the page was left as is.
func StyleDocument(ctx context.Context, u *url.URL, kind rawhttp.Kind, body []byte, source domain.SettingsSource, builder bionic.Builder, logger *slog.Logger) (styled []byte, content string, ok bool, err error) {
	if kind == rawhttp.KindOther {
		return body, "", false, ErrNotHTML
	}
	doc := newHTMLDocument(u, kind, body)
	orchestrator := bionic.New(doc, source, builder, bionic.WithLogger(logger))
	if err := orchestrator.Apply(ctx, source.Get()); err != nil {
		return body, "", false, err
	}
	content, ok = doc.Injected()
	return doc.Body(), content, ok, nil
}

func newHTMLDocument(u *url.URL, kind rawhttp.Kind, body []byte) *htmlDocument {
	return &htmlDocument{url: u, kind: kind, body: body}
}

func (d *htmlDocument) URL() *url.URL {
	return d.url
}

// Body returns the current document bytes.
func (d *htmlDocument) Body() []byte {
	return d.body
}

// Injected reports whether a style is present and returns the text it holds.
func (d *htmlDocument) Injected() (string, bool) {
	return d.content, d.applyID != ""
}

func (d *htmlDocument) InjectStyle(css string) (bionic.Style, error) {
	applyID := bionic.NewApplyID()

	var body []byte
	var content string
	switch d.kind {
	case rawhttp.KindHTML:
		body = rawhttp.InjectHTML(d.body, bionic.StyleTag(applyID, css))
		content = bionic.StyleContent(css)
	case rawhttp.KindXHTML:
		var err error
		body, err = rawhttp.InjectXHTML(d.body, bionic.StyleElementID, map[string]string{bionic.ApplyAttribute: applyID}, css)
		if err != nil {
			return nil, err
		}
		content = css
	default:
		return nil, fmt.Errorf("injecting into %s document : %w", d.kind, ErrNotHTML)
	}

	style := &htmlStyle{doc: d, applyID: applyID, previous: d.body}
	d.body = body
	d.applyID = applyID
	d.content = content
	return style, nil
}

type htmlStyle struct {
	doc      *htmlDocument
	applyID  string
	previous []byte
}

func (s *htmlStyle) Remove() error {
	if s.doc.applyID != s.applyID {
		return nil
	}
	s.doc.body = s.previous
	s.doc.applyID = ""
	s.doc.content = ""
	return nil
}
