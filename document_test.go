package lunettes

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/2005czq/lunettes/rawhttp"
)

func TestHTMLDocument(t *testing.T) {
	u, _ := url.Parse("https://example.com/")

	t.Run("should inject and remove a style in html", func(t *testing.T) {
		doc := newHTMLDocument(u, rawhttp.KindHTML, []byte(testPage))

		style, err := doc.InjectStyle("p { color: red; } </style>")
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		content, ok := doc.Injected()
		if !ok {
			t.Fatalf("\nwanted:\ninjected\ngot:\nnot injected")
		}
		if content != `p { color: red; } <\/style>` {
			t.Fatalf("\nwanted:\nescaped style content\ngot:\n%s", content)
		}
		if !strings.Contains(string(doc.Body()), ">"+content+"</style></head>") {
			t.Fatalf("\nwanted:\nstyle element holding the content\ngot:\n%s", doc.Body())
		}

		if err := style.Remove(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if string(doc.Body()) != testPage {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", testPage, doc.Body())
		}
		if _, ok := doc.Injected(); ok {
			t.Fatalf("\nwanted:\nnot injected\ngot:\ninjected")
		}
	})

	t.Run("removing a replaced style should keep the newer one", func(t *testing.T) {
		doc := newHTMLDocument(u, rawhttp.KindHTML, []byte(testPage))

		first, err := doc.InjectStyle("a {}")
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if err := first.Remove(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if _, err := doc.InjectStyle("b {}"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if err := first.Remove(); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		content, ok := doc.Injected()
		if !ok || content != "b {}" {
			t.Fatalf("\nwanted:\nb {}\ngot:\n%q %t", content, ok)
		}
	})

	t.Run("should keep raw css in xhtml", func(t *testing.T) {
		page := `<html xmlns="http://www.w3.org/1999/xhtml"><head/><body/></html>`
		doc := newHTMLDocument(u, rawhttp.KindXHTML, []byte(page))

		if _, err := doc.InjectStyle("a > b {}"); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		content, _ := doc.Injected()
		if content != "a > b {}" {
			t.Fatalf("\nwanted:\na > b {}\ngot:\n%s", content)
		}
	})

	t.Run("should refuse other documents", func(t *testing.T) {
		doc := newHTMLDocument(u, rawhttp.KindOther, []byte(`{}`))

		_, err := doc.InjectStyle("a {}")
		if !errors.Is(err, ErrNotHTML) {
			t.Fatalf("wanted: %q\ngot: %v", ErrNotHTML, err)
		}
		if string(doc.Body()) != `{}` {
			t.Fatalf("\nwanted:\n{}\ngot:\n%s", doc.Body())
		}
	})
}

func TestStyleDocument(t *testing.T) {
	t.Run("should return the styled page", func(t *testing.T) {
		u, _ := url.Parse("https://example.com/")
		styled, content, ok, err := StyleDocument(context.Background(), u, rawhttp.KindHTML, []byte(testPage), testSettings(t), staticBuilder(testCSS), nil)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if !ok || content != testCSS {
			t.Fatalf("\nwanted:\n%s\ngot:\n%q %t", testCSS, content, ok)
		}
		if !strings.Contains(string(styled), testCSS+"</style></head>") {
			t.Fatalf("\nwanted:\nstyled page\ngot:\n%s", styled)
		}
	})

	t.Run("should leave filtered pages alone", func(t *testing.T) {
		u, _ := url.Parse("https://gemini.google.com/app")
		styled, _, ok, err := StyleDocument(context.Background(), u, rawhttp.KindHTML, []byte(testPage), testSettings(t), staticBuilder(testCSS), nil)
		if err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}
		if ok || string(styled) != testPage {
			t.Fatalf("\nwanted:\nunchanged page\ngot:\n%s", styled)
		}
	})

	t.Run("should refuse bodies that are not html", func(t *testing.T) {
		u, _ := url.Parse("https://example.com/")
		_, _, _, err := StyleDocument(context.Background(), u, rawhttp.KindOther, []byte(`{}`), testSettings(t), staticBuilder(testCSS), nil)
		if !errors.Is(err, ErrNotHTML) {
			t.Fatalf("wanted: %q\ngot: %v", ErrNotHTML, err)
		}
	})
}
