package bionic

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2005czq/lunettes/domain"
	"github.com/2005czq/lunettes/stylesheet"
)

type fakeDocument struct {
	u *url.URL

	mu        sync.Mutex
	next      int
	live      map[int]string
	injects   int
	injectErr error
}

func newFakeDocument(t *testing.T, rawURL string) *fakeDocument {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parsing url: %v", err)
	}
	return &fakeDocument{u: u, live: make(map[int]string)}
}

func (d *fakeDocument) URL() *url.URL { return d.u }

func (d *fakeDocument) InjectStyle(css string) (Style, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.injectErr != nil {
		return nil, d.injectErr
	}
	d.next++
	d.injects++
	d.live[d.next] = css
	return &fakeStyle{doc: d, id: d.next}, nil
}

func (d *fakeDocument) styles() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	styles := make([]string, 0, len(d.live))
	for _, css := range d.live {
		styles = append(styles, css)
	}
	return styles
}

type fakeStyle struct {
	doc *fakeDocument
	id  int
}

func (s *fakeStyle) Remove() error {
	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	delete(s.doc.live, s.id)
	return nil
}

type fakeSource struct {
	mu       sync.Mutex
	current  domain.Settings
	handlers map[int]func(domain.Settings)
	next     int
}

func newFakeSource(s domain.Settings) *fakeSource {
	return &fakeSource{current: s, handlers: make(map[int]func(domain.Settings))}
}

func (f *fakeSource) Get() domain.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeSource) OnChange(handler func(domain.Settings)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.handlers[id] = handler
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.handlers, id)
	}
}

func (f *fakeSource) emit(s domain.Settings) {
	f.mu.Lock()
	f.current = s
	handlers := make([]func(domain.Settings), 0, len(f.handlers))
	for _, handler := range f.handlers {
		handlers = append(handlers, handler)
	}
	f.mu.Unlock()
	for _, handler := range handlers {
		handler(s)
	}
}

var fixedResolver = stylesheet.ResolverFunc(func(_ context.Context, category domain.FontCategory) string {
	return "https://cdn.example/" + string(category) + ".woff2"
})

func baseSettings() domain.Settings {
	return domain.Settings{
		SansSerifFonts: []string{"Arial"},
		SerifFonts:     []string{"Georgia"},
		FilterMode:     domain.FilterModeBlacklist,
		Blacklist:      []string{"*://blocked.example/*"},
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("\nwanted:\n%s\ngot:\ntimeout", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOrchestrator_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("should inject the stylesheet on an unfiltered page", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/article")
		o := New(doc, newFakeSource(baseSettings()), StylesheetBuilder(fixedResolver))

		if err := o.Apply(ctx, baseSettings()); err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		styles := doc.styles()
		if len(styles) != 1 {
			t.Fatalf("\nwanted:\n1 style\ngot:\n%d", len(styles))
		}
		if !strings.Contains(styles[0], "font-family: 'Arial';") || !strings.Contains(styles[0], "font-family: 'Georgia';") {
			t.Fatalf("\nwanted:\nrules for Arial and Georgia\ngot:\n%s", styles[0])
		}
		if !o.Active() {
			t.Fatalf("\nwanted:\nactive\ngot:\nabsent")
		}
	})

	t.Run("should not inject on a blacklisted page", func(t *testing.T) {
		doc := newFakeDocument(t, "https://blocked.example/x")
		o := New(doc, newFakeSource(baseSettings()), StylesheetBuilder(fixedResolver))

		o.Apply(ctx, baseSettings())

		if len(doc.styles()) != 0 {
			t.Fatalf("\nwanted:\nno style\ngot:\n%v", doc.styles())
		}
	})

	t.Run("should not inject anywhere with an empty whitelist", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		s := baseSettings()
		s.FilterMode = domain.FilterModeWhitelist
		s.Whitelist = nil
		o := New(doc, newFakeSource(s), StylesheetBuilder(fixedResolver))

		o.Apply(ctx, s)

		if len(doc.styles()) != 0 {
			t.Fatalf("\nwanted:\nno style\ngot:\n%v", doc.styles())
		}
	})

	t.Run("should remove the style when the site becomes filtered", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		o := New(doc, newFakeSource(baseSettings()), StylesheetBuilder(fixedResolver))

		o.Apply(ctx, baseSettings())
		filtered := baseSettings()
		filtered.Blacklist = []string{"example.com"}
		o.Apply(ctx, filtered)

		if len(doc.styles()) != 0 || o.Active() {
			t.Fatalf("\nwanted:\nno style\ngot:\n%v", doc.styles())
		}
	})

	t.Run("should remove the style when the stylesheet is blank", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		o := New(doc, newFakeSource(baseSettings()), StylesheetBuilder(fixedResolver))

		o.Apply(ctx, baseSettings())
		empty := baseSettings()
		empty.SansSerifFonts = []string{" "}
		empty.SerifFonts = nil
		o.Apply(ctx, empty)

		if len(doc.styles()) != 0 {
			t.Fatalf("\nwanted:\nno style\ngot:\n%v", doc.styles())
		}
	})

	t.Run("should replace the previous style", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		o := New(doc, newFakeSource(baseSettings()), StylesheetBuilder(fixedResolver))

		o.Apply(ctx, baseSettings())
		changed := baseSettings()
		changed.SansSerifFonts = []string{"Verdana"}
		o.Apply(ctx, changed)

		styles := doc.styles()
		if len(styles) != 1 || !strings.Contains(styles[0], "'Verdana'") {
			t.Fatalf("\nwanted:\none Verdana style\ngot:\n%v", styles)
		}
	})

	t.Run("should drop a result superseded by a newer trigger", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		entered := make(chan struct{})
		release := make(chan struct{})
		builder := BuilderFunc(func(_ context.Context, s domain.Settings) string {
			if s.Locale == "slow" {
				close(entered)
				<-release
			}
			return "css-" + s.Locale
		})
		o := New(doc, newFakeSource(baseSettings()), builder)

		slow := baseSettings()
		slow.Locale = "slow"
		done := make(chan error)
		go func() { done <- o.Apply(ctx, slow) }()
		<-entered

		fast := baseSettings()
		fast.Locale = "fast"
		o.Apply(ctx, fast)

		close(release)
		if err := <-done; err != nil {
			t.Fatalf("\nwanted:\nnil\ngot:\n%v", err)
		}

		styles := doc.styles()
		if len(styles) != 1 || styles[0] != "css-fast" {
			t.Fatalf("\nwanted:\n[css-fast]\ngot:\n%v", styles)
		}
		if doc.injects != 1 {
			t.Fatalf("\nwanted:\n1 injection\ngot:\n%d", doc.injects)
		}
	})

	t.Run("should report injection failures", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		doc.injectErr = errors.New("document closed")
		o := New(doc, newFakeSource(baseSettings()), StylesheetBuilder(fixedResolver))

		if err := o.Apply(ctx, baseSettings()); err == nil {
			t.Fatalf("\nwanted:\nerror\ngot:\nnil")
		}
		if o.Active() {
			t.Fatalf("\nwanted:\nabsent\ngot:\nactive")
		}
	})
}

func TestOrchestrator_Start(t *testing.T) {
	t.Run("should follow settings changes and clean up on stop", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		source := newFakeSource(baseSettings())
		o := New(doc, source, StylesheetBuilder(fixedResolver))

		stop := o.Start(context.Background())
		waitFor(t, "initial style", func() bool { return len(doc.styles()) == 1 })

		changed := baseSettings()
		changed.SerifFonts = []string{"Palatino"}
		source.emit(changed)
		waitFor(t, "Palatino style", func() bool {
			styles := doc.styles()
			return len(styles) == 1 && strings.Contains(styles[0], "'Palatino'")
		})

		stop()
		if len(doc.styles()) != 0 {
			t.Fatalf("\nwanted:\nno style after stop\ngot:\n%v", doc.styles())
		}

		source.emit(baseSettings())
		time.Sleep(20 * time.Millisecond)
		if len(doc.styles()) != 0 {
			t.Fatalf("\nwanted:\nno style after stop\ngot:\n%v", doc.styles())
		}
		stop()
	})

	t.Run("should keep at most one style under bursts of changes", func(t *testing.T) {
		doc := newFakeDocument(t, "https://example.com/")
		source := newFakeSource(baseSettings())
		builder := BuilderFunc(func(ctx context.Context, s domain.Settings) string {
			time.Sleep(time.Millisecond)
			return stylesheet.Build(ctx, s, fixedResolver)
		})
		o := New(doc, source, builder)
		stop := o.Start(context.Background())
		defer stop()

		for i := range 50 {
			s := baseSettings()
			s.SansSerifFonts = []string{"Font" + strings.Repeat("x", i)}
			source.emit(s)
			if n := len(doc.styles()); n > 1 {
				t.Fatalf("\nwanted:\nat most 1 style\ngot:\n%d", n)
			}
		}

		want := "'Font" + strings.Repeat("x", 49) + "'"
		waitFor(t, "latest settings applied", func() bool {
			styles := doc.styles()
			return len(styles) == 1 && strings.Contains(styles[0], want)
		})
	})
}
