package stylesheet

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/2005czq/lunettes/domain"
)

// fakeResolver records the categories it was asked for.
type fakeResolver struct {
	sources map[domain.FontCategory]string
	calls   []domain.FontCategory
}

func (f *fakeResolver) Resolve(_ context.Context, category domain.FontCategory) string {
	f.calls = append(f.calls, category)
	return f.sources[category]
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{sources: map[domain.FontCategory]string{
		domain.FontSans:  "data:font/woff2;base64,U0FOUw==",
		domain.FontSerif: "https://cdn.example/serif.woff2",
	}}
}

func TestNormalizeFontNames(t *testing.T) {
	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"should collapse case-insensitive duplicates", []string{"Arial", "arial", " Arial "}, []string{"Arial"}},
		{"should drop blank names", []string{"", "  ", "Georgia"}, []string{"Georgia"}},
		{"should keep the first spelling and order", []string{"Open Sans", "Roboto", "OPEN SANS"}, []string{"Open Sans", "Roboto"}},
		{"should return an empty list for nil", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeFontNames(tt.input)
			if !reflect.DeepEqual(tt.want, got) {
				t.Fatalf("\nwanted:\n%q\ngot:\n%q", tt.want, got)
			}
		})
	}

	t.Run("should be idempotent", func(t *testing.T) {
		input := []string{" Arial", "arial", "", "Times New Roman ", "times new roman", "Serif"}
		once := NormalizeFontNames(input)
		twice := NormalizeFontNames(once)
		if !reflect.DeepEqual(once, twice) {
			t.Fatalf("\nwanted:\n%q\ngot:\n%q", once, twice)
		}
	})
}

func TestFormatFontFamily(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Arial", "'Arial'"},
		{"Sans-Serif", "sans-serif"},
		{"sans serif", "sans-serif"},
		{"SERIF", "serif"},
		{"monospace", "monospace"},
		{"Cursive", "cursive"},
		{"fantasy", "fantasy"},
		{"System UI", "system-ui"},
		{"system-ui", "system-ui"},
		{"O'Reilly Sans", `'O\'Reilly Sans'`},
		{`Back\slash`, `'Back\\slash'`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := FormatFontFamily(tt.input); got != tt.want {
				t.Fatalf("\nwanted:\n%s\ngot:\n%s", tt.want, got)
			}
		})
	}
}

func TestFontFace(t *testing.T) {
	t.Run("should render the exact rule", func(t *testing.T) {
		want := "@font-face {\n" +
			"  font-family: 'Arial';\n" +
			"  src: url('https://cdn.example/sans.woff2') format('woff2');\n" +
			"  font-style: normal;\n" +
			"  font-weight: 400;\n" +
			"  font-display: swap;\n" +
			"}"
		if got := FontFace("'Arial'", "https://cdn.example/sans.woff2"); got != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, got)
		}
	})

	t.Run("should escape quotes in the source", func(t *testing.T) {
		got := FontFace("serif", "https://cdn.example/it's.woff2")
		if !strings.Contains(got, `url('https://cdn.example/it\'s.woff2')`) {
			t.Fatalf("\nwanted:\nescaped source\ngot:\n%s", got)
		}
	})
}

func TestBuild(t *testing.T) {
	ctx := context.Background()

	t.Run("should return an empty stylesheet when both lists are empty", func(t *testing.T) {
		resolver := newFakeResolver()
		s := domain.Settings{SansSerifFonts: []string{" ", ""}, SerifFonts: nil}

		if got := Build(ctx, s, resolver); got != "" {
			t.Fatalf("\nwanted:\n\"\"\ngot:\n%s", got)
		}
		if len(resolver.calls) != 0 {
			t.Fatalf("\nwanted:\nno resolutions\ngot:\n%v", resolver.calls)
		}
	})

	t.Run("should emit one rule per unique font and a single calt rule", func(t *testing.T) {
		resolver := newFakeResolver()
		s := domain.Settings{
			SansSerifFonts: []string{"Arial", "arial", " Arial "},
			SerifFonts:     []string{"Georgia", "Serif"},
		}

		got := Build(ctx, s, resolver)

		if n := strings.Count(got, "@font-face"); n != 3 {
			t.Fatalf("\nwanted:\n3 @font-face rules\ngot:\n%d\n%s", n, got)
		}
		if n := strings.Count(got, ":where(html, body, body *)"); n != 1 {
			t.Fatalf("\nwanted:\n1 calt rule\ngot:\n%d", n)
		}
		if !strings.HasSuffix(got, ContextualAlternatesRule()) {
			t.Fatalf("\nwanted:\ncalt rule last\ngot:\n%s", got)
		}

		want := strings.Join([]string{
			FontFace("'Arial'", resolver.sources[domain.FontSans]),
			FontFace("'Georgia'", resolver.sources[domain.FontSerif]),
			FontFace("serif", resolver.sources[domain.FontSerif]),
			ContextualAlternatesRule(),
		}, "\n")
		if got != want {
			t.Fatalf("\nwanted:\n%s\ngot:\n%s", want, got)
		}
	})

	t.Run("should not resolve the serif source for a sans-only configuration", func(t *testing.T) {
		resolver := newFakeResolver()
		s := domain.Settings{SansSerifFonts: []string{"Arial"}}

		got := Build(ctx, s, resolver)

		if !reflect.DeepEqual([]domain.FontCategory{domain.FontSans}, resolver.calls) {
			t.Fatalf("\nwanted:\n[sans]\ngot:\n%v", resolver.calls)
		}
		if strings.Contains(got, resolver.sources[domain.FontSerif]) {
			t.Fatalf("\nwanted:\nno serif source\ngot:\n%s", got)
		}
		if strings.Count(got, ":where(html, body, body *)") != 1 {
			t.Fatalf("\nwanted:\n1 calt rule\ngot:\n%s", got)
		}
	})

	t.Run("should accept a ResolverFunc", func(t *testing.T) {
		resolver := ResolverFunc(func(context.Context, domain.FontCategory) string { return "x" })
		got := Build(ctx, domain.Settings{SerifFonts: []string{"Palatino"}}, resolver)
		if !strings.Contains(got, "url('x')") {
			t.Fatalf("\nwanted:\nurl('x')\ngot:\n%s", got)
		}
	})
}
