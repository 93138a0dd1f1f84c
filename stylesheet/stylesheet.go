// Package stylesheet builds the CSS that maps the user's font families onto
// the bionic fonts: one @font-face rule per configured family name, followed
// by a single rule enabling contextual alternates on the whole document.
package stylesheet

import (
	"context"
	"strings"

	"github.com/2005czq/lunettes/domain"
)

// Resolver provides the CSS source of a font category.
type Resolver interface {
	Resolve(ctx context.Context, category domain.FontCategory) string
}

// ResolverFunc adapts a function to a Resolver.
type ResolverFunc func(ctx context.Context, category domain.FontCategory) string

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, category domain.FontCategory) string {
	return f(ctx, category)
}

var genericFamilies = map[string]string{
	"serif":      "serif",
	"sans-serif": "sans-serif",
	"sans serif": "sans-serif",
	"monospace":  "monospace",
	"cursive":    "cursive",
	"fantasy":    "fantasy",
	"system-ui":  "system-ui",
	"system ui":  "system-ui",
}

// NormalizeFontNames trims every name, drops empty ones and removes
// case-insensitive duplicates, keeping the first spelling.
func NormalizeFontNames(fonts []string) []string {
	seen := make(map[string]struct{}, len(fonts))
	normalized := make([]string, 0, len(fonts))
	for _, font := range fonts {
		font = strings.TrimSpace(font)
		if font == "" {
			continue
		}
		key := strings.ToLower(font)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		normalized = append(normalized, font)
	}
	return normalized
}

// GenericFamily returns the CSS generic family keyword for font, if it names one.
func GenericFamily(font string) (string, bool) {
	generic, ok := genericFamilies[strings.ToLower(strings.TrimSpace(font))]
	return generic, ok
}

var familyEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

// FormatFontFamily renders font as a font-family value: the bare keyword for
// generic families, a single-quoted escaped string otherwise.
func FormatFontFamily(font string) string {
	if generic, ok := GenericFamily(font); ok {
		return generic
	}
	return "'" + familyEscaper.Replace(font) + "'"
}

// FontFace renders one @font-face rule. family must already be formatted.
func FontFace(family string, src string) string {
	var b strings.Builder
	b.WriteString("@font-face {\n")
	b.WriteString("  font-family: " + family + ";\n")
	b.WriteString("  src: url('" + strings.ReplaceAll(src, "'", `\'`) + "') format('woff2');\n")
	b.WriteString("  font-style: normal;\n")
	b.WriteString("  font-weight: 400;\n")
	b.WriteString("  font-display: swap;\n")
	b.WriteString("}")
	return b.String()
}

// ContextualAlternatesRule enables the "calt" feature the bionic fonts rely on.
func ContextualAlternatesRule() string {
	return ":where(html, body, body *) {\n" +
		"  font-feature-settings: \"calt\" 1 !important;\n" +
		"  font-variant-ligatures: contextual !important;\n" +
		"}"
}

// Build returns the stylesheet for s, or "" when neither font list has a usable
// name. A category's source is only resolved when its list is non-empty.
func Build(ctx context.Context, s domain.Settings, resolver Resolver) string {
	lists := []struct {
		category domain.FontCategory
		fonts    []string
	}{
		{domain.FontSans, NormalizeFontNames(s.SansSerifFonts)},
		{domain.FontSerif, NormalizeFontNames(s.SerifFonts)},
	}

	var blocks []string
	for _, list := range lists {
		if len(list.fonts) == 0 {
			continue
		}
		src := resolver.Resolve(ctx, list.category)
		rules := make([]string, len(list.fonts))
		for i, font := range list.fonts {
			rules[i] = FontFace(FormatFontFamily(font), src)
		}
		blocks = append(blocks, strings.Join(rules, "\n"))
	}

	if len(blocks) == 0 {
		return ""
	}
	blocks = append(blocks, ContextualAlternatesRule())
	return strings.Join(blocks, "\n")
}
