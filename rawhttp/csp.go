package rawhttp

import (
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

// styleDirectives lists the directives governing <style> elements, most specific first.
var styleDirectives = []string{"style-src-elem", "style-src", "default-src"}

// AllowInlineStyle adds the sha256 source of content to every Content-Security-Policy
// on h, so that a style element holding exactly content is not blocked. Policies
// that do not restrict styles, or already allow any inline style, are kept as is.
func AllowInlineStyle(h http.Header, content string) {
	policies := h.Values("Content-Security-Policy")
	if len(policies) == 0 {
		return
	}

	sum := sha256.Sum256([]byte(content))
	source := "'sha256-" + base64.StdEncoding.EncodeToString(sum[:]) + "'"

	updated := make([]string, 0, len(policies))
	for _, policy := range policies {
		updated = append(updated, allowStyleSource(policy, source))
	}
	h.Del("Content-Security-Policy")
	for _, policy := range updated {
		h.Add("Content-Security-Policy", policy)
	}
}

func allowStyleSource(policy string, source string) string {
	directives := strings.Split(policy, ";")

	index := -1
	for _, name := range styleDirectives {
		for i, directive := range directives {
			fields := strings.Fields(directive)
			if len(fields) > 0 && strings.EqualFold(fields[0], name) {
				index = i
				break
			}
		}
		if index >= 0 {
			break
		}
	}
	if index < 0 {
		return policy
	}

	fields := strings.Fields(directives[index])
	unsafeInline, pinned := false, false
	sources := make([]string, 0, len(fields))
	sources = append(sources, fields[0])
	for _, field := range fields[1:] {
		lower := strings.ToLower(field)
		switch {
		case lower == "'none'":
			continue
		case lower == "'unsafe-inline'":
			unsafeInline = true
		case strings.HasPrefix(lower, "'nonce-"), strings.HasPrefix(lower, "'sha"):
			pinned = true
		}
		sources = append(sources, field)
	}
	// Hashes and nonces make browsers ignore 'unsafe-inline'.
	if unsafeInline && !pinned {
		return policy
	}
	sources = append(sources, source)

	directives[index] = " " + strings.Join(sources, " ")
	if index == 0 {
		directives[index] = strings.TrimLeft(directives[index], " ")
	}
	return strings.Join(directives, ";")
}
