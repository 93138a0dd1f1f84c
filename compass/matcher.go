package compass

import (
	"net/url"
	"regexp"
	"strings"
	"sync"
)

// maxCompiled bounds the memoised pattern set. Settings hold a handful of
// patterns, the bound only protects against unbounded growth from edits.
const maxCompiled = 512

var compiled = struct {
	sync.RWMutex
	patterns map[string]*regexp.Regexp
}{patterns: make(map[string]*regexp.Regexp)}

// compileWildcard turns a wildcard pattern into an anchored, case-insensitive
// regular expression. Every character other than "*" is matched literally.
func compileWildcard(pattern string) *regexp.Regexp {
	compiled.RLock()
	re, ok := compiled.patterns[pattern]
	compiled.RUnlock()
	if ok {
		return re
	}

	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re = regexp.MustCompile(`(?is)^` + strings.Join(parts, `.*`) + `$`)

	compiled.Lock()
	if len(compiled.patterns) >= maxCompiled {
		compiled.patterns = make(map[string]*regexp.Regexp)
	}
	compiled.patterns[pattern] = re
	compiled.Unlock()
	return re
}

// WildcardMatch reports whether target matches pattern as a whole.
func WildcardMatch(target, pattern string) bool {
	return compileWildcard(pattern).MatchString(target)
}

// Matches reports whether the page at u matches pattern.
// An empty (or blank) pattern never matches.
func Matches(u *url.URL, pattern string) bool {
	if u == nil {
		return false
	}
	return NewLocation(u).Matches(pattern)
}

// Matches reports whether the location matches pattern. See Matches.
func (l Location) Matches(pattern string) bool {
	trimmed := strings.TrimSpace(pattern)
	if trimmed == "" {
		return false
	}

	if strings.Contains(trimmed, "://") {
		return WildcardMatch(l.Href, trimmed)
	}

	if strings.Contains(trimmed, "/") {
		return WildcardMatch(l.HostAndPath(), trimmed)
	}

	return WildcardMatch(l.Host, trimmed) || WildcardMatch(l.Hostname, trimmed)
}
