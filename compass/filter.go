package compass

import (
	"net/url"

	"github.com/2005czq/lunettes/domain"
)

// HasMatch reports whether u matches any of patterns.
func HasMatch(u *url.URL, patterns []string) bool {
	if u == nil {
		return false
	}
	location := NewLocation(u)
	for _, pattern := range patterns {
		if location.Matches(pattern) {
			return true
		}
	}
	return false
}

// IsSiteFiltered reports whether styling must be suppressed for the page at u.
//
// In blacklist mode a page is filtered when it matches the blacklist. In any
// other mode the whitelist applies and a page is filtered when it does not
// match it, so an empty whitelist filters every page.
func IsSiteFiltered(settings domain.Settings, u *url.URL) bool {
	hasMatch := HasMatch(u, settings.ActiveList())

	if settings.FilterMode == domain.FilterModeBlacklist {
		return hasMatch
	}

	return !hasMatch
}
