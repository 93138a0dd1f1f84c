package compass

import (
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// defaultPorts are dropped from the host the same way a browser location does.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// Location is the browser view of a URL: the components a page script would
// read from window.location.
type Location struct {
	Href     string // scheme://host/pathname?search#hash
	Protocol string // scheme followed by ":"
	Host     string // hostname plus a non-default port
	Hostname string // host without the port
	Pathname string // path, "/" when empty
	Search   string // "?query" or "" when the query is empty
	Hash     string // "#fragment" or "" when the fragment is empty
}

// NewLocation normalizes u into a Location. Scheme and host are lowercased,
// internationalized hostnames are converted to their punycode form and default
// ports are removed, so "HTTPS://Example.com:443" and "https://example.com/"
// produce the same Location.
func NewLocation(u *url.URL) Location {
	scheme := strings.ToLower(u.Scheme)
	hostname := asciiHostname(u.Hostname())

	host := hostname
	if port := u.Port(); port != "" && defaultPorts[scheme] != port {
		host = hostname + ":" + port
	}

	pathname := u.EscapedPath()
	if pathname == "" && host != "" {
		pathname = "/"
	}

	var search string
	if u.RawQuery != "" {
		search = "?" + u.RawQuery
	}

	var hash string
	if fragment := u.EscapedFragment(); fragment != "" {
		hash = "#" + fragment
	}

	href := scheme + ":"
	if host != "" || u.User != nil || scheme == "file" {
		href += "//"
		if u.User != nil {
			href += u.User.String() + "@"
		}
		href += host
	}
	href += pathname + search + hash

	return Location{
		Href:     href,
		Protocol: scheme + ":",
		Host:     host,
		Hostname: hostname,
		Pathname: pathname,
		Search:   search,
		Hash:     hash,
	}
}

// asciiHostname returns the lowercased ASCII form of hostname the way a browser
// exposes it. Names the IDNA lookup profile rejects are only lowercased.
func asciiHostname(hostname string) string {
	if strings.Contains(hostname, ":") {
		return "[" + strings.ToLower(hostname) + "]"
	}
	ascii, err := idna.Lookup.ToASCII(hostname)
	if err != nil {
		return strings.ToLower(hostname)
	}
	return ascii
}

// HostAndPath returns host + pathname + search + hash, the target of patterns
// that contain a "/" but no scheme.
func (l Location) HostAndPath() string {
	return l.Host + l.Pathname + l.Search + l.Hash
}
