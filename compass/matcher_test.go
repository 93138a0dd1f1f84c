package compass

import (
	"net/url"
	"testing"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parsing %q: %v", raw, err)
	}
	return u
}

func TestNewLocation(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Location
	}{
		{
			name: "should add a root path and drop the default port",
			raw:  "HTTPS://Example.com:443",
			want: Location{
				Href:     "https://example.com/",
				Protocol: "https:",
				Host:     "example.com",
				Hostname: "example.com",
				Pathname: "/",
			},
		},
		{
			name: "should keep a non default port in host only",
			raw:  "http://example.com:8080/a/b?q=1#top",
			want: Location{
				Href:     "http://example.com:8080/a/b?q=1#top",
				Protocol: "http:",
				Host:     "example.com:8080",
				Hostname: "example.com",
				Pathname: "/a/b",
				Search:   "?q=1",
				Hash:     "#top",
			},
		},
		{
			name: "should drop an empty query and fragment",
			raw:  "https://example.com/page?#",
			want: Location{
				Href:     "https://example.com/page",
				Protocol: "https:",
				Host:     "example.com",
				Hostname: "example.com",
				Pathname: "/page",
			},
		},
		{
			name: "should convert internationalized hostnames to punycode",
			raw:  "https://Bücher.de:8443/x",
			want: Location{
				Href:     "https://xn--bcher-kva.de:8443/x",
				Protocol: "https:",
				Host:     "xn--bcher-kva.de:8443",
				Hostname: "xn--bcher-kva.de",
				Pathname: "/x",
			},
		},
		{
			name: "should only lowercase hostnames idna rejects",
			raw:  "http://My_Host.local/",
			want: Location{
				Href:     "http://my_host.local/",
				Protocol: "http:",
				Host:     "my_host.local",
				Hostname: "my_host.local",
				Pathname: "/",
			},
		},
		{
			name: "should bracket ipv6 hostnames",
			raw:  "http://[::1]:3000/",
			want: Location{
				Href:     "http://[::1]:3000/",
				Protocol: "http:",
				Host:     "[::1]:3000",
				Hostname: "[::1]",
				Pathname: "/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLocation(mustParse(t, tt.raw))
			if got != tt.want {
				t.Fatalf("\nwanted:\n%+v\ngot:\n%+v", tt.want, got)
			}
		})
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		pattern string
		want    bool
	}{
		{"should never match an empty pattern", "https://example.com/", "", false},
		{"should never match a blank pattern", "https://example.com/", "   ", false},
		{"should match a full url pattern", "https://example.com/page", "*://example.com/*", true},
		{"should match a full url pattern on a bare origin", "https://example.com", "*://example.com/*", true},
		{"should not match a full url pattern on another host", "https://other.com/page", "*://example.com/*", false},
		{"should match full url patterns case-insensitively", "https://EXAMPLE.com/Page", "HTTPS://example.COM/page", true},
		{"should match a trimmed pattern", "https://example.com/page", "  *://example.com/*  ", true},
		{"should match host and path without scheme", "https://example.com/docs/intro?x=1#s", "example.com/docs/*", true},
		{"should include search and hash in host and path", "https://example.com/docs?x=1", "example.com/docs", false},
		{"should match host with port in host and path", "http://example.com:8080/a", "example.com:8080/a", true},
		{"should match a bare host", "https://example.com/anything", "example.com", true},
		{"should match a host wildcard", "https://news.example.com/", "*.example.com", true},
		{"should not match the apex with a subdomain wildcard", "https://example.com/", "*.example.com", false},
		{"should match the hostname when the host has a port", "http://example.com:8080/", "example.com", true},
		{"should match the host with port", "http://example.com:8080/", "example.com:8080", true},
		{"should treat dots literally", "https://exampleXcom/", "example.com", false},
		{"should treat regex metacharacters literally", "https://example.com/a+b", "example.com/a+b", true},
		{"should not treat a question mark as a wildcard", "https://example.com/ab", "example.com/a?", false},
		{"should let the wildcard span path segments", "https://example.com/a/b/c", "example.com/*/c", true},
		{"should let the wildcard match nothing", "https://example.com/", "example.com/*", true},
		{"should match an exact url without wildcard", "https://example.com/page", "https://example.com/page", true},
		{"should not match a prefix without wildcard", "https://example.com/page/more", "https://example.com/page", false},
		{"should match an internationalized host by its punycode name", "https://bücher.de/x", "xn--bcher-kva.de", true},
		{"should match an internationalized host in a full url pattern", "https://bücher.de/x", "*://xn--bcher-kva.de/*", true},
		{"should match a percent-encoded internationalized host", "https://b%C3%BCcher.de/x", "xn--bcher-kva.de/x", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(mustParse(t, tt.url), tt.pattern)
			if got != tt.want {
				t.Fatalf("\nwanted:\n%t\ngot:\n%t\nurl: %s pattern: %q", tt.want, got, tt.url, tt.pattern)
			}
		})
	}
}

func TestMatches_Star(t *testing.T) {
	urls := []string{
		"https://example.com/",
		"http://example.com:8080/a/b?c=d#e",
		"https://sub.domain.example.org/path",
		"http://[::1]/",
	}
	patterns := []string{"*", "*/*", "*://*"}

	for _, raw := range urls {
		for _, pattern := range patterns {
			t.Run("should match "+raw+" with "+pattern, func(t *testing.T) {
				if !Matches(mustParse(t, raw), pattern) {
					t.Fatalf("\nwanted:\ntrue\ngot:\nfalse")
				}
			})
		}
	}
}

func TestMatches_NilURL(t *testing.T) {
	t.Run("should not match a nil url", func(t *testing.T) {
		if Matches(nil, "*") {
			t.Fatalf("\nwanted:\nfalse\ngot:\ntrue")
		}
	})
}

func TestWildcardMatch(t *testing.T) {
	t.Run("should reuse the compiled pattern", func(t *testing.T) {
		first := compileWildcard("reuse.*.example")
		second := compileWildcard("reuse.*.example")
		if first != second {
			t.Fatalf("\nwanted:\nsame *regexp.Regexp\ngot:\ndifferent instances")
		}
	})

	t.Run("should anchor both ends", func(t *testing.T) {
		if WildcardMatch("xexample.comx", "example.com") {
			t.Fatalf("\nwanted:\nfalse\ngot:\ntrue")
		}
	})
}
