// Package compass decides whether a page is in scope for styling.
//
// Patterns use "*" as a wildcard spanning any run of characters (including
// none) and are matched case-insensitively against one of three views of the
// page URL, chosen by the shape of the pattern:
//
//   - patterns containing "://" match the full href,
//   - patterns containing "/" match host + pathname + search + hash,
//   - anything else matches the host (with port) or the hostname.
//
// IsSiteFiltered applies a Settings pattern list in blacklist or whitelist
// mode and reports whether styling must be suppressed.
package compass
