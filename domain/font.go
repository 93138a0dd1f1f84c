package domain

// FontCategory is the logical font family a bionic font replaces.
type FontCategory string

const (
	FontSans  FontCategory = "sans"
	FontSerif FontCategory = "serif"
)

// FontCacheKeyPrefix prefixes every storage key holding a font payload.
const FontCacheKeyPrefix = "lunettes-font-cache:"

// FontCategories lists every category in stylesheet order.
var FontCategories = []FontCategory{FontSans, FontSerif}

// FontSource binds a category to its persistent cache key and canonical remote URL.
type FontSource struct {
	CacheKey string // Storage key holding the base64 payload.
	URL      string // Canonical WOFF2 location, also the fallback source.
}

// DefaultFontSources are the built-in sources for each category.
var DefaultFontSources = map[FontCategory]FontSource{
	FontSans: {
		CacheKey: FontCacheKeyPrefix + "v1:sans",
		URL:      "https://cdn.jsdelivr.net/gh/2005czq/lunettes@main/public/fonts/Inter-Bionic.woff2",
	},
	FontSerif: {
		CacheKey: FontCacheKeyPrefix + "v1:serif",
		URL:      "https://cdn.jsdelivr.net/gh/2005czq/lunettes@main/public/fonts/SourceSerif4-Bionic.woff2",
	},
}
