// Package fonts resolves a font category to a source usable in a CSS url().
//
// A source is either a data: URI embedding the WOFF2 payload or, when the
// payload could not be fetched or persisted, the canonical remote URL. Sources
// are resolved through an ordered list of tiers, each one short-circuiting on
// success:
//
//	memory   process lifetime map, no I/O
//	store    persistent key/value storage holding the base64 payload
//	network  one shared fetch per category, falling back to the remote URL
//
// Concurrent callers for the same category share a single fetch and receive
// the same value. Resolve never returns an error: every failure degrades to
// the remote URL and is logged as a warning.
package fonts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/2005czq/lunettes/domain"
	"golang.org/x/sync/singleflight"
)

const userAgent = "lunettes/1 (+https://github.com/2005czq/lunettes)"

var (
	// ErrUnknownCategory is returned when a category has no configured source.
	ErrUnknownCategory = errors.New("unknown font category")

	// ErrFetchStatus is returned when the font server answers with a non-success status.
	ErrFetchStatus = errors.New("unexpected font response status")

	// ErrStoreWrite is returned when the fetched payload could not be persisted.
	ErrStoreWrite = errors.New("persisting font payload failed")
)

// tier is one step of the resolution strategy. ok reports whether the tier
// produced a source.
type tier struct {
	name    string
	resolve func(ctx context.Context, category domain.FontCategory, source domain.FontSource) (src string, ok bool)
}

// Cache resolves font categories to CSS sources. The zero value is not usable,
// create one with New.
type Cache struct {
	store   domain.Storage
	client  *http.Client
	sources map[domain.FontCategory]domain.FontSource
	logger  *slog.Logger

	mu       sync.RWMutex
	resolved map[domain.FontCategory]string
	inflight *singleflight.Group

	tiers []tier
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient sets the client used for font downloads.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Cache) {
		if client != nil {
			c.client = client
		}
	}
}

// WithSources overrides the remote URL (and optionally the cache key) of the
// given categories. Zero fields keep the defaults.
func WithSources(overrides map[domain.FontCategory]domain.FontSource) Option {
	return func(c *Cache) {
		for category, override := range overrides {
			source := c.sources[category]
			if override.URL != "" {
				source.URL = override.URL
			}
			if override.CacheKey != "" {
				source.CacheKey = override.CacheKey
			}
			c.sources[category] = source
		}
	}
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a Cache backed by store.
func New(store domain.Storage, options ...Option) *Cache {
	cache := &Cache{
		store:    store,
		client:   &http.Client{},
		sources:  make(map[domain.FontCategory]domain.FontSource, len(domain.DefaultFontSources)),
		logger:   slog.New(slog.DiscardHandler),
		resolved: make(map[domain.FontCategory]string),
		inflight: &singleflight.Group{},
	}
	for category, source := range domain.DefaultFontSources {
		cache.sources[category] = source
	}
	for _, option := range options {
		option(cache)
	}

	cache.tiers = []tier{
		{name: "memory", resolve: cache.fromMemory},
		{name: "store", resolve: cache.fromStore},
		{name: "network", resolve: cache.fromNetwork},
	}
	return cache
}

// SourceFor returns the configured source for category.
func (c *Cache) SourceFor(category domain.FontCategory) (domain.FontSource, error) {
	source, ok := c.sources[category]
	if !ok {
		return domain.FontSource{}, fmt.Errorf("%w : %q", ErrUnknownCategory, category)
	}
	return source, nil
}

// Resolve returns the CSS source for category. It only blocks when the source
// is neither in memory nor in the store. An unknown category resolves to "".
func (c *Cache) Resolve(ctx context.Context, category domain.FontCategory) string {
	source, err := c.SourceFor(category)
	if err != nil {
		c.logger.Warn("resolving font source", "error", err)
		return ""
	}

	for _, tier := range c.tiers {
		if src, ok := tier.resolve(ctx, category, source); ok {
			c.logger.Debug("font source resolved", "category", category, "tier", tier.name, "embedded", IsDataURL(src))
			return src
		}
	}
	return source.URL
}

// Cached returns the in-memory source for category, if any.
func (c *Cache) Cached(category domain.FontCategory) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	src, ok := c.resolved[category]
	return src, ok
}

// Warm resolves every known category and returns the results.
func (c *Cache) Warm(ctx context.Context) map[domain.FontCategory]string {
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = make(map[domain.FontCategory]string, len(c.sources))
	)
	for category := range c.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := c.Resolve(ctx, category)
			mu.Lock()
			results[category] = src
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

// Reset forgets every in-memory source. The persistent store is untouched.
func (c *Cache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved = make(map[domain.FontCategory]string)
}

func (c *Cache) remember(category domain.FontCategory, src string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolved[category] = src
}

func (c *Cache) fromMemory(_ context.Context, category domain.FontCategory, _ domain.FontSource) (string, bool) {
	return c.Cached(category)
}

func (c *Cache) fromStore(_ context.Context, category domain.FontCategory, source domain.FontSource) (string, bool) {
	payload, ok := c.store.Get(source.CacheKey)
	if !ok || payload == "" {
		return "", false
	}
	src := DataURL(payload)
	c.remember(category, src)
	return src, true
}

// fromNetwork joins the in-flight resolution for category or starts one. The
// shared load is detached from the caller's cancellation: a caller that gives
// up receives the remote URL while the load keeps going for everyone else.
func (c *Cache) fromNetwork(ctx context.Context, category domain.FontCategory, source domain.FontSource) (string, bool) {
	loadCtx := context.WithoutCancel(ctx)
	result := c.inflight.DoChan(string(category), func() (any, error) {
		// A load that finished between our memory check and joining the
		// group has already populated memory.
		if src, ok := c.Cached(category); ok {
			return src, nil
		}
		src := c.load(loadCtx, category, source)
		c.remember(category, src)
		return src, nil
	})

	select {
	case res := <-result:
		return res.Val.(string), true
	case <-ctx.Done():
		c.logger.Warn("font resolution abandoned, using remote url", "category", category, "error", ctx.Err())
		return source.URL, true
	}
}

// load fetches and persists the payload, degrading to the remote URL on any failure.
func (c *Cache) load(ctx context.Context, category domain.FontCategory, source domain.FontSource) string {
	payload, err := c.fetch(ctx, source.URL)
	if err != nil {
		c.logger.Warn("failed to cache font, falling back to remote url", "category", category, "url", source.URL, "error", err)
		return source.URL
	}

	encoded := EncodePayload(payload)
	if !c.store.Set(source.CacheKey, encoded) {
		c.logger.Warn("failed to cache font, falling back to remote url", "category", category, "url", source.URL, "error", ErrStoreWrite)
		return source.URL
	}
	return DataURL(encoded)
}

func (c *Cache) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating font request : %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "font/woff2,*/*;q=0.8")

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching font %s : %w", url, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("%w (%d)", ErrFetchStatus, res.StatusCode)
	}

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("reading font body : %w", err)
	}

	if !IsWOFF2(payload) {
		c.logger.Warn("font payload is not woff2", "url", url, "detected", DetectMIME(payload))
	}
	return payload, nil
}
