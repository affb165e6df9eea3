package negotiation

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"webdriver-caps/internal/model"
)

// ProfileFetcher fetches and caches constraint profiles.
// Interface allows mocking in tests.
type ProfileFetcher interface {
	Fetch(ctx context.Context, profileURL string) (*FetchedProfile, error)
}

// DefaultCacheTTL is used when HTTP cache headers don't specify a duration.
const DefaultCacheTTL = 5 * time.Minute

// DefaultFetchTimeout is the timeout for fetching a profile.
const DefaultFetchTimeout = 5 * time.Second

// MaxCacheEntries limits the number of cached profiles (LRU eviction).
const MaxCacheEntries = 256

// maxProfileSize caps a profile document at 1MB.
const maxProfileSize = 1 << 20

// ProfileFetcherConfig contains configuration for the profile fetcher.
type ProfileFetcherConfig struct {
	CacheTTL     time.Duration     // Default TTL when not specified by cache headers
	FetchTimeout time.Duration     // HTTP timeout for fetching profiles
	MaxEntries   int               // Max cache entries (0 = default)
	Transport    http.RoundTripper // nil = http.DefaultTransport
}

// HTTPProfileFetcher fetches constraint profiles over HTTP with caching.
// Respects Cache-Control max-age, Expires and ETag revalidation.
type HTTPProfileFetcher struct {
	client     *http.Client
	cache      map[string]*cacheEntry
	cacheMu    sync.RWMutex
	config     ProfileFetcherConfig
	accessList []string // LRU tracking: most recent at end
}

type cacheEntry struct {
	profile   *FetchedProfile
	expiresAt time.Time
	etag      string
}

// NewHTTPProfileFetcher creates a new profile fetcher with default config.
func NewHTTPProfileFetcher() *HTTPProfileFetcher {
	return NewHTTPProfileFetcherWithConfig(ProfileFetcherConfig{})
}

// NewHTTPProfileFetcherWithConfig creates a profile fetcher with custom config.
func NewHTTPProfileFetcherWithConfig(config ProfileFetcherConfig) *HTTPProfileFetcher {
	if config.CacheTTL == 0 {
		config.CacheTTL = DefaultCacheTTL
	}
	if config.FetchTimeout == 0 {
		config.FetchTimeout = DefaultFetchTimeout
	}
	if config.MaxEntries == 0 {
		config.MaxEntries = MaxCacheEntries
	}

	return &HTTPProfileFetcher{
		client: &http.Client{
			Timeout:   config.FetchTimeout,
			Transport: config.Transport,
		},
		cache:      make(map[string]*cacheEntry),
		config:     config,
		accessList: make([]string, 0, config.MaxEntries),
	}
}

// Fetch retrieves a constraint profile, using cache when possible.
// If cached entry is fresh, returns it immediately.
// If cached entry is stale, attempts revalidation with ETag.
// On fetch failure with stale cache, returns stale data.
func (f *HTTPProfileFetcher) Fetch(ctx context.Context, profileURL string) (*FetchedProfile, error) {
	f.cacheMu.RLock()
	entry, exists := f.cache[profileURL]
	f.cacheMu.RUnlock()

	if exists && entry.expiresAt.After(time.Now()) {
		f.recordAccess(profileURL)
		return entry.profile, nil
	}

	profile, err := f.fetchFromNetwork(ctx, profileURL, entry)
	if err != nil {
		if exists {
			return entry.profile, nil
		}
		return nil, fmt.Errorf("fetch constraint profile: %w", err)
	}

	return profile, nil
}

func (f *HTTPProfileFetcher) fetchFromNetwork(ctx context.Context, profileURL string, staleEntry *cacheEntry) (*FetchedProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json, application/yaml;q=0.9")

	if staleEntry != nil && staleEntry.etag != "" {
		req.Header.Set("If-None-Match", staleEntry.etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	// 304 Not Modified - refresh TTL and keep the cached profile
	if resp.StatusCode == http.StatusNotModified && staleEntry != nil {
		f.updateCacheEntry(profileURL, staleEntry.profile, resp)
		return staleEntry.profile, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, profileURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	// YAML decoding also accepts JSON documents
	parsed, err := model.ParseProfile(body)
	if err != nil {
		return nil, err
	}

	profile := &FetchedProfile{
		Profile:    parsed,
		ProfileURL: profileURL,
		FetchedAt:  time.Now(),
	}

	f.updateCacheEntry(profileURL, profile, resp)

	return profile, nil
}

func (f *HTTPProfileFetcher) updateCacheEntry(url string, profile *FetchedProfile, resp *http.Response) {
	expiresAt := time.Now().Add(f.parseCacheTTL(resp))
	profile.ExpiresAt = expiresAt

	entry := &cacheEntry{
		profile:   profile,
		expiresAt: expiresAt,
		etag:      resp.Header.Get("ETag"),
	}

	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()

	if _, present := f.cache[url]; !present && len(f.cache) >= f.config.MaxEntries {
		f.evictOldest()
	}

	f.cache[url] = entry
	f.recordAccessLocked(url)
}

// parseCacheTTL extracts TTL from HTTP cache headers.
// Priority: no-store/no-cache, max-age in Cache-Control, Expires header, default.
func (f *HTTPProfileFetcher) parseCacheTTL(resp *http.Response) time.Duration {
	if cc := resp.Header.Get("Cache-Control"); cc != "" {
		for _, directive := range strings.Split(cc, ",") {
			directive = strings.TrimSpace(directive)
			switch {
			case directive == "no-store" || directive == "no-cache":
				return 0
			case strings.HasPrefix(directive, "max-age="):
				if seconds, err := strconv.Atoi(strings.TrimPrefix(directive, "max-age=")); err == nil && seconds >= 0 {
					return time.Duration(seconds) * time.Second
				}
			}
		}
	}

	if expires := resp.Header.Get("Expires"); expires != "" {
		if t, err := http.ParseTime(expires); err == nil {
			if ttl := time.Until(t); ttl > 0 {
				return ttl
			}
		}
	}

	return f.config.CacheTTL
}

func (f *HTTPProfileFetcher) recordAccess(url string) {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()
	f.recordAccessLocked(url)
}

func (f *HTTPProfileFetcher) recordAccessLocked(url string) {
	for i, u := range f.accessList {
		if u == url {
			f.accessList = append(f.accessList[:i], f.accessList[i+1:]...)
			break
		}
	}
	f.accessList = append(f.accessList, url)
}

func (f *HTTPProfileFetcher) evictOldest() {
	if len(f.accessList) == 0 {
		return
	}
	oldest := f.accessList[0]
	f.accessList = f.accessList[1:]
	delete(f.cache, oldest)
}

// clearCache removes all cached entries.
func (f *HTTPProfileFetcher) clearCache() {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()
	f.cache = make(map[string]*cacheEntry)
	f.accessList = make([]string, 0, f.config.MaxEntries)
}

// cacheLen reports how many profiles are cached.
func (f *HTTPProfileFetcher) cacheLen() int {
	f.cacheMu.RLock()
	defer f.cacheMu.RUnlock()
	return len(f.cache)
}
