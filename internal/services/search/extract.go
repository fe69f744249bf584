package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/config"
)

// Extractor fetches a page and reduces it to its main textual content.
// Extractions are cached by URL so repeated questions about the same
// sources do not refetch them.
type Extractor struct {
	httpClient *http.Client
	cache      *gocache.Cache
	maxSize    int
	logger     *logrus.Logger
}

// NewExtractor creates an extractor with an optional TTL cache.
func NewExtractor(cfg *config.CacheConfig, logger *logrus.Logger) *Extractor {
	e := &Extractor{
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
		logger: logger,
	}
	if cfg.Enabled {
		e.cache = gocache.New(cfg.TTL, cfg.TTL*2)
		e.maxSize = cfg.MaxSize
	}
	return e
}

// MainText returns the extracted main content of the page at pageURL.
func (e *Extractor) MainText(ctx context.Context, pageURL string) (string, error) {
	if e.cache != nil {
		if val, found := e.cache.Get(pageURL); found {
			e.logger.WithField("url", pageURL).Debug("Extraction cache hit")
			return val.(string), nil
		}
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ua-proxy/1.0)")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}

	text := article.TextContent
	if e.cache != nil {
		if e.cache.ItemCount() >= e.maxSize {
			e.logger.Warn("Extraction cache size limit reached, dropping expired entries")
			e.cache.DeleteExpired()
		}
		e.cache.SetDefault(pageURL, text)
	}
	return text, nil
}
