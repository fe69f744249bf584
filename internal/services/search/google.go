package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/config"
	"github.com/ua-proxy-go/internal/models"
)

const defaultAPIBase = "https://www.googleapis.com/customsearch/v1"

// GoogleClient queries the Google Custom Search JSON API.
type GoogleClient struct {
	apiBase    string
	apiKey     string
	engineID   string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewGoogleClient creates a search client from configuration.
func NewGoogleClient(cfg *config.SearchConfig, logger *logrus.Logger) *GoogleClient {
	return &GoogleClient{
		apiBase:  defaultAPIBase,
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// SetAPIBase overrides the API endpoint, used by tests.
func (c *GoogleClient) SetAPIBase(base string) { c.apiBase = base }

type searchItems struct {
	Items []models.SearchResult `json:"items"`
}

// Search returns up to maxResults items in the API's rank order.
func (c *GoogleClient) Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error) {
	if c.apiKey == "" || c.engineID == "" {
		return nil, fmt.Errorf("search api key or engine id not configured")
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, string(body))
	}

	var result searchItems
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"query":   query,
		"results": len(result.Items),
	}).Info("Web search completed")
	return result.Items, nil
}
