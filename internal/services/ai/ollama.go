package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ua-proxy-go/internal/config"
	"github.com/ua-proxy-go/internal/models"
)

// Client talks to the inference backend. Buffered decision calls use short
// per-call timeouts; the streaming forward uses a dedicated client whose
// timeout caps the whole transfer. Failed calls are single attempts — the
// pipeline's fallback policy decides what happens next, not a retry loop.
type Client struct {
	baseURL         string
	thinkingModel   string
	visionModel     string
	decisionTimeout time.Duration
	visionTimeout   time.Duration
	httpClient      *http.Client
	streamClient    *http.Client
	logger          *logrus.Logger
}

// NewClient creates a backend client from configuration.
func NewClient(cfg *config.BackendConfig, logger *logrus.Logger) *Client {
	return &Client{
		baseURL:         strings.TrimSuffix(cfg.BaseURL, "/"),
		thinkingModel:   cfg.ThinkingModel,
		visionModel:     cfg.VisionModel,
		decisionTimeout: cfg.DecisionTimeout,
		visionTimeout:   cfg.VisionTimeout,
		httpClient:      &http.Client{},
		streamClient:    &http.Client{Timeout: cfg.ForwardTimeout},
		logger:          logger,
	}
}

// BaseURL returns the backend base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// ThinkingModel returns the configured text reasoning model name.
func (c *Client) ThinkingModel() string { return c.thinkingModel }

// VisionModel returns the configured image captioning model name.
func (c *Client) VisionModel() string { return c.visionModel }

type generateResponse struct {
	Response string `json:"response"`
}

type chatResponse struct {
	Message models.Message `json:"message"`
}

// Chat posts a non-streamed chat exchange and returns the assistant text.
func (c *Client) Chat(ctx context.Context, messages []models.Message) (string, error) {
	payload := map[string]interface{}{
		"model":    c.thinkingModel,
		"messages": messages,
		"stream":   false,
	}

	body, err := c.post(ctx, "/api/chat", payload, c.decisionTimeout)
	if err != nil {
		return "", err
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	return result.Message.Content, nil
}

// Generate posts a non-streamed prompt completion to the thinking model.
// Options are passed through as the backend's decoding parameters.
func (c *Client) Generate(ctx context.Context, prompt string, options map[string]interface{}) (string, error) {
	payload := map[string]interface{}{
		"model":  c.thinkingModel,
		"prompt": prompt,
		"stream": false,
	}
	if len(options) > 0 {
		payload["options"] = options
	}

	body, err := c.post(ctx, "/api/generate", payload, c.decisionTimeout)
	if err != nil {
		return "", err
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse generate response: %w", err)
	}
	return result.Response, nil
}

// GenerateVision posts a non-streamed captioning request to the vision model.
func (c *Client) GenerateVision(ctx context.Context, prompt string, images []string) (string, error) {
	payload := map[string]interface{}{
		"model":  c.visionModel,
		"prompt": prompt,
		"images": images,
		"stream": false,
	}

	body, err := c.post(ctx, "/api/generate", payload, c.visionTimeout)
	if err != nil {
		return "", err
	}

	var result generateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse vision response: %w", err)
	}
	return result.Response, nil
}

// StreamPost sends a payload to an endpoint and returns the raw response
// for chunk-by-chunk relaying. The caller owns the body.
func (c *Client) StreamPost(ctx context.Context, endpoint string, payload interface{}) (*http.Response, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"model":    c.thinkingModel,
	}).Debug("Streaming backend request")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(body))
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload interface{}, timeout time.Duration) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"bytes":    len(data),
	}).Debug("Sending backend request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("backend returned status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
