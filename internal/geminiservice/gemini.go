package geminiservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// --- Gemini API Configuration ---
const (
	defaultBaseURL        = "https://generativelanguage.googleapis.com/v1beta"
	defaultRequestTimeout = 30 * time.Second
	defaultMaxCandidates  = 5
	structuredMimeType    = "application/json"
	generateContentMethod = "generateContent"

	// Upstream error bodies are only kept for logging, so they are truncated.
	maxErrorBodyBytes = 2 << 10
)

// --- Structs for Gemini API Request/Response ---

type GeminiPayload struct {
	Contents          []GeminiContent   `json:"contents"`
	SystemInstruction *GeminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *GenerationConfig `json:"generationConfig,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

// GeminiPart carries either text or an inline binary blob.
type GeminiPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *InlineData `json:"inlineData,omitempty"`
}

type InlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type GenerationConfig struct {
	ResponseMimeType string        `json:"responseMimeType,omitempty"`
	ResponseSchema   *GeminiSchema `json:"responseSchema,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	MaxOutputTokens  int           `json:"maxOutputTokens,omitempty"`
}

type GeminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// modelListResponse is the body of GET /models.
type modelListResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

// Options configures a Client. Zero values fall back to sane defaults.
type Options struct {
	APIKey         string
	BaseURL        string
	PrimaryModel   string
	FallbackModels []string
	Timeout        time.Duration
	MaxCandidates  int
	// ModelCacheTTL keeps a successful capability listing around. Zero disables the cache.
	ModelCacheTTL time.Duration
	HTTPClient    *http.Client
}

// Client talks to the Gemini REST API. It is safe for concurrent use.
type Client struct {
	apiKey         string
	baseURL        string
	primaryModel   string
	fallbackModels []string
	timeout        time.Duration
	maxCandidates  int
	httpClient     *http.Client

	models *expirable.LRU[string, []string]
	group  singleflight.Group
}

// NewClient builds a Client from opts.
func NewClient(opts Options) *Client {
	c := &Client{
		apiKey:         strings.TrimSpace(opts.APIKey),
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		primaryModel:   strings.TrimSpace(opts.PrimaryModel),
		fallbackModels: append([]string(nil), opts.FallbackModels...),
		timeout:        opts.Timeout,
		maxCandidates:  opts.MaxCandidates,
		httpClient:     opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.timeout <= 0 {
		c.timeout = defaultRequestTimeout
	}
	if c.maxCandidates <= 0 {
		c.maxCandidates = defaultMaxCandidates
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if opts.ModelCacheTTL > 0 {
		c.models = expirable.NewLRU[string, []string](1, nil, opts.ModelCacheTTL)
	}
	return c
}

// Configured reports whether an API key was injected.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerateContent makes exactly one generation attempt against model and returns
// the first non-empty text part.
func (c *Client) GenerateContent(ctx context.Context, model string, payload GeminiPayload) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models/%s:%s?key=%s",
		c.baseURL, url.PathEscape(model), generateContentMethod, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(payloadBytes))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return "", fmt.Errorf("API returned non-2xx status: %s, Body: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var geminiResp GeminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	for _, cand := range geminiResp.Candidates {
		for _, part := range cand.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text, nil
			}
		}
	}
	return "", fmt.Errorf("no text content found in Gemini response")
}

// ListModels performs the capability listing call and returns the ids of models
// that support generateContent, in the order the API reported them.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/models?key=%s", c.baseURL, url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityListUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityListUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status %s", ErrCapabilityListUnavailable, resp.Status)
	}

	var list modelListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("%w: malformed body: %v", ErrCapabilityListUnavailable, err)
	}

	var out []string
	for _, m := range list.Models {
		if !supports(m.SupportedGenerationMethods, generateContentMethod) {
			continue
		}
		id := strings.TrimPrefix(strings.TrimSpace(m.Name), "models/")
		if id != "" {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no model supports %s", ErrCapabilityListUnavailable, generateContentMethod)
	}
	return out, nil
}

func supports(methods []string, method string) bool {
	for _, m := range methods {
		if m == method {
			return true
		}
	}
	return false
}
