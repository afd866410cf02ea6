package summarize

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/MrSnakeDoc/stash/internal/utils"
)

// DefaultGeminiBaseURL is the public Generative Language API.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// maxErrorBody bounds how much of an error answer is kept for logs.
const maxErrorBody = 512

// maxResponseBody bounds a generateContent answer.
const maxResponseBody = 1 << 20

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopP            float64 `json:"topP"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// GeminiClient talks to the generateContent endpoint. One client serves
// every model of the chain.
type GeminiClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// NewGeminiClient builds a client. An empty baseURL selects the public API.
// Per-attempt timeouts come from the request context, so httpClient should
// not set its own.
func NewGeminiClient(apiKey, baseURL string, httpClient *http.Client) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &GeminiClient{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Model returns the Provider for one model name.
func (c *GeminiClient) Model(name string) Provider {
	return &geminiModel{client: c, name: name}
}

// Providers returns one Provider per model, in order.
func (c *GeminiClient) Providers(models []string) []Provider {
	out := make([]Provider, 0, len(models))
	for _, m := range models {
		out = append(out, c.Model(m))
	}
	return out
}

type geminiModel struct {
	client *GeminiClient
	name   string
}

func (m *geminiModel) Name() string { return m.name }

func (m *geminiModel) Generate(ctx context.Context, req Request) (Response, error) {
	payload, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: req.Prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
			TopP:            req.TopP,
		},
	})
	if err != nil {
		return Response{}, fmt.Errorf("marshal gemini request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", m.client.baseURL, url.PathEscape(m.name))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build gemini request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", m.client.apiKey)

	resp, err := m.client.http.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("call gemini %s: %w", m.name, err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return Response{}, fmt.Errorf("read gemini response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, fmt.Errorf("%s: %w", m.name, ErrRateLimited)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text := truncate(strings.TrimSpace(string(body)), maxErrorBody)
		return Response{}, &StatusError{Model: m.name, Code: resp.StatusCode, Body: text}
	}
	if len(body) > maxResponseBody {
		return Response{}, fmt.Errorf("gemini %s: response larger than %d bytes", m.name, maxResponseBody)
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode gemini response: %w", err)
	}

	out := Response{BlockReason: parsed.PromptFeedback.BlockReason}
	for _, c := range parsed.Candidates {
		var parts []string
		for _, p := range c.Content.Parts {
			parts = append(parts, p.Text)
		}
		out.Candidates = append(out.Candidates, Candidate{
			Text:         strings.Join(parts, ""),
			FinishReason: c.FinishReason,
		})
	}
	return out, nil
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
