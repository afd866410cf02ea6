package summarize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (fn roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return fn(req)
}

func jsonResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func geminiWith(fn roundTripFunc) *GeminiClient {
	return NewGeminiClient("test-key", "https://gemini.test/", &http.Client{Transport: fn})
}

func TestGeminiGenerateSendsRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotBody geminiRequest

	client := geminiWith(func(req *http.Request) (*http.Response, error) {
		gotPath = req.URL.String()
		gotKey = req.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(req.Body).Decode(&gotBody))
		return jsonResponse(200, `{
			"candidates": [{
				"content": {"parts": [{"text": "Go is a language. "}, {"text": "It compiles fast."}]},
				"finishReason": "STOP"
			}]
		}`), nil
	})

	resp, err := client.Model("gemini-2.0-flash").Generate(context.Background(), Request{
		Prompt: "hello", Temperature: 0.3, MaxOutputTokens: 150, TopP: 0.9,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://gemini.test/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "hello", gotBody.Contents[0].Parts[0].Text)
	assert.Equal(t, 150, gotBody.GenerationConfig.MaxOutputTokens)
	assert.InDelta(t, 0.3, gotBody.GenerationConfig.Temperature, 1e-9)

	assert.False(t, resp.Blocked())
	assert.Equal(t, "Go is a language. It compiles fast.", resp.Text())
}

func TestGeminiGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limited",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"code":429}}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrRateLimited)
			},
		},
		{
			name:   "server error",
			status: http.StatusServiceUnavailable,
			body:   strings.Repeat("x", 2000),
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, 503, se.Code)
				assert.Len(t, se.Body, maxErrorBody)
				assert.NotErrorIs(t, err, ErrRateLimited)
			},
		},
		{
			name:   "multi-byte error body",
			status: http.StatusInternalServerError,
			body:   "x" + strings.Repeat("é", 400),
			check: func(t *testing.T, err error) {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.True(t, utf8.ValidString(se.Body))
				assert.Len(t, se.Body, maxErrorBody-1)
			},
		},
		{
			name:   "oversized answer",
			status: 200,
			body:   `{"candidates":[{"content":{"parts":[{"text":"` + strings.Repeat("a", maxResponseBody) + `"}]}}]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "larger than")
			},
		},
		{
			name:   "garbage body",
			status: 200,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				assert.ErrorContains(t, err, "decode gemini response")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := geminiWith(func(*http.Request) (*http.Response, error) {
				return jsonResponse(tt.status, tt.body), nil
			})
			_, err := client.Model("m").Generate(context.Background(), Request{Prompt: "p"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"abcdef", 3, "abc"},
		{"aé", 2, "a"},
		{"日本", 4, "日"},
		{"", 0, ""},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestGeminiGenerateSafety(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"candidate finish reason", `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`},
		{"prompt feedback", `{"promptFeedback":{"blockReason":"SAFETY"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := geminiWith(func(*http.Request) (*http.Response, error) {
				return jsonResponse(200, tt.body), nil
			})
			resp, err := client.Model("m").Generate(context.Background(), Request{Prompt: "p"})
			require.NoError(t, err)
			assert.True(t, resp.Blocked())
		})
	}
}

func TestGeminiProvidersKeepOrder(t *testing.T) {
	ps := NewGeminiClient("k", "", nil).Providers(DefaultModels)
	require.Len(t, ps, len(DefaultModels))
	for i, p := range ps {
		assert.Equal(t, DefaultModels[i], p.Name())
	}
}
