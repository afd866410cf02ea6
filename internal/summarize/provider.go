// Package summarize generates short AI summaries of bookmarks through an
// ordered chain of model candidates and caches the results per bookmark.
package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRateLimited is returned by a Provider when the upstream refused the
// request for quota reasons.
var ErrRateLimited = errors.New("summarize: upstream rate limited")

// FinishReasonSafety marks a candidate withheld by content filters.
const FinishReasonSafety = "SAFETY"

// Request is one generation call.
type Request struct {
	Prompt          string
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
}

// Candidate is one generated alternative.
type Candidate struct {
	Text         string
	FinishReason string
}

// Response is what a provider returned.
type Response struct {
	Candidates []Candidate
	// BlockReason is set when the prompt itself was refused.
	BlockReason string
}

// Blocked reports whether the response is a content-safety refusal.
func (r Response) Blocked() bool {
	if r.BlockReason != "" {
		return true
	}
	return len(r.Candidates) > 0 && r.Candidates[0].FinishReason == FinishReasonSafety
}

// Text returns the first candidate's trimmed text.
func (r Response) Text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Candidates[0].Text)
}

// Provider is one model endpoint in the chain.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// StatusError is a non-success HTTP answer other than a rate limit.
type StatusError struct {
	Model string
	Code  int
	Body  string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Model, e.Code)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Model, e.Code, e.Body)
}
