package summarize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/stash/internal/domain"
	"github.com/MrSnakeDoc/stash/internal/logger"
)

// DefaultAttemptTimeout bounds a single candidate.
const DefaultAttemptTimeout = 12 * time.Second

// RateLimitRetryAfter is the delay suggested when every candidate was
// rate limited.
const RateLimitRetryAfter = time.Minute

// Displayable messages for every terminal state.
const (
	MessageBlocked      = "Content was blocked by AI safety filters."
	MessageRateLimited  = "AI service is currently rate limited. Please try again in 1 minute."
	MessageUnavailable  = "Could not generate summary. All AI models are currently unavailable."
	MessageTimeout      = "Summary generation timed out. Please try again."
	MessageUnconfigured = "AI summarization is not configured. Add STASH_GEMINI_API_KEY to environment variables."
)

// Status is the terminal state of a summarization.
type Status int

const (
	StatusOK Status = iota
	StatusBlocked
	StatusRateLimited
	StatusUnavailable
	StatusTimeout
	StatusUnconfigured
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusBlocked:
		return "blocked"
	case StatusRateLimited:
		return "rate-limited"
	case StatusUnavailable:
		return "upstream-unavailable"
	case StatusTimeout:
		return "timeout"
	case StatusUnconfigured:
		return "unconfigured"
	default:
		return "unknown"
	}
}

// Outcome tags a single attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeBlocked
	OutcomeTransient
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate-limited"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeTransient:
		return "transient"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Attempt records what one candidate did.
type Attempt struct {
	Model   string
	Outcome Outcome
	Err     error
	Elapsed time.Duration
}

// Input is what gets summarized.
type Input struct {
	URL   string
	Title string
}

// Validate checks that both fields are present and the URL parses.
func (in Input) Validate() error {
	if strings.TrimSpace(in.URL) == "" || strings.TrimSpace(in.Title) == "" {
		return &domain.ValidationError{Kind: domain.KindMissingField, Message: "Missing URL or title"}
	}
	return domain.ValidateURL(in.URL)
}

// Origin says where a summary came from.
type Origin string

const (
	OriginCache     Origin = "cache"
	OriginGenerated Origin = "generated"
)

// Result is the outcome of a summarization. Text is always displayable:
// the summary on success, a fixed message otherwise.
type Result struct {
	Status     Status
	Text       string
	Model      string
	Origin     Origin
	Cached     bool
	RetryAfter time.Duration
	Attempts   []Attempt
	Elapsed    time.Duration
}

// OK reports whether Text is a generated summary.
func (r Result) OK() bool { return r.Status == StatusOK }

// Params are the generation settings sent with every attempt.
type Params struct {
	Temperature     float64
	MaxOutputTokens int
	TopP            float64
}

// DefaultParams favor short, factual output.
var DefaultParams = Params{Temperature: 0.3, MaxOutputTokens: 150, TopP: 0.9}

// Chain tries its candidates strictly in order until one yields text or a
// safety block. It keeps no memory between calls: every call starts from
// the first candidate again, even one that was rate limited a moment ago.
type Chain struct {
	candidates []Provider
	timeout    time.Duration
	params     Params
	log        logger.Logger
}

// NewChain creates a chain. A non-positive timeout selects
// DefaultAttemptTimeout.
func NewChain(candidates []Provider, timeout time.Duration, params Params, log logger.Logger) *Chain {
	if timeout <= 0 {
		timeout = DefaultAttemptTimeout
	}
	return &Chain{
		candidates: candidates,
		timeout:    timeout,
		params:     params,
		log:        log,
	}
}

// Models lists the candidate names in order.
func (c *Chain) Models() []string {
	out := make([]string, 0, len(c.candidates))
	for _, p := range c.candidates {
		out = append(out, p.Name())
	}
	return out
}

// Summarize never fails: every path ends in a Result with a displayable
// Text.
func (c *Chain) Summarize(ctx context.Context, in Input) Result {
	start := time.Now()

	if len(c.candidates) == 0 {
		return Result{Status: StatusUnconfigured, Text: MessageUnconfigured}
	}

	req := Request{
		Prompt:          BuildPrompt(in),
		Temperature:     c.params.Temperature,
		MaxOutputTokens: c.params.MaxOutputTokens,
		TopP:            c.params.TopP,
	}

	var res Result
	for _, p := range c.candidates {
		if ctx.Err() != nil {
			break
		}

		att, text := c.attempt(ctx, p, req)
		res.Attempts = append(res.Attempts, att)

		switch att.Outcome {
		case OutcomeSuccess:
			c.log.Info("summary generated",
				logger.String("model", att.Model),
				logger.Int("attempts", len(res.Attempts)),
				logger.Duration("elapsed", time.Since(start)))
			res.Status, res.Text, res.Model, res.Origin = StatusOK, text, att.Model, OriginGenerated
			res.Elapsed = time.Since(start)
			return res

		case OutcomeBlocked:
			c.log.Info("summary blocked by safety filters", logger.String("model", att.Model))
			res.Status, res.Text, res.Model = StatusBlocked, MessageBlocked, att.Model
			res.Elapsed = time.Since(start)
			return res

		default:
			c.log.Warn("summary attempt failed, trying next model",
				logger.String("model", att.Model),
				logger.String("outcome", att.Outcome.String()),
				logger.Duration("elapsed", att.Elapsed),
				logger.Error(att.Err))
		}
	}

	res.Elapsed = time.Since(start)
	res.Status = exhausted(ctx, res.Attempts)
	switch res.Status {
	case StatusRateLimited:
		res.Text, res.RetryAfter = MessageRateLimited, RateLimitRetryAfter
	case StatusTimeout:
		res.Text = MessageTimeout
	default:
		res.Text = MessageUnavailable
	}
	c.log.Warn("all summary models failed",
		logger.String("status", res.Status.String()),
		logger.Int("attempts", len(res.Attempts)))
	return res
}

// exhausted picks the terminal status once no candidate succeeded.
func exhausted(ctx context.Context, attempts []Attempt) Status {
	if ctx.Err() != nil {
		return StatusTimeout
	}
	if len(attempts) == 0 {
		return StatusUnavailable
	}
	allLimited := true
	for _, a := range attempts {
		if a.Outcome != OutcomeRateLimited {
			allLimited = false
			break
		}
	}
	if allLimited {
		return StatusRateLimited
	}
	if attempts[len(attempts)-1].Outcome == OutcomeTimeout {
		return StatusTimeout
	}
	return StatusUnavailable
}

type reply struct {
	resp Response
	err  error
}

// attempt runs one candidate under its own deadline. The provider call
// writes into a buffered channel, so a reply arriving after the deadline
// is dropped without blocking the goroutine.
func (c *Chain) attempt(ctx context.Context, p Provider, req Request) (Attempt, string) {
	att := Attempt{Model: p.Name()}
	start := time.Now()

	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ch := make(chan reply, 1)
	go func() {
		resp, err := p.Generate(actx, req)
		ch <- reply{resp: resp, err: err}
	}()

	var r reply
	select {
	case r = <-ch:
	case <-actx.Done():
		att.Outcome = OutcomeTimeout
		att.Err = fmt.Errorf("%s: %w", att.Model, actx.Err())
		att.Elapsed = time.Since(start)
		return att, ""
	}
	att.Elapsed = time.Since(start)

	switch {
	case r.err == nil:
	case errors.Is(r.err, ErrRateLimited):
		att.Outcome, att.Err = OutcomeRateLimited, r.err
		return att, ""
	case errors.Is(r.err, context.DeadlineExceeded):
		att.Outcome, att.Err = OutcomeTimeout, r.err
		return att, ""
	default:
		att.Outcome, att.Err = OutcomeTransient, r.err
		return att, ""
	}

	if r.resp.Blocked() {
		att.Outcome = OutcomeBlocked
		return att, ""
	}
	text := r.resp.Text()
	if text == "" {
		att.Outcome, att.Err = OutcomeTransient, fmt.Errorf("%s: empty response", att.Model)
		return att, ""
	}
	att.Outcome = OutcomeSuccess
	return att, text
}

// BuildPrompt renders the instruction sent to every candidate.
func BuildPrompt(in Input) string {
	return fmt.Sprintf(`Summarize this webpage in exactly 2 concise sentences based on its title and URL.
Be specific about what content or value it provides.
Do not use phrases like "This page" or "This website".
Use active, informative language.

Title: "%s"
URL: "%s"

Summary:`, strings.TrimSpace(in.Title), strings.TrimSpace(in.URL))
}
