package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// MaxAttempts is how many generateContent calls a single Generate
	// may make before giving up.
	MaxAttempts = 3

	// baseRetryDelay is multiplied by the attempt number just completed,
	// so the waits grow 800ms, 1600ms.
	baseRetryDelay = 800 * time.Millisecond
)

var (
	// ErrBlankPrompt is returned before any network call when the
	// prompt is empty or whitespace.
	ErrBlankPrompt = errors.New("gemini: prompt is blank")

	// ErrBusy is returned when a Generate call is already in flight.
	ErrBusy = errors.New("gemini: generation already in progress")

	// ErrEmptyCompletion marks a response that parsed fine but carried
	// no usable text.
	ErrEmptyCompletion = errors.New("gemini: empty completion")
)

// BlockedError is a terminal failure: the prompt was rejected by the
// safety filters and retrying the same prompt cannot succeed.
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("gemini: prompt blocked: %s", e.Reason)
}

// FinishError is a terminal failure: the model stopped for a reason we
// do not accept, such as SAFETY or RECITATION.
type FinishError struct {
	Reason string
}

func (e *FinishError) Error() string {
	return fmt.Sprintf("gemini: generation stopped: %s", e.Reason)
}

// allowedFinishReasons are the only finish reasons treated as a usable
// completion. MAX_TOKENS yields a partial result.
var allowedFinishReasons = map[string]bool{
	"STOP":                      true,
	"FINISH_REASON_UNSPECIFIED": true,
	"MAX_TOKENS":                true,
	"": true,
}

// ContentGenerator is the one-shot completion call the Generator retries.
//
// go generate: mockery --name=ContentGenerator
type ContentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (*GenerateResponse, error)
}

// Result is the outcome of a Generate call. Partial is set when the
// model hit its token limit but still produced text.
type Result struct {
	Text        string `json:"result"`
	Partial     bool   `json:"partial,omitempty"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"maxAttempts"`
}

// Generator retries transient Gemini failures and turns the raw
// responses into a Result. Only one Generate may run at a time.
type Generator struct {
	Client      ContentGenerator
	maxAttempts int
	retryDelay  time.Duration
	busy        int32
}

// NewGenerator wraps a client with the default retry policy.
func NewGenerator(client ContentGenerator) *Generator {
	return &Generator{
		Client:      client,
		maxAttempts: MaxAttempts,
		retryDelay:  baseRetryDelay,
	}
}

// NewGeneratorWithPolicy overrides the attempt count and base delay,
// used by tests to avoid real waits.
func NewGeneratorWithPolicy(client ContentGenerator, maxAttempts int, retryDelay time.Duration) *Generator {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Generator{
		Client:      client,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Generate runs the retry loop for a single prompt.
//
// Transient failures (transport errors, empty completions) are retried
// up to the attempt limit with a growing delay. Safety blocks and
// disallowed finish reasons stop immediately. A MAX_TOKENS finish with
// text is returned as a partial Result. The returned Result always
// carries the attempt count, including on error.
func (g *Generator) Generate(ctx context.Context, prompt string) (Result, error) {
	res := Result{MaxAttempts: g.maxAttempts}

	if strings.TrimSpace(prompt) == "" {
		return res, ErrBlankPrompt
	}
	if !atomic.CompareAndSwapInt32(&g.busy, 0, 1) {
		return res, ErrBusy
	}
	defer atomic.StoreInt32(&g.busy, 0)

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		res.Attempts = attempt

		if attempt > 1 {
			delay := time.Duration(attempt-1) * g.retryDelay
			zap.S().Debugw("retrying generation", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return res, ctx.Err()
			}
		}

		resp, err := g.Client.GenerateContent(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			zap.S().Warnw("generation attempt failed", "attempt", attempt, "error", err)
			lastErr = err
			continue
		}

		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return res, &BlockedError{Reason: resp.PromptFeedback.BlockReason}
		}

		finish := resp.FinishReason()
		if !allowedFinishReasons[finish] {
			return res, &FinishError{Reason: finish}
		}

		text := resp.Text()
		if text == "" {
			lastErr = ErrEmptyCompletion
			continue
		}

		res.Text = text
		res.Partial = finish == "MAX_TOKENS"
		return res, nil
	}

	return res, fmt.Errorf("gemini: all %d attempts failed: %w", g.maxAttempts, lastErr)
}
