package geminiservice

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
)

// Attempt is the outcome of one candidate call.
type Attempt struct {
	Model string
	Err   error
}

// Result is a successful generation. Model and Attempts are for observability only.
type Result struct {
	Text     string
	Model    string
	Attempts []Attempt
}

// Generate resolves the candidate list and runs the fallback loop over it.
func (c *Client) Generate(ctx context.Context, payload GeminiPayload) (Result, error) {
	if !c.Configured() {
		return Result{}, ErrNotConfigured
	}
	return c.GenerateWithFallback(ctx, c.Candidates(ctx), payload)
}

// GenerateWithFallback tries each candidate once, strictly in order, and stops at the
// first one that yields non-empty text. Cancelling ctx aborts the in-flight call and
// skips the remaining candidates.
func (c *Client) GenerateWithFallback(ctx context.Context, candidates []string, payload GeminiPayload) (Result, error) {
	logger := zerolog.Ctx(ctx)
	res := Result{Attempts: make([]Attempt, 0, len(candidates))}
	var lastErr error

	for i, model := range candidates {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		logger.Debug().Str("model", model).Msgf("Attempt %d: Calling Gemini API...", i+1)

		text, err := c.GenerateContent(ctx, model, payload)
		if err == nil && strings.TrimSpace(text) == "" {
			err = errors.New("empty text in response")
		}
		if err != nil {
			lastErr = &CandidateError{Model: model, Err: err}
			res.Attempts = append(res.Attempts, Attempt{Model: model, Err: err})
			logger.Warn().Err(err).Str("model", model).Msgf("Attempt %d failed", i+1)
			continue
		}

		res.Attempts = append(res.Attempts, Attempt{Model: model})
		res.Text = text
		res.Model = model
		logger.Info().Str("model", model).Int("attempts", i+1).Msg("Gemini candidate succeeded")
		return res, nil
	}

	exhausted := &ExhaustedError{Attempts: len(res.Attempts), LastErr: lastErr}
	logger.Error().Err(exhausted).Msg("Gemini candidates exhausted")
	return res, exhausted
}
