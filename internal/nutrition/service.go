package nutrition

import (
	"context"
	"errors"
	"strings"

	"NutriLens/internal/geminiservice"

	"github.com/rs/zerolog"
)

// Generator is the slice of the Gemini client the service depends on.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, payload geminiservice.GeminiPayload) (geminiservice.Result, error)
}

// Analysis is the outcome of an image analysis. Estimate is always well-formed.
type Analysis struct {
	Estimate NutritionEstimate `json:"estimate"`
	Model    string            `json:"model,omitempty"`
	Fallback bool              `json:"fallback"`
	Reason   error             `json:"-"`
}

// ChatReply is the outcome of a chat turn. Response is never empty.
type ChatReply struct {
	Response string `json:"response"`
	Model    string `json:"model,omitempty"`
	Fallback bool   `json:"fallback"`
}

// Service runs prompts through the generator and never surfaces upstream
// failures to callers; they receive a synthetic result instead.
type Service struct {
	gen  Generator
	lang string
}

func NewService(gen Generator, lang string) *Service {
	if lang == "" {
		lang = "en"
	}
	return &Service{gen: gen, lang: lang}
}

// Language is the response language the service was built with.
func (s *Service) Language() string { return s.lang }

// AnalyzeImage estimates the nutrition of the meal in image.
func (s *Service) AnalyzeImage(ctx context.Context, image []byte, mimeType, contextText string) Analysis {
	logger := zerolog.Ctx(ctx)

	if s.gen == nil || !s.gen.Configured() {
		logger.Warn().Msg("AI not configured, returning synthetic estimate")
		return Analysis{
			Estimate: SyntheticNotConfigured(s.lang),
			Fallback: true,
			Reason:   geminiservice.ErrNotConfigured,
		}
	}

	payload := geminiservice.BuildPrompt(geminiservice.PromptInput{
		Kind:        geminiservice.TaskImageAnalysis,
		ContextText: contextText,
		Image:       image,
		MimeType:    mimeType,
		Language:    s.lang,
	})

	res, err := s.gen.Generate(ctx, payload)
	if err != nil {
		logger.Error().Err(err).Msg("Image analysis failed on every model, returning synthetic estimate")
		return Analysis{Estimate: Synthetic(s.lang), Fallback: true, Reason: err}
	}

	est, err := Coerce(res.Text, s.lang)
	if err != nil {
		logger.Warn().Err(err).Str("model", res.Model).Msg("Could not parse analysis, returning synthetic estimate")
		return Analysis{Estimate: Synthetic(s.lang), Model: res.Model, Fallback: true, Reason: err}
	}
	if TotalsMismatch(est) {
		logger.Debug().
			Float64("stated_calories", est.TotalNutrition.Calories).
			Float64("summed_calories", est.SumDetected().Calories).
			Msg("Stated totals differ from per-food sum")
	}

	logger.Info().Str("model", res.Model).Int("foods", len(est.DetectedFoods)).Msg("Image analysis complete")
	return Analysis{Estimate: est, Model: res.Model}
}

// Chat answers a free-form nutrition question.
func (s *Service) Chat(ctx context.Context, message, contextText string) ChatReply {
	logger := zerolog.Ctx(ctx)

	if s.gen == nil || !s.gen.Configured() {
		logger.Warn().Msg("AI not configured, returning canned chat reply")
		return ChatReply{Response: chatFallback(s.lang, message, true), Fallback: true}
	}

	payload := geminiservice.BuildPrompt(geminiservice.PromptInput{
		Kind:        geminiservice.TaskChat,
		UserText:    message,
		ContextText: contextText,
		Language:    s.lang,
	})

	res, err := s.gen.Generate(ctx, payload)
	if err == nil && strings.TrimSpace(res.Text) == "" {
		err = errors.New("empty chat response")
	}
	if err != nil {
		logger.Error().Err(err).Msg("Chat failed on every model, returning canned reply")
		return ChatReply{Response: chatFallback(s.lang, message, false), Model: res.Model, Fallback: true}
	}

	return ChatReply{Response: strings.TrimSpace(res.Text), Model: res.Model}
}
