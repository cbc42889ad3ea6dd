package geminiservice

import (
	"encoding/base64"
	"strings"
)

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	This is the structure that tells Gemini how to format its JSON response
=================================================================================*/

// GeminiSchema defines the structure for "Controlled Generation" (Structured Output).
type GeminiSchema struct {
	// Type defines the data type (e.g., "OBJECT", "ARRAY", "STRING", "NUMBER").
	Type string `json:"type"`

	// Description explains the field's purpose to the AI, helping it generate better content.
	Description string `json:"description,omitempty"`

	// Properties maps field names to their child schemas (used when Type is "OBJECT").
	Properties map[string]*GeminiSchema `json:"properties,omitempty"`

	// Items defines the schema for elements within an array (used when Type is "ARRAY").
	Items *GeminiSchema `json:"items,omitempty"`

	// Required lists the field names that the AI MUST include in the response.
	Required []string `json:"required,omitempty"`
}

// TaskKind selects which instruction set BuildPrompt emits.
type TaskKind int

const (
	TaskChat TaskKind = iota
	TaskImageAnalysis
)

func (k TaskKind) String() string {
	switch k {
	case TaskChat:
		return "chat"
	case TaskImageAnalysis:
		return "image_analysis"
	default:
		return "unknown"
	}
}

// PromptInput is everything BuildPrompt embeds. Every field is optional.
type PromptInput struct {
	Kind        TaskKind
	UserText    string
	ContextText string
	Image       []byte
	MimeType    string
	Language    string
}

/* =================================================================================
						PROMPT ENGINEERING & GUARDRAILS
=================================================================================*/

// AnalysisSystemPrompt defines the persona for photo analysis.
const AnalysisSystemPrompt = `You are an expert nutritionist who estimates the nutritional content of meals from photos.
Identify every distinct food visible in the image, estimate its portion weight in grams,
and estimate calories, protein, carbohydrates and fat for that portion.

RESPONSE FORMAT:
- Return ONLY a single JSON object, no markdown, explanations, or preamble
- All numbers are plain numbers (no units, no strings), never negative
- confidence is a float between 0.0 and 1.0
- If no food is visible, return an empty detectedFoods array`

// AnalysisInstruction states the output schema in natural language with a concrete example.
const AnalysisInstruction = `Analyze the food in this photo and respond with JSON in exactly this shape:
{
  "detectedFoods": [
    {
      "name": "Grilled chicken breast",
      "confidence": 0.85,
      "estimatedWeightGrams": 150,
      "nutrition": {"calories": 248, "proteinGrams": 46.5, "carbsGrams": 0, "fatGrams": 5.4}
    }
  ],
  "totalNutrition": {"calories": 248, "proteinGrams": 46.5, "carbsGrams": 0, "fatGrams": 5.4},
  "suggestions": ["Add a portion of vegetables for fiber."]
}
totalNutrition is the sum over detectedFoods. Give 1 to 3 short, practical suggestions.`

// ChatSystemPrompt defines the persona for the nutrition assistant.
const ChatSystemPrompt = `You are a friendly, evidence-based nutrition assistant.
Answer questions about food, nutrition, healthy eating and meal planning in plain language.
Keep answers concise (under 200 words) and practical.
You do not diagnose medical conditions; suggest consulting a professional when appropriate.
If the user asks about something unrelated to nutrition or health, politely steer back to nutrition.`

var languageDirectives = map[string]string{
	"en": "Respond in English.",
	"id": "GUNAKAN BAHASA INDONESIA YANG SOPAN, PROFESIONAL, DAN MUDAH DIMENGERTI.",
}

// NutritionSchema describes the JSON the model MUST output for photo analysis.
var NutritionSchema = &GeminiSchema{
	Type: "OBJECT",
	Properties: map[string]*GeminiSchema{
		"detectedFoods": {
			Type:        "ARRAY",
			Description: "Every distinct food visible in the photo. Empty if none.",
			Items: &GeminiSchema{
				Type: "OBJECT",
				Properties: map[string]*GeminiSchema{
					"name":                 {Type: "STRING", Description: "Common name of the food"},
					"confidence":           {Type: "NUMBER", Description: "0.0 to 1.0"},
					"estimatedWeightGrams": {Type: "NUMBER", Description: "Estimated portion weight in grams"},
					"nutrition":            totalsSchema("Nutrition for this portion"),
				},
				Required: []string{"name", "confidence", "estimatedWeightGrams", "nutrition"},
			},
		},
		"totalNutrition": totalsSchema("Sum over detectedFoods"),
		"suggestions": {
			Type:        "ARRAY",
			Description: "1 to 3 short, practical suggestions",
			Items:       &GeminiSchema{Type: "STRING"},
		},
	},
	Required: []string{"detectedFoods", "totalNutrition", "suggestions"},
}

func totalsSchema(desc string) *GeminiSchema {
	return &GeminiSchema{
		Type:        "OBJECT",
		Description: desc,
		Properties: map[string]*GeminiSchema{
			"calories":     {Type: "NUMBER"},
			"proteinGrams": {Type: "NUMBER"},
			"carbsGrams":   {Type: "NUMBER"},
			"fatGrams":     {Type: "NUMBER"},
		},
		Required: []string{"calories", "proteinGrams", "carbsGrams", "fatGrams"},
	}
}

// BuildPrompt assembles the request payload for one task. It is a pure function:
// every input, including empty strings, is embedded as given.
func BuildPrompt(in PromptInput) GeminiPayload {
	directive, ok := languageDirectives[strings.ToLower(in.Language)]
	if !ok {
		directive = languageDirectives["en"]
	}

	var system string
	var parts []GeminiPart
	var genCfg *GenerationConfig

	switch in.Kind {
	case TaskImageAnalysis:
		system = AnalysisSystemPrompt + "\n\nLANGUAGE OUTPUT:\n" + directive + " Keep JSON keys in English."
		parts = append(parts, GeminiPart{Text: AnalysisInstruction})
		if in.ContextText != "" {
			parts = append(parts, GeminiPart{Text: "Additional context from the user: " + in.ContextText})
		}
		if in.UserText != "" {
			parts = append(parts, GeminiPart{Text: in.UserText})
		}
		temp := 0.2
		genCfg = &GenerationConfig{
			ResponseMimeType: structuredMimeType,
			ResponseSchema:   NutritionSchema,
			Temperature:      &temp,
		}
	default:
		system = ChatSystemPrompt + "\n\nLANGUAGE OUTPUT:\n" + directive
		if in.ContextText != "" {
			parts = append(parts, GeminiPart{Text: "Context: " + in.ContextText})
		}
		parts = append(parts, GeminiPart{Text: in.UserText})
		temp := 0.7
		genCfg = &GenerationConfig{Temperature: &temp, MaxOutputTokens: 1024}
	}

	if len(in.Image) > 0 {
		mime := in.MimeType
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, GeminiPart{InlineData: &InlineData{
			MimeType: mime,
			Data:     base64.StdEncoding.EncodeToString(in.Image),
		}})
	}

	return GeminiPayload{
		SystemInstruction: &GeminiContent{Parts: []GeminiPart{{Text: system}}},
		Contents:          []GeminiContent{{Role: "user", Parts: parts}},
		GenerationConfig:  genCfg,
	}
}
