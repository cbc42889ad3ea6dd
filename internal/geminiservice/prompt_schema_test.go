package geminiservice

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPrompt_ImageAnalysis(t *testing.T) {
	img := []byte{0x89, 'P', 'N', 'G', 0x00, 0x01}
	p := BuildPrompt(PromptInput{
		Kind:        TaskImageAnalysis,
		ContextText: "lunch at the office",
		Image:       img,
		MimeType:    "image/png",
	})

	require.NotNil(t, p.SystemInstruction)
	require.NotNil(t, p.GenerationConfig)
	assert.Equal(t, "application/json", p.GenerationConfig.ResponseMimeType)
	assert.Same(t, NutritionSchema, p.GenerationConfig.ResponseSchema)

	require.Len(t, p.Contents, 1)
	parts := p.Contents[0].Parts
	require.Len(t, parts, 3)
	assert.Contains(t, parts[0].Text, `"detectedFoods"`)
	assert.Contains(t, parts[1].Text, "lunch at the office")
	require.NotNil(t, parts[2].InlineData)
	assert.Equal(t, "image/png", parts[2].InlineData.MimeType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(img), parts[2].InlineData.Data)
}

func TestBuildPrompt_ChatEmbedsVerbatim(t *testing.T) {
	msg := "  Is {rice} healthy?\n"
	p := BuildPrompt(PromptInput{Kind: TaskChat, UserText: msg, ContextText: "vegetarian"})

	parts := p.Contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "Context: vegetarian", parts[0].Text)
	assert.Equal(t, msg, parts[1].Text)
	assert.Empty(t, p.GenerationConfig.ResponseMimeType)
	assert.Nil(t, p.GenerationConfig.ResponseSchema)
}

func TestBuildPrompt_AcceptsEmptyInput(t *testing.T) {
	for _, kind := range []TaskKind{TaskChat, TaskImageAnalysis} {
		t.Run(kind.String(), func(t *testing.T) {
			p := BuildPrompt(PromptInput{Kind: kind})
			require.NotEmpty(t, p.Contents)
			_, err := json.Marshal(p)
			assert.NoError(t, err)
		})
	}
}

func TestBuildPrompt_Language(t *testing.T) {
	id := BuildPrompt(PromptInput{Kind: TaskChat, Language: "id"})
	assert.Contains(t, id.SystemInstruction.Parts[0].Text, "BAHASA INDONESIA")

	unknown := BuildPrompt(PromptInput{Kind: TaskChat, Language: "xx"})
	assert.Contains(t, unknown.SystemInstruction.Parts[0].Text, "Respond in English.")
}

func TestBuildPrompt_DefaultMimeType(t *testing.T) {
	p := BuildPrompt(PromptInput{Kind: TaskImageAnalysis, Image: []byte{1, 2, 3}})
	parts := p.Contents[0].Parts
	assert.Equal(t, "image/jpeg", parts[len(parts)-1].InlineData.MimeType)
}

func TestGeminiPayload_WireFormat(t *testing.T) {
	p := BuildPrompt(PromptInput{Kind: TaskImageAnalysis, Image: []byte("x"), MimeType: "image/webp"})
	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "systemInstruction")
	assert.Contains(t, generic, "generationConfig")
	assert.Contains(t, string(raw), `"inlineData":{"mimeType":"image/webp"`)
}
