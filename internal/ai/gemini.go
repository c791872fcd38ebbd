package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"cryptodigest/internal/models"
)

// ImageGenerator produces an illustration for a digest via Gemini.
type ImageGenerator struct {
	client *genai.Client
	model  string
	logger *logrus.Logger
}

func NewImageGenerator(ctx context.Context, apiKey, model string, logger *logrus.Logger) (*ImageGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &ImageGenerator{client: client, model: model, logger: logger}, nil
}

func (g *ImageGenerator) Close() {
	if g.client != nil {
		g.client.Close()
	}
}

// Generate returns raw image bytes for the prompt, or a ProviderError when
// the call fails or the response carries no image data.
func (g *ImageGenerator) Generate(ctx context.Context, prompt models.ImagePrompt) ([]byte, error) {
	promptText := buildPromptText(prompt)
	g.logger.WithField("prompt", clip(promptText, 240)).Debug("Requesting Gemini image")

	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Text(promptText))
	if err != nil {
		return nil, models.NewProviderError("gemini", models.StageImage, 0, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, models.NewProviderError("gemini", models.StageImage, 0,
			fmt.Errorf("no candidates in response"))
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if img, ok := extractImage(part); ok {
			return img, nil
		}
	}

	return nil, models.NewProviderError("gemini", models.StageImage, 0,
		fmt.Errorf("response contained no image data"))
}

// extractImage pulls bytes out of an inline blob part, or decodes a
// data:image URI that some models return as plain text.
func extractImage(part genai.Part) ([]byte, bool) {
	switch p := part.(type) {
	case genai.Blob:
		if len(p.Data) > 0 {
			return p.Data, true
		}
	case genai.Text:
		text := strings.TrimSpace(string(p))
		if !strings.HasPrefix(text, "data:image") {
			return nil, false
		}
		_, encoded, found := strings.Cut(text, ",")
		if !found {
			return nil, false
		}
		data, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil || len(data) == 0 {
			return nil, false
		}
		return data, true
	}
	return nil, false
}

func buildPromptText(prompt models.ImagePrompt) string {
	parts := make([]string, 0, 4)
	for _, kv := range []struct{ key, value string }{
		{"style", prompt.Style},
		{"scene", prompt.Scene},
		{"elements", prompt.Elements},
		{"restrictions", prompt.Restrictions},
	} {
		if kv.value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", kv.key, kv.value))
		}
	}
	return strings.Join(parts, " | ")
}
