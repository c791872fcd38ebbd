package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/sirupsen/logrus"

	"cryptodigest/internal/models"
)

const (
	maxExcerptLen = 1000
	maxCaptionLen = 120

	systemPrompt = "You are a concise crypto news editor. Output ONLY valid JSON with three keys: " +
		`"summary" (2-3 sentence factual summary), "caption" (<=120 chars), and "image_prompt" ` +
		"(an object with keys style, scene, elements, restrictions)."
)

type Summarizer struct {
	client openai.Client
	model  string
	logger *logrus.Logger
}

func NewSummarizer(apiKey, model string, logger *logrus.Logger) *Summarizer {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Summarizer{client: client, model: model, logger: logger}
}

// Summarize asks the chat model for a digest of one item. A transport or API
// failure is a ProviderError; a response that is not clean JSON degrades to a
// digest built from the title so one stubborn model reply never loses an item.
func (s *Summarizer) Summarize(ctx context.Context, item models.NewsItem) (models.Digest, error) {
	excerpt := item.Body
	if len(excerpt) > maxExcerptLen {
		excerpt = excerpt[:maxExcerptLen]
	}

	userPrompt := fmt.Sprintf(
		"Title: %s\nURL: %s\n\nExcerpt: %s\n\nReturn JSON exactly like: "+
			`{"summary":"...","caption":"...","image_prompt":{"style":"","scene":"","elements":"","restrictions":""}}`,
		item.Title, item.URL, excerpt)

	response, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(userPrompt),
		},
		Temperature: openai.Float(0.2),
		MaxTokens:   openai.Int(400),
	})
	if err != nil {
		return models.Digest{}, models.NewProviderError("openai", models.StageSummarize, 0, err)
	}

	if len(response.Choices) == 0 {
		return models.Digest{}, models.NewProviderError("openai", models.StageSummarize, 0,
			fmt.Errorf("no choices in response"))
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	digest, ok := parseDigest(content)
	if !ok {
		s.logger.WithField("item_id", item.ID).Warn("Model response was not parseable JSON, using fallback digest")
		return fallbackDigest(item), nil
	}

	if digest.Caption == "" {
		digest.Caption = item.Title
	}
	digest.Caption = clip(digest.Caption, maxCaptionLen)
	if digest.Summary == "" {
		digest.Summary = item.Title
	}
	if digest.ImagePrompt == (models.ImagePrompt{}) {
		digest.ImagePrompt.Scene = item.Title
	}

	return digest, nil
}

// parseDigest tries the raw content first, then the widest {...} substring
// for replies that wrap JSON in prose.
func parseDigest(content string) (models.Digest, bool) {
	var digest models.Digest
	if err := json.Unmarshal([]byte(content), &digest); err == nil {
		return digest, true
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end <= start {
		return models.Digest{}, false
	}

	if err := json.Unmarshal([]byte(content[start:end+1]), &digest); err != nil {
		return models.Digest{}, false
	}
	return digest, true
}

func fallbackDigest(item models.NewsItem) models.Digest {
	return models.Digest{
		Summary:     fmt.Sprintf("%s - read more: %s", item.Title, item.URL),
		Caption:     clip(item.Title, maxCaptionLen),
		ImagePrompt: models.ImagePrompt{Scene: item.Title},
	}
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
