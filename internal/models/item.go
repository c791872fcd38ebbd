package models

import (
	"context"
	"time"
)

// NewsItem is a single post fetched from the news source. Immutable once fetched.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// ImagePrompt is the structured prompt the summarizer produces for the image model.
type ImagePrompt struct {
	Style        string `json:"style"`
	Scene        string `json:"scene"`
	Elements     string `json:"elements"`
	Restrictions string `json:"restrictions"`
}

// Digest is the summarizer output for one item.
type Digest struct {
	Summary     string      `json:"summary"`
	Caption     string      `json:"caption"`
	ImagePrompt ImagePrompt `json:"image_prompt"`
}

// PipelineResult holds everything produced for one item during a pass.
// It lives only for the duration of that pass and is never persisted.
type PipelineResult struct {
	Item   NewsItem
	Digest Digest
	Image  []byte
}

// NewsSource fetches the latest items from an upstream provider.
type NewsSource interface {
	FetchArticles(ctx context.Context, limit int) ([]NewsItem, error)
	GetName() string
}
