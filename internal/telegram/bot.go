package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"cryptodigest/internal/models"
)

const (
	maxCaptionLen    = 1024
	maxMessageLen    = 4096
	defaultTries     = 3
	defaultRetryWait = 2 * time.Second
)

// sender is the slice of tgbotapi.BotAPI the publisher needs.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Publisher posts digests to one Telegram chat or channel.
type Publisher struct {
	api       sender
	chatID    int64
	channel   string
	logger    *logrus.Logger
	tries     int
	retryWait time.Duration
}

// NewPublisher creates the bot client and resolves the chat identifier,
// which is either a numeric chat id or an @channel username.
func NewPublisher(token, chatID string, logger *logrus.Logger) (*Publisher, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	p := &Publisher{
		api:       api,
		logger:    logger,
		tries:     defaultTries,
		retryWait: defaultRetryWait,
	}

	if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
		p.chatID = id
	} else {
		p.channel = normalizeChannel(chatID)
	}

	return p, nil
}

// Publish sends the digest as a photo with caption when image bytes are
// present, or as a plain text message otherwise. Transient send failures are
// retried a few times with growing delays.
func (p *Publisher) Publish(ctx context.Context, result models.PipelineResult) error {
	msg := p.buildMessage(result)

	var lastErr error
	for attempt := 1; attempt <= p.tries; attempt++ {
		_, err := p.api.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt < p.tries {
			wait := p.retryWait * time.Duration(1<<(attempt-1))
			p.logger.WithError(err).WithFields(logrus.Fields{
				"item_id": result.Item.ID,
				"attempt": attempt,
				"wait":    wait.String(),
			}).Warn("Telegram send failed, retrying")

			select {
			case <-ctx.Done():
				return models.NewProviderError("telegram", models.StagePublish, 0, ctx.Err())
			case <-time.After(wait):
			}
		}
	}

	return models.NewProviderError("telegram", models.StagePublish, 0,
		fmt.Errorf("send failed after %d tries: %w", p.tries, lastErr))
}

func (p *Publisher) buildMessage(result models.PipelineResult) tgbotapi.Chattable {
	base := tgbotapi.BaseChat{ChatID: p.chatID, ChannelUsername: p.channel}
	caption := formatCaption(result.Item, result.Digest)

	if len(result.Image) > 0 {
		photo := tgbotapi.PhotoConfig{
			BaseFile: tgbotapi.BaseFile{
				BaseChat: base,
				File:     tgbotapi.FileBytes{Name: "news.png", Bytes: result.Image},
			},
			Caption:   clipRunes(caption, maxCaptionLen),
			ParseMode: tgbotapi.ModeHTML,
		}
		return photo
	}

	msg := tgbotapi.MessageConfig{
		BaseChat:              base,
		Text:                  clipRunes(caption, maxMessageLen),
		ParseMode:             tgbotapi.ModeHTML,
		DisableWebPagePreview: true,
	}
	return msg
}

// formatCaption renders the summary with a "Read more" link underneath.
func formatCaption(item models.NewsItem, digest models.Digest) string {
	summary := strings.TrimSpace(digest.Summary)
	if summary == "" {
		summary = item.Title
	}
	if item.URL == "" {
		return summary
	}
	return fmt.Sprintf("%s\n\n🔗 <a href=\"%s\">Read more</a>", summary, item.URL)
}

func normalizeChannel(name string) string {
	if strings.HasPrefix(name, "@") {
		return name
	}
	return "@" + name
}

func clipRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
