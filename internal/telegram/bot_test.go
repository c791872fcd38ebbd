package telegram

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodigest/internal/models"
)

type fakeSender struct {
	sent     []tgbotapi.Chattable
	failures int
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.failures > 0 {
		f.failures--
		return tgbotapi.Message{}, errors.New("bad gateway")
	}
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func testPublisher(api sender) *Publisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &Publisher{api: api, chatID: 42, logger: logger, tries: defaultTries}
}

func sampleResult(image []byte) models.PipelineResult {
	return models.PipelineResult{
		Item: models.NewsItem{
			ID:    "101",
			Title: "Bitcoin breaks resistance",
			URL:   "https://example.com/btc",
		},
		Digest: models.Digest{
			Summary: "Bitcoin pushed past a key level.",
			Caption: "BTC up",
		},
		Image: image,
	}
}

func TestPublishPhotoWhenImagePresent(t *testing.T) {
	fake := &fakeSender{}
	p := testPublisher(fake)

	err := p.Publish(context.Background(), sampleResult([]byte{0x89, 0x50}))
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	photo, ok := fake.sent[0].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, int64(42), photo.ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, photo.ParseMode)
	assert.Contains(t, photo.Caption, "Bitcoin pushed past a key level.")
	assert.Contains(t, photo.Caption, "https://example.com/btc")

	file, ok := photo.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, []byte{0x89, 0x50}, file.Bytes)
}

func TestPublishTextWhenNoImage(t *testing.T) {
	fake := &fakeSender{}
	p := testPublisher(fake)

	err := p.Publish(context.Background(), sampleResult(nil))
	require.NoError(t, err)
	require.Len(t, fake.sent, 1)

	msg, ok := fake.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.True(t, msg.DisableWebPagePreview)
	assert.Contains(t, msg.Text, "Read more")
}

func TestPublishRetriesThenSucceeds(t *testing.T) {
	fake := &fakeSender{failures: 2}
	p := testPublisher(fake)

	err := p.Publish(context.Background(), sampleResult(nil))
	require.NoError(t, err)
	assert.Len(t, fake.sent, 1)
}

func TestPublishFailsAfterMaxTries(t *testing.T) {
	fake := &fakeSender{failures: defaultTries}
	p := testPublisher(fake)

	err := p.Publish(context.Background(), sampleResult(nil))
	require.Error(t, err)

	var provErr *models.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, models.StagePublish, provErr.Stage)
	assert.Empty(t, fake.sent)
}

func TestFormatCaption(t *testing.T) {
	item := models.NewsItem{Title: "Title", URL: "https://example.com/a"}
	digest := models.Digest{Summary: "Summary text."}

	caption := formatCaption(item, digest)
	assert.True(t, strings.HasPrefix(caption, "Summary text."))
	assert.Contains(t, caption, `<a href="https://example.com/a">Read more</a>`)

	// Empty summary falls back to the title; no URL means no link block.
	assert.Equal(t, "Title", formatCaption(models.NewsItem{Title: "Title"}, models.Digest{}))
}

func TestNormalizeChannel(t *testing.T) {
	assert.Equal(t, "@news", normalizeChannel("news"))
	assert.Equal(t, "@news", normalizeChannel("@news"))
}

func TestClipRunes(t *testing.T) {
	assert.Equal(t, "abc", clipRunes("abc", 5))
	assert.Equal(t, "аб", clipRunes("абвг", 2))
}
