package sources

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodigest/internal/models"
)

const postsFixture = `{
	"results": [
		{
			"id": 101,
			"title": "Bitcoin breaks resistance",
			"url": "https://example.com/btc",
			"published_at": "2026-08-30T12:00:00Z",
			"source": {"title": "Example Wire"}
		},
		{
			"id": 0,
			"title": "Untracked post",
			"url": "https://example.com/alt",
			"published_at": "2026-08-30T11:00:00Z",
			"source": {"title": "Example Wire"}
		}
	]
}`

func testClient(t *testing.T, handler http.HandlerFunc) *CryptoPanicClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	c := NewCryptoPanicClient("test-key", server.URL, logger)
	c.baseBackoff = time.Millisecond
	return c
}

func TestFetchArticles(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("auth_token"))
		assert.Equal(t, "news", r.URL.Query().Get("filter"))
		w.Write([]byte(postsFixture))
	})

	items, err := c.FetchArticles(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "101", items[0].ID)
	assert.Equal(t, "Bitcoin breaks resistance", items[0].Title)
	assert.Equal(t, "Example Wire", items[0].Source)
	assert.Equal(t, time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC), items[0].PublishedAt)

	// Missing numeric id falls back to a hash of the URL.
	assert.Equal(t, generateHash("https://example.com/alt"), items[1].ID)
}

func TestFetchArticlesRespectsLimit(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(postsFixture))
	})

	items, err := c.FetchArticles(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestFetchArticlesRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(postsFixture))
	})

	items, err := c.FetchArticles(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchArticlesRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(postsFixture))
	})

	items, err := c.FetchArticles(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, items, 2)
}

func TestFetchArticlesFailsFastOnClientError(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := c.FetchArticles(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var provErr *models.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, http.StatusForbidden, provErr.StatusCode)
	assert.Equal(t, models.StageFetch, provErr.Stage)
}

func TestFetchArticlesGivesUpAfterMaxAttempts(t *testing.T) {
	var calls atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.FetchArticles(context.Background(), 10)
	require.Error(t, err)
	assert.Equal(t, int32(defaultMaxAttempts), calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
	assert.Equal(t, maxBackoff, parseRetryAfter("99999"))
}
