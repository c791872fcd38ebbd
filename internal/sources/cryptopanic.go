package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"cryptodigest/internal/models"
)

const (
	defaultMaxAttempts = 4
	defaultBaseBackoff = 2 * time.Second
	maxBackoff         = 5 * time.Minute
)

type CryptoPanicClient struct {
	apiKey      string
	baseURL     string
	client      *http.Client
	logger      *logrus.Logger
	maxAttempts int
	baseBackoff time.Duration
}

type cryptoPanicResponse struct {
	Results []struct {
		ID        int    `json:"id"`
		Title     string `json:"title"`
		Body      string `json:"body"`
		Excerpt   string `json:"excerpt"`
		URL       string `json:"url"`
		Published string `json:"published_at"`
		Source    struct {
			Title string `json:"title"`
		} `json:"source"`
	} `json:"results"`
}

func NewCryptoPanicClient(apiKey, baseURL string, logger *logrus.Logger) *CryptoPanicClient {
	return &CryptoPanicClient{
		apiKey:  apiKey,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
	}
}

// FetchArticles pulls the latest public news posts. Rate limiting (429 with
// Retry-After) and server errors are retried with capped exponential backoff;
// other client errors fail immediately.
func (c *CryptoPanicClient) FetchArticles(ctx context.Context, limit int) ([]models.NewsItem, error) {
	reqURL := fmt.Sprintf("%s?auth_token=%s&public=true&filter=news&page_size=%d",
		c.baseURL, url.QueryEscape(c.apiKey), limit)

	backoff := c.baseBackoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		items, retryable, wait, err := c.fetchOnce(ctx, reqURL, limit)
		if err == nil {
			return items, nil
		}
		lastErr = err

		if !retryable || attempt == c.maxAttempts {
			break
		}

		if wait == 0 {
			wait = backoff
		}
		c.logger.WithError(err).WithFields(logrus.Fields{
			"attempt": attempt,
			"wait":    wait.String(),
		}).Warn("CryptoPanic fetch failed, retrying")

		select {
		case <-ctx.Done():
			return nil, models.NewProviderError("cryptopanic", models.StageFetch, 0, ctx.Err())
		case <-time.After(wait):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	return nil, lastErr
}

// fetchOnce performs a single request. It reports whether the failure is
// worth retrying and, for 429 responses, how long Retry-After asked to wait.
func (c *CryptoPanicClient) fetchOnce(ctx context.Context, reqURL string, limit int) ([]models.NewsItem, bool, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, 0, models.NewProviderError("cryptopanic", models.StageFetch, 0, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, 0, models.NewProviderError("cryptopanic", models.StageFetch, 0, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := parseRetryAfter(resp.Header.Get("Retry-After"))
		err := models.NewProviderError("cryptopanic", models.StageFetch, resp.StatusCode,
			fmt.Errorf("rate limited"))
		return nil, true, wait, err
	case resp.StatusCode >= 500:
		err := models.NewProviderError("cryptopanic", models.StageFetch, resp.StatusCode,
			fmt.Errorf("server error"))
		return nil, true, 0, err
	case resp.StatusCode != http.StatusOK:
		err := models.NewProviderError("cryptopanic", models.StageFetch, resp.StatusCode,
			fmt.Errorf("unexpected status"))
		return nil, false, 0, err
	}

	var apiResp cryptoPanicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, false, 0, models.NewProviderError("cryptopanic", models.StageFetch, resp.StatusCode, err)
	}

	items := make([]models.NewsItem, 0, len(apiResp.Results))
	for _, result := range apiResp.Results {
		if len(items) >= limit {
			break
		}

		id := ""
		if result.ID != 0 {
			id = strconv.Itoa(result.ID)
		} else if result.URL != "" {
			id = generateHash(result.URL)
		}
		if id == "" {
			continue
		}

		body := result.Body
		if body == "" {
			body = result.Excerpt
		}

		publishedAt, _ := time.Parse(time.RFC3339, result.Published)

		items = append(items, models.NewsItem{
			ID:          id,
			Title:       result.Title,
			Body:        body,
			URL:         result.URL,
			Source:      result.Source.Title,
			PublishedAt: publishedAt,
		})
	}

	return items, false, 0, nil
}

func (c *CryptoPanicClient) GetName() string {
	return "cryptopanic"
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds <= 0 {
		return 0
	}
	wait := time.Duration(seconds) * time.Second
	if wait > maxBackoff {
		wait = maxBackoff
	}
	return wait
}
