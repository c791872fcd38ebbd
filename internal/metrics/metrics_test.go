package metrics

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptodigest/internal/models"
)

func TestCollectorStats(t *testing.T) {
	c := NewCollector()

	c.RecordFetched(5)
	c.RecordDuplicate()
	c.RecordDuplicate()
	c.RecordPublished()
	c.RecordStageError(models.StagePublish, errors.New("send failed"))
	c.RecordPass(120*time.Millisecond, true)

	stats := c.Stats()
	assert.Equal(t, int64(5), stats["items_fetched"])
	assert.Equal(t, int64(1), stats["items_published"])
	assert.Equal(t, int64(2), stats["duplicates_skipped"])
	assert.Equal(t, int64(1), stats["recovered_errors"])
	assert.Equal(t, "send failed", stats["last_error"])
	assert.Equal(t, true, stats["is_healthy"])
	assert.True(t, c.Healthy())
}

func TestCollectorUnhealthyPass(t *testing.T) {
	c := NewCollector()

	c.RecordPass(time.Second, false)
	assert.False(t, c.Healthy())

	c.RecordPass(time.Second, true)
	assert.True(t, c.Healthy())
}

func TestCollectorHandlerExposesSeries(t *testing.T) {
	c := NewCollector()
	c.RecordFetched(3)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	c.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "cryptodigest_items_fetched_total 3")
	assert.Contains(t, body, "cryptodigest_stage_errors_total")
}
