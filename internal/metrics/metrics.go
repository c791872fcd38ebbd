package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cryptodigest/internal/models"
)

// Collector tracks what the worker has done, both as Prometheus series and
// as a JSON-friendly snapshot for the /stats endpoint.
type Collector struct {
	registry *prometheus.Registry

	itemsFetched      prometheus.Counter
	itemsPublished    prometheus.Counter
	duplicatesSkipped prometheus.Counter
	stageErrors       *prometheus.CounterVec
	passDuration      prometheus.Histogram

	mu              sync.RWMutex
	totalFetched    int64
	totalPublished  int64
	totalDuplicates int64
	totalErrors     int64
	lastPassTime    time.Time
	lastPassLength  time.Duration
	lastError       string
	lastErrorTime   time.Time
	healthy         bool
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		itemsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodigest_items_fetched_total",
			Help: "Total number of news items fetched from the source",
		}),
		itemsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodigest_items_published_total",
			Help: "Total number of items published to the channel",
		}),
		duplicatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cryptodigest_duplicates_skipped_total",
			Help: "Total number of items skipped because they were already seen",
		}),
		stageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cryptodigest_stage_errors_total",
			Help: "Total number of recovered pipeline errors by stage",
		}, []string{"stage"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cryptodigest_pass_duration_seconds",
			Help:    "Duration of one fetch-and-publish pass",
			Buckets: prometheus.DefBuckets,
		}),
		healthy: true,
	}

	c.registry.MustRegister(c.itemsFetched, c.itemsPublished, c.duplicatesSkipped, c.stageErrors, c.passDuration)

	// Pre-create the stage series so dashboards see zeros instead of gaps.
	for _, stage := range []string{models.StageFetch, models.StageSummarize, models.StageImage, models.StagePublish} {
		c.stageErrors.WithLabelValues(stage)
	}

	return c
}

func (c *Collector) RecordFetched(n int) {
	c.itemsFetched.Add(float64(n))

	c.mu.Lock()
	c.totalFetched += int64(n)
	c.mu.Unlock()
}

func (c *Collector) RecordPublished() {
	c.itemsPublished.Inc()

	c.mu.Lock()
	c.totalPublished++
	c.mu.Unlock()
}

func (c *Collector) RecordDuplicate() {
	c.duplicatesSkipped.Inc()

	c.mu.Lock()
	c.totalDuplicates++
	c.mu.Unlock()
}

func (c *Collector) RecordStageError(stage string, err error) {
	c.stageErrors.WithLabelValues(stage).Inc()

	c.mu.Lock()
	c.totalErrors++
	c.lastError = err.Error()
	c.lastErrorTime = time.Now()
	c.mu.Unlock()
}

// RecordPass marks the end of one pass. A pass that completed, even with
// per-item errors, means the loop is healthy; a pass that could not fetch
// at all flips health off until the next good pass.
func (c *Collector) RecordPass(length time.Duration, ok bool) {
	c.passDuration.Observe(length.Seconds())

	c.mu.Lock()
	c.lastPassTime = time.Now()
	c.lastPassLength = length
	c.healthy = ok
	c.mu.Unlock()
}

func (c *Collector) Healthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.healthy
}

func (c *Collector) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return map[string]interface{}{
		"items_fetched":      c.totalFetched,
		"items_published":    c.totalPublished,
		"duplicates_skipped": c.totalDuplicates,
		"recovered_errors":   c.totalErrors,
		"last_pass_time":     c.lastPassTime.Format(time.RFC3339),
		"last_pass_ms":       c.lastPassLength.Milliseconds(),
		"last_error":         c.lastError,
		"last_error_time":    c.lastErrorTime.Format(time.RFC3339),
		"is_healthy":         c.healthy,
	}
}

// Handler serves the Prometheus exposition endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
