package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"cryptodigest/internal/config"
	"cryptodigest/internal/metrics"
	"cryptodigest/internal/models"
	"cryptodigest/internal/seen"
)

const defaultPostDelay = 1200 * time.Millisecond

// Summarizer turns one news item into a digest.
type Summarizer interface {
	Summarize(ctx context.Context, item models.NewsItem) (models.Digest, error)
}

// ImageGenerator produces an illustration for a digest. May be absent.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt models.ImagePrompt) ([]byte, error)
}

// Publisher posts one finished result to the channel.
type Publisher interface {
	Publish(ctx context.Context, result models.PipelineResult) error
}

// Worker drives the fetch-summarize-illustrate-publish loop on a fixed
// interval. Passes run inline in the loop goroutine, so two passes can
// never overlap.
type Worker struct {
	cfg        *config.Config
	source     models.NewsSource
	store      seen.Store
	summarizer Summarizer
	images     ImageGenerator
	publisher  Publisher
	collector  *metrics.Collector
	logger     *logrus.Logger
	server     *http.Server
	postDelay  time.Duration
}

func New(cfg *config.Config, source models.NewsSource, store seen.Store, summarizer Summarizer,
	images ImageGenerator, publisher Publisher, collector *metrics.Collector, logger *logrus.Logger) *Worker {
	return &Worker{
		cfg:        cfg,
		source:     source,
		store:      store,
		summarizer: summarizer,
		images:     images,
		publisher:  publisher,
		collector:  collector,
		logger:     logger,
		postDelay:  defaultPostDelay,
	}
}

// Run polls until the context is cancelled. The first pass starts
// immediately; later passes follow the configured interval.
func (w *Worker) Run(ctx context.Context) error {
	if w.cfg.EnableMonitor {
		w.startHTTPServer()
	}

	w.logger.WithField("interval", w.cfg.PollInterval.String()).Info("Starting poll loop")
	w.runPass(ctx)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return w.shutdown()
		case <-ticker.C:
			w.runPass(ctx)
		}
	}
}

// runPass executes one fetch-and-publish cycle. A failure on one item is
// logged and the pass moves on; only a failed fetch ends the pass early.
func (w *Worker) runPass(ctx context.Context) {
	start := time.Now()

	items, err := w.source.FetchArticles(ctx, w.cfg.FetchLimit)
	if err != nil {
		w.logger.WithError(err).Error("Fetch failed, skipping this pass")
		w.collector.RecordStageError(models.StageFetch, err)
		w.collector.RecordPass(time.Since(start), false)
		return
	}
	w.collector.RecordFetched(len(items))

	published := 0
	for _, item := range items {
		if ctx.Err() != nil {
			break
		}

		if w.store.Has(ctx, item.ID) {
			w.collector.RecordDuplicate()
			continue
		}

		if err := w.processItem(ctx, item); err != nil {
			stage := stageOf(err)
			w.collector.RecordStageError(stage, err)
			w.logger.WithError(err).WithFields(logrus.Fields{
				"item_id": item.ID,
				"stage":   stage,
			}).Warn("Item failed, continuing with next")
			continue
		}

		// Marked seen only after the publish went through, so a failed
		// publish is retried on a later pass instead of dropped.
		if err := w.store.Add(ctx, item.ID); err != nil {
			w.logger.WithError(err).WithField("item_id", item.ID).Warn("Failed to mark item as seen")
		}
		w.collector.RecordPublished()
		published++

		w.pause(ctx)
	}

	w.collector.RecordPass(time.Since(start), true)
	w.logger.WithFields(logrus.Fields{
		"fetched":   len(items),
		"published": published,
		"took":      time.Since(start).String(),
	}).Info("Pass complete")
}

func (w *Worker) processItem(ctx context.Context, item models.NewsItem) error {
	w.logger.WithFields(logrus.Fields{
		"item_id": item.ID,
		"title":   item.Title,
	}).Info("Processing item")

	digest, err := w.summarizer.Summarize(ctx, item)
	if err != nil {
		return err
	}

	// Image generation is best effort: a broken or absent image model
	// downgrades the post to text-only, it never drops the item.
	var image []byte
	if w.images != nil {
		image, err = w.images.Generate(ctx, digest.ImagePrompt)
		if err != nil {
			w.collector.RecordStageError(models.StageImage, err)
			w.logger.WithError(err).WithField("item_id", item.ID).Warn("Image generation failed, posting text-only")
			image = nil
		}
	}

	return w.publisher.Publish(ctx, models.PipelineResult{Item: item, Digest: digest, Image: image})
}

// pause spaces consecutive posts so the channel does not get a burst.
func (w *Worker) pause(ctx context.Context) {
	if w.postDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(w.postDelay):
	}
}

func stageOf(err error) string {
	var provErr *models.ProviderError
	if errors.As(err, &provErr) {
		return provErr.Stage
	}
	return "unknown"
}

func (w *Worker) startHTTPServer() {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", w.healthHandler)
	mux.HandleFunc("/stats", w.statsHandler)
	mux.Handle("/metrics", w.collector.Handler())

	w.server = &http.Server{
		Addr:    ":" + w.cfg.ServerPort,
		Handler: mux,
	}

	go func() {
		if err := w.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			w.logger.WithError(err).Error("HTTP server error")
		}
	}()
}

func (w *Worker) healthHandler(rw http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK
	if !w.collector.Healthy() {
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(code)
	fmt.Fprintf(rw, `{"status":%q,"timestamp":%q}`, status, time.Now().Format(time.RFC3339))
}

func (w *Worker) statsHandler(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(rw).Encode(w.collector.Stats())
}

func (w *Worker) shutdown() error {
	w.logger.Info("Shutting down worker")

	if w.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := w.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}

	return nil
}
