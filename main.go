package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"cryptodigest/internal/ai"
	"cryptodigest/internal/config"
	"cryptodigest/internal/metrics"
	"cryptodigest/internal/seen"
	"cryptodigest/internal/sources"
	"cryptodigest/internal/telegram"
	"cryptodigest/internal/worker"
)

func main() {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	logger.SetLevel(parseLevel(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store := seen.New(ctx, cfg.RedisURL, cfg.SeenTTL, logger)
	defer store.Close()

	source := sources.NewCryptoPanicClient(cfg.CryptoPanicKey, cfg.CryptoPanicURL, logger)
	summarizer := ai.NewSummarizer(cfg.OpenAIAPIKey, cfg.OpenAIModel, logger)

	var images worker.ImageGenerator
	if cfg.GeminiAPIKey != "" {
		generator, err := ai.NewImageGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			logger.WithError(err).Warn("Gemini client unavailable, posting text-only")
		} else {
			defer generator.Close()
			images = generator
		}
	} else {
		logger.Warn("GEMINI_API_KEY not set, image generation disabled")
	}

	publisher, err := telegram.NewPublisher(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to start telegram publisher")
	}

	collector := metrics.NewCollector()

	logger.Info("Starting crypto digest worker...")
	w := worker.New(cfg, source, store, summarizer, images, publisher, collector, logger)
	if err := w.Run(ctx); err != nil {
		logger.WithError(err).Error("Worker stopped with error")
		return
	}
	logger.Info("Worker stopped gracefully")
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
}

func parseLevel(level string) logrus.Level {
	switch level {
	case "debug":
		return logrus.DebugLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
