package main

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"chemlab/internal/blob"
	"chemlab/internal/chatbot"
	"chemlab/internal/config"
	"chemlab/internal/knowledge"
	"chemlab/internal/llm"
	"chemlab/internal/logging"
	"chemlab/internal/metrics"
	"chemlab/internal/service"
	"chemlab/internal/store"
)

// app is the wired process: config, logger, storage and the service on top.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	svc     *service.Service
	closers []io.Closer
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, metrics: metrics.New()}

	st, err := store.NewByEngine(cfg.Store.Engine, store.Options{Path: cfg.Store.Path, DSN: cfg.Store.DSN})
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	if closer, ok := st.(io.Closer); ok {
		a.closers = append(a.closers, closer)
	}

	bs, err := blob.NewByEngine(cfg.Blob.Engine, blob.Options{Dir: cfg.Blob.Dir, COS: cfg.Blob.COS})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init blob store: %w", err)
	}

	botOpts := []chatbot.Option{chatbot.WithLogger(logger.Named("chatbot"))}
	if cfg.Chat.Assistant.Enabled() {
		client, err := llm.NewClient(llm.Config{
			BaseURL: cfg.Chat.Assistant.BaseURL,
			APIKey:  cfg.Chat.Assistant.APIKey,
			Model:   cfg.Chat.Assistant.Model,
			Timeout: cfg.Chat.Assistant.Timeout,
		})
		if err != nil {
			a.close()
			return nil, fmt.Errorf("init assistant: %w", err)
		}
		botOpts = append(botOpts, chatbot.WithAssistant(client))
		logger.Info("remote assistant enabled", zap.String("model", cfg.Chat.Assistant.Model))
	} else {
		logger.Info("remote assistant disabled, canned replies only")
	}

	a.svc = service.New(service.Deps{
		Store:          st,
		Blob:           bs,
		Chatbot:        chatbot.New(knowledge.MustBaseCatalog(), botOpts...),
		Metrics:        a.metrics,
		Logger:         logger,
		TickInterval:   cfg.Timer.TickInterval,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		ChatEmbedURL:   cfg.Chat.EmbedURL,
	})
	restored, err := a.svc.RestoreTraining(context.Background())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("restore chatbot training: %w", err)
	}
	logger.Info("chatbot training restored", zap.Int("documents", restored))
	logger.Info("storage ready",
		zap.String("store", cfg.Store.Engine),
		zap.String("blob", cfg.Blob.Engine),
	)
	return a, nil
}

func (a *app) close() {
	if a.svc != nil {
		a.svc.Close()
	}
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
