package main

import (
	"log/slog"

	"shortline/internal/config"
	"shortline/internal/daemon"
	"shortline/internal/notifications"
	"shortline/internal/orchestrator"
	"shortline/internal/preflight"
	"shortline/internal/quota"
	"shortline/internal/recovery"
	"shortline/internal/services/generator"
	"shortline/internal/services/llm"
	"shortline/internal/services/pexels"
	"shortline/internal/services/youtube"
	"shortline/internal/store"
)

// buildDaemon wires the orchestrator and its collaborators into a daemon.
func buildDaemon(cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	ledger := quota.New(st, cfg, logger)
	rec := recovery.NewManager(st, ledger, logger)
	notifier := notifications.NewService(cfg)

	drafter := llm.NewClient(llm.Config{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})
	footage := pexels.NewClient(pexels.Config{
		APIKey:         cfg.Pexels.APIKey,
		BaseURL:        cfg.Pexels.BaseURL,
		TimeoutSeconds: cfg.Pexels.TimeoutSeconds,
	})
	gen := generator.New(drafter, footage, ledger, cfg, logger)
	uploader := youtube.NewUploader(youtube.Config{
		ClientSecretsPath: cfg.YouTube.ClientSecretsPath,
		TokenDir:          cfg.YouTube.TokenDir,
		CategoryID:        cfg.YouTube.CategoryID,
		PrivacyStatus:     cfg.YouTube.PrivacyStatus,
		UploadCostUnits:   cfg.YouTube.UploadCostUnits,
	})

	validate := func() []string {
		return preflight.FailedNames(preflight.RunLocal(cfg))
	}

	orch := orchestrator.NewManager(cfg, st, ledger, rec, gen, uploader, notifier, validate, logger)
	return daemon.New(cfg, st, ledger, orch, logger)
}
