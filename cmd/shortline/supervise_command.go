package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"shortline/internal/logging"
	"shortline/internal/notifications"
	"shortline/internal/supervisor"
)

func newSuperviseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "supervise",
		Short: "Run the daemon under a restarting supervisor",
		Long: "Starts shortlined and keeps it alive: a stale liveness marker or a dead\n" +
			"PID triggers a restart, gated on preflight validation and capped\n" +
			"exponential backoff. Exits only on SIGINT/SIGTERM.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			notifier := notifications.NewService(cfg)
			sup := supervisor.New(cfg, notifier, supervisor.StartDaemonBinary(ctx.configPath), logger)
			return sup.Run(runCtx)
		},
	}
}
