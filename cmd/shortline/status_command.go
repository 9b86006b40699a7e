package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"shortline/internal/deps"
	"shortline/internal/heartbeat"
	"shortline/internal/store"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon liveness, job counts, and dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			staleAfter := time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second
			marker, err := heartbeat.Read(cfg.Paths.DataDir)
			switch {
			case err != nil:
				fmt.Fprintln(out, "Daemon: not running (no liveness marker)")
			case !marker.IsFresh(time.Now(), staleAfter):
				fmt.Fprintf(out, "Daemon: stale (pid %d, last tick %s)\n",
					marker.PID, marker.UpdatedAt.Local().Format(time.RFC3339))
			default:
				fmt.Fprintf(out, "Daemon: running (pid %d, last tick %s)\n",
					marker.PID, marker.UpdatedAt.Local().Format(time.RFC3339))
			}
			fmt.Fprintln(out)

			if err := ctx.withStore(cmd.Context(), func(st *store.Store) error {
				stats, err := st.Stats(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(stats))
				for _, state := range store.AllStates() {
					if count, ok := stats[state]; ok {
						rows = append(rows, []string{string(state), strconv.Itoa(count)})
					}
				}
				if len(rows) == 0 {
					fmt.Fprintln(out, "No jobs")
					return nil
				}
				table := renderTable([]string{"State", "Jobs"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(out, table)
				return nil
			}); err != nil {
				return err
			}
			fmt.Fprintln(out)

			rows := make([][]string, 0, 3)
			for _, status := range deps.CheckBinaries(deps.Requirements()) {
				rows = append(rows, []string{
					status.Name,
					yesNo(status.Available),
					yesNo(status.Optional),
					status.Detail,
				})
			}
			table := renderTable(
				[]string{"Dependency", "Available", "Optional", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}
}
