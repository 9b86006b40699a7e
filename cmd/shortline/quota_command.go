package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"shortline/internal/store"
)

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "quota",
		Short: "Show external API budgets",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				resources, err := st.ListQuotaResources(cmd.Context())
				if err != nil {
					return err
				}
				if len(resources) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No quota resources seeded; start the daemon once")
					return nil
				}
				rows := make([][]string, 0, len(resources))
				for _, res := range resources {
					rows = append(rows, []string{
						res.APIName,
						strconv.Itoa(res.Limit),
						strconv.Itoa(res.Used),
						strconv.Itoa(res.Remaining),
						yesNo(res.IsExhausted),
						res.NextResetAt.Local().Format("2006-01-02 15:04"),
					})
				}
				out := renderTable(
					[]string{"Resource", "Limit", "Used", "Remaining", "Exhausted", "Resets"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}
