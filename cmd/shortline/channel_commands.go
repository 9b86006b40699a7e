package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shortline/internal/services/youtube"
	"shortline/internal/store"
)

func newChannelCommand(ctx *commandContext) *cobra.Command {
	channelCmd := &cobra.Command{
		Use:   "channel",
		Short: "Manage posting channels",
	}

	channelCmd.AddCommand(newChannelAddCommand(ctx))
	channelCmd.AddCommand(newChannelListCommand(ctx))
	channelCmd.AddCommand(newChannelTriggerCommand(ctx))
	channelCmd.AddCommand(newChannelPauseCommand(ctx))
	channelCmd.AddCommand(newChannelResumeCommand(ctx))
	channelCmd.AddCommand(newChannelAuthorizeCommand(ctx))

	return channelCmd
}

func newChannelAddCommand(ctx *commandContext) *cobra.Command {
	var theme, tone, style string
	var intervalHours int

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register a new channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("channel name is required")
			}
			if strings.TrimSpace(theme) == "" {
				return errors.New("--theme is required")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			interval := time.Duration(intervalHours) * time.Hour
			if intervalHours <= 0 {
				interval = time.Duration(cfg.Workflow.DefaultPostIntervalHrs) * time.Hour
			}

			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				channel, err := st.CreateChannel(cmd.Context(), store.NewChannelParams{
					Name:         name,
					Theme:        theme,
					Tone:         tone,
					Style:        style,
					PostInterval: interval,
					NextPostAt:   time.Now(),
				})
				if err != nil {
					return fmt.Errorf("create channel: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Channel %s created (id %d), posting every %s\n", channel.Name, channel.ID, channel.PostInterval)
				fmt.Fprintf(out, "Run `shortline channel authorize %s` before the first upload.\n", channel.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&theme, "theme", "", "Topic the channel posts about")
	cmd.Flags().StringVar(&tone, "tone", "", "Narration tone hint passed to the script generator")
	cmd.Flags().StringVar(&style, "style", "", "Visual style hint passed to the script generator")
	cmd.Flags().IntVar(&intervalHours, "interval-hours", 0, "Hours between posts (defaults from config)")
	return cmd
}

func newChannelListCommand(ctx *commandContext) *cobra.Command {
	var activeOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(cmd.Context(), func(st *store.Store) error {
				var (
					channels []*store.Channel
					err      error
				)
				if activeOnly {
					channels, err = st.ListActiveUnpausedChannels(cmd.Context())
				} else {
					channels, err = st.ListChannels(cmd.Context())
				}
				if err != nil {
					return err
				}
				if len(channels) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No channels configured")
					return nil
				}
				rows := make([][]string, 0, len(channels))
				for _, ch := range channels {
					rows = append(rows, []string{
						strconv.FormatInt(ch.ID, 10),
						ch.Name,
						ch.Theme,
						yesNo(ch.IsActive),
						string(ch.PausedReason),
						ch.NextPostAt.Local().Format("2006-01-02 15:04"),
					})
				}
				out := renderTable(
					[]string{"ID", "Name", "Theme", "Active", "Paused", "Next Post"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&activeOnly, "active", false, "Show only channels eligible for scheduling")
	return cmd
}

func newChannelTriggerCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <name>",
		Short: "Make a channel due immediately",
		Long:  "Pins the channel's next post time to now so the daemon schedules a job on its next tick.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamedChannel(ctx, cmd, args[0], func(st *store.Store, channel *store.Channel) error {
				if err := st.SetNextPostAt(cmd.Context(), channel.ID, time.Now()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Channel %s is now due\n", channel.Name)
				return nil
			})
		},
	}
}

func newChannelPauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <name>",
		Short: "Pause a channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamedChannel(ctx, cmd, args[0], func(st *store.Store, channel *store.Channel) error {
				if err := st.Pause(cmd.Context(), channel.ID, store.PauseManual); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Channel %s paused\n", channel.Name)
				return nil
			})
		},
	}
}

func newChannelResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <name>",
		Short: "Resume a paused channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withNamedChannel(ctx, cmd, args[0], func(st *store.Store, channel *store.Channel) error {
				if err := st.Resume(cmd.Context(), channel.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Channel %s resumed\n", channel.Name)
				return nil
			})
		},
	}
}

func newChannelAuthorizeCommand(ctx *commandContext) *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "authorize <name>",
		Short: "Authorize YouTube uploads for a channel",
		Long: "Without --code, prints the OAuth consent URL. Visit it, approve access,\n" +
			"then rerun with --code to store the channel's upload token.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return withNamedChannel(ctx, cmd, args[0], func(st *store.Store, channel *store.Channel) error {
				out := cmd.OutOrStdout()
				if strings.TrimSpace(code) == "" {
					url, err := youtube.AuthURL(cfg.YouTube.ClientSecretsPath)
					if err != nil {
						return err
					}
					fmt.Fprintln(out, "Open this URL in a browser and approve access:")
					fmt.Fprintln(out, url)
					fmt.Fprintf(out, "Then run: shortline channel authorize %s --code <code>\n", channel.Name)
					return nil
				}
				if err := youtube.ExchangeCode(cmd.Context(), cfg.YouTube.ClientSecretsPath, cfg.YouTube.TokenDir, channel.Name, code); err != nil {
					return err
				}
				fmt.Fprintf(out, "Token stored for channel %s\n", channel.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the consent page")
	return cmd
}

func withNamedChannel(ctx *commandContext, cmd *cobra.Command, name string, fn func(*store.Store, *store.Channel) error) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("channel name is required")
	}
	return ctx.withStore(cmd.Context(), func(st *store.Store) error {
		channel, err := st.GetChannelByName(cmd.Context(), trimmed)
		if err != nil {
			return err
		}
		if channel == nil {
			return fmt.Errorf("channel %q not found", trimmed)
		}
		return fn(st, channel)
	})
}
