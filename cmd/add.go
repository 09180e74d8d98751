package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/bnema/senderwatch/internal/domain"
)

func newAddCmd(configPath *string) *cobra.Command {
	var fromFile string
	var channelID string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Submit a sender block and track it until it settles",
		Long:  "Reads a pasted sender block (email, password, backup codes, amounts) from stdin or --file, submits it to the dashboard, then runs discovery and burst tracking until the account reaches a final status.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readSubmission(cmd.InOrStdin(), fromFile)
			if err != nil {
				return err
			}

			sub := domain.ParseSubmission(raw)
			if !sub.Valid() {
				return errors.New("submission needs at least an email and a password")
			}

			app, err := wireApp(*configPath)
			if err != nil {
				return err
			}
			if channelID == "" {
				channelID = app.cfg.Discord.ChannelID
			}
			ctx := cmd.Context()

			result, err := app.gateway.AddAccount(ctx, sub)
			if err != nil {
				return fmt.Errorf("submit sender: %w", err)
			}
			app.logger.Info().Str("sender", sub.Email).Str("result", result).Msg("sender submitted")

			// The batch the cache holds predates this submission.
			app.store.Invalidate()

			if app.exportStore != nil {
				if err := app.exportStore.Enqueue(ctx, sub.Email, app.clock.Now()); err != nil {
					app.logger.Warn().Err(err).Msg("export enqueue failed")
				}
			}

			id, found, err := app.tracker.Discover(ctx, sub.Email)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintf(cmd.OutOrStdout(), "%s submitted but never appeared on the dashboard\n", sub.Email)
				return nil
			}

			track, err := app.tracker.Track(ctx, id, sub.Email, channelID)
			if err != nil {
				return err
			}

			switch {
			case track.Found && track.Registered:
				fmt.Fprintf(cmd.OutOrStdout(), "%s settled at %s (registered for monitoring)\n", sub.Email, track.FinalStatus)
			case track.Found:
				fmt.Fprintf(cmd.OutOrStdout(), "%s last seen at %s\n", sub.Email, track.FinalStatus)
			default:
				fmt.Fprintf(cmd.OutOrStdout(), "%s: no status observed before the attempt budget ran out\n", sub.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&fromFile, "file", "", "Read the sender block from a file instead of stdin")
	cmd.Flags().StringVar(&channelID, "channel", "", "Notification channel for this sender (default: configured channel)")

	return cmd
}

func readSubmission(stdin io.Reader, fromFile string) (string, error) {
	if fromFile != "" {
		data, err := os.ReadFile(fromFile)
		if err != nil {
			return "", fmt.Errorf("read submission file: %w", err)
		}
		return string(data), nil
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read submission from stdin: %w", err)
	}
	return string(data), nil
}
