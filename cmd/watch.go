package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the continuous monitor and export workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := wireApp(*configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			group, ctx := errgroup.WithContext(ctx)
			group.Go(func() error { return app.monitor.Run(ctx) })

			if app.exportWorker != nil {
				group.Go(func() error { return app.exportWorker.RunPending(ctx) })
				group.Go(func() error { return app.exportWorker.RunRetry(ctx) })
			}

			if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			app.logger.Info().Msg("senderwatch stopped")
			return nil
		},
	}
}
