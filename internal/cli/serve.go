package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dndscribe/scribe/internal/web"
)

func newServeCmd(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long:  "Serve the HTTP API for job submission, live progress, speaker naming, and session browsing.",
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			cfg := d.Config

			server := web.New(cfg.Server, web.App{
				Manager:       d.Manager,
				Store:         d.Store,
				Broadcaster:   d.Broadcaster,
				Recaps:        d.Recaps,
				Pusher:        d.Pusher,
				Vocabulary:    d.Vocabulary,
				RecordingsDir: cfg.Paths.RecordingsDir,
				Output:        cfg.Output,
			})

			ctx, stop := signal.NotifyContext(context.Background(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := server.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return server.Stop(context.Background())
		},
	}
}
