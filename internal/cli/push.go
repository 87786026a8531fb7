package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	apperr "github.com/dndscribe/scribe/internal/errors"
	"github.com/dndscribe/scribe/internal/resilience"
)

func newPushCmd(deps **Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "push <session-id>",
		Short: "Push a session to the campaign wiki",
		Long:  "Build the ingest payload for a saved session and deliver it to the wiki, retrying transient failures with backoff.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			if d.Pusher == nil {
				return fmt.Errorf("no wiki URL configured")
			}
			id := args[0]

			retryCfg := resilience.DefaultRetryConfig()
			retryCfg.RetryIf = func(err error) bool {
				appErr, ok := apperr.As(err)
				return ok && appErr.Retryable
			}

			result, err := resilience.Retry(cmd.Context(), retryCfg, func() (map[string]any, error) {
				return d.Pusher.Push(cmd.Context(), id)
			})
			if err != nil {
				return err
			}

			fmt.Printf("Session %s pushed to wiki\n", id)
			if url, ok := result["url"].(string); ok && url != "" {
				fmt.Printf("Wiki page: %s\n", url)
			}
			return nil
		},
	}
}
