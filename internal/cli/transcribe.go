package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dndscribe/scribe/internal/jobs"
	"github.com/dndscribe/scribe/internal/progress"
)

func newTranscribeCmd(deps **Deps) *cobra.Command {
	var name string
	var skipRecap bool

	cmd := &cobra.Command{
		Use:   "transcribe <audio-file>",
		Short: "Transcribe a recording in the terminal",
		Long: "Run the full pipeline on one audio file and wait for it to finish.\n" +
			"Speaker naming is not interactive: configured default speakers are applied\n" +
			"and any remaining labels keep their raw diarization names.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := *deps
			audioPath := args[0]
			if _, err := os.Stat(audioPath); err != nil {
				return fmt.Errorf("audio file %s: %w", audioPath, err)
			}
			if name == "" {
				base := filepath.Base(audioPath)
				name = strings.TrimSuffix(base, filepath.Ext(base))
			}

			id, err := d.Manager.Submit(jobs.Params{
				SessionName: name,
				AudioPath:   audioPath,
				SkipRecap:   skipRecap,
				SkipNaming:  true,
			})
			if err != nil {
				return err
			}

			final, ok := waitForTerminal(d, id, 6*time.Hour, func(ev progress.Event) {
				switch ev.Type {
				case progress.EventProgress:
					fmt.Printf("[%3d%%] %s\n", ev.Percent, ev.Message)
				case progress.EventCompleted:
					fmt.Printf("[100%%] %s\n", ev.Message)
				}
			})
			if !ok {
				return fmt.Errorf("transcription did not finish")
			}
			if final.Type == progress.EventFailed {
				return fmt.Errorf("%s", final.Error)
			}

			view, err := d.Manager.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("Session saved: %s\n", d.Store.Dir(view.SessionID))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "session name (defaults to the file name)")
	cmd.Flags().BoolVar(&skipRecap, "skip-recap", false, "skip recap generation")

	return cmd
}
