// Package cli implements the scribe command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/dndscribe/scribe/internal/config"
	"github.com/dndscribe/scribe/internal/logger"
)

// NewRootCmd builds the scribe root command. Configuration is loaded once in
// a PersistentPreRun so every subcommand sees the same wiring.
func NewRootCmd() *cobra.Command {
	var configFile string
	var deps *Deps

	rootCmd := &cobra.Command{
		Use:   "scribe",
		Short: "Transcribe tabletop RPG session recordings",
		Long: "Scribe turns D&D session recordings into speaker-attributed transcripts\n" +
			"with optional AI recaps and campaign wiki publishing.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			logger.Init(cfg.Logging)

			deps, err = BuildDeps(cfg)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config.yaml")

	rootCmd.AddCommand(newServeCmd(&deps))
	rootCmd.AddCommand(newTranscribeCmd(&deps))
	rootCmd.AddCommand(newPushCmd(&deps))
	rootCmd.AddCommand(newSessionsCmd(&deps))

	return rootCmd
}
