package main

import (
	"video-converter/internal/logging"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:           "convert",
		Short:         "Convert videos to H.264/AAC MP4 with FFmpeg",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logging.Configure(logging.Options{
				Level:  logLevel,
				Output: cmd.ErrOrStderr(),
			})
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
