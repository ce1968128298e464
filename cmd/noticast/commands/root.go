package commands

import (
	"context"

	"github.com/goliatone/go-noticast/config"
	"github.com/spf13/cobra"
)

var (
	configPath string
	stage      string
	settings   config.Settings
)

func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "noticast",
		Short:         "Speak notifications on smart speakers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(cmd.Context(), configPath)
			if err != nil {
				return err
			}
			if stage != "" {
				loaded.Service.Stage = stage
			}
			settings = loaded
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&stage, "stage", "", "execution stage (overrides config)")

	root.AddCommand(serveCmd(), dispatchCmd(), mailCmd(), migrateCmd(), directoryCmd(), reportsCmd(), configCmd())
	return root
}
