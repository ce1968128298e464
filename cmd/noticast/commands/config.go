package commands

import (
	"github.com/goliatone/go-noticast/config"
	"github.com/spf13/cobra"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the merged file and environment configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := config.NewFileLoader(configPath).LoadRaw(cmd.Context())
			if err != nil {
				return err
			}
			if stage != "" {
				raw["stage"] = stage
			}
			return config.WriteYAML(cmd.OutOrStdout(), raw)
		},
	}
}
