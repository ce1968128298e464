package commands

import (
	"fmt"
	"os"

	noticastmigrations "github.com/goliatone/go-noticast/migrations"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []noticastmigrations.Option
			if dir != "" {
				trees, err := noticastmigrations.Trees(os.DirFS(dir), ".")
				if err != nil {
					return err
				}
				opts = append(opts, noticastmigrations.WithTrees(trees...))
			}
			client, err := openDatabase(cmd.Context(), settings.App.Database, opts...)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := client.Migrate(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", settings.App.Database.Driver)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "extra migrations directory, laid out like the embedded set (postgres files at the root, sqlite files in sqlite/)")
	return cmd
}
