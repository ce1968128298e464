package commands

import (
	"github.com/goliatone/go-noticast/adapters/gocommand"
	"github.com/goliatone/go-noticast/core"
	noticastquery "github.com/goliatone/go-noticast/query"
	sqlstore "github.com/goliatone/go-noticast/store/sql"
	"github.com/spf13/cobra"
)

func reportsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Inspect stored error reports and dispatch attempts",
	}
	cmd.AddCommand(reportsErrorsCmd(), reportsAttemptsCmd())
	return cmd
}

func reportsErrorsCmd() *cobra.Command {
	var (
		system string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "List recent error reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{})
			if err != nil {
				return err
			}
			defer rt.Close()
			reports, err := gocommand.Query[noticastquery.ListErrorReportsMessage, []sqlstore.ErrorReport](
				cmd.Context(),
				noticastquery.ListErrorReportsMessage{System: system, Limit: limit},
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd, reports)
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "filter by reporting system")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of reports")
	return cmd
}

func reportsAttemptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "attempts <dispatch-id>",
		Short: "List the publish attempts of one dispatch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{})
			if err != nil {
				return err
			}
			defer rt.Close()
			attempts, err := gocommand.Query[noticastquery.ListDispatchAttemptsMessage, []core.PublishAttempt](
				cmd.Context(),
				noticastquery.ListDispatchAttemptsMessage{DispatchID: args[0]},
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd, attempts)
		},
	}
}
