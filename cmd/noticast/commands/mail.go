package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/goliatone/go-noticast/inbound"
	"github.com/spf13/cobra"
)

func mailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail [event.json]",
		Short: "Process a mail event read from a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			event, err := inbound.DecodeEvent(raw)
			if err != nil {
				return err
			}
			if event.Kind() != inbound.EventMail {
				return fmt.Errorf("noticast: input is a %s event, not mail", event.Kind())
			}

			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{dispatch: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.router.Route(cmd.Context(), event)
			if err != nil {
				return err
			}
			for _, message := range result.Mail {
				fmt.Fprintf(cmd.OutOrStdout(), "%s subject=%q skipped=%t reason=%s dispatched=%d\n",
					message.MessageID, message.Subject, message.Skipped, message.Reason, message.Dispatched())
				for _, target := range message.Targets {
					line := fmt.Sprintf("  %s %s", target.Target, target.Outcome)
					if target.Err != nil {
						line += " " + target.Err.Error()
					}
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
			}
			return nil
		},
	}
	return cmd
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}
