package commands

import (
	"encoding/json"

	"github.com/goliatone/go-noticast/adapters/gocommand"
	noticastcmd "github.com/goliatone/go-noticast/command"
	"github.com/goliatone/go-noticast/core"
	"github.com/spf13/cobra"
)

func dispatchCmd() *cobra.Command {
	var (
		messageType string
		voiceID     string
		testing     bool
	)
	cmd := &cobra.Command{
		Use:   "dispatch <target> <message>",
		Short: "Synthesize a message and publish it to a device or group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{dispatch: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			envelope, err := gocommand.DispatchWithResult[noticastcmd.DispatchMessage, core.DispatchEnvelope](
				cmd.Context(),
				noticastcmd.DispatchMessage{Request: core.DispatchRequest{
					Target:   args[0],
					Message:  args[1],
					TextType: messageType,
					VoiceID:  voiceID,
					Testing:  testing,
					Stage:    rt.service.Config().Stage,
				}},
			)
			if err != nil {
				return err
			}
			return writeJSON(cmd, envelope)
		},
	}
	cmd.Flags().StringVar(&messageType, "type", "", "message type: text or ssml")
	cmd.Flags().StringVar(&voiceID, "voice", "", "voice id")
	cmd.Flags().BoolVar(&testing, "testing", false, "mark the request as a test")
	return cmd
}

func writeJSON(cmd *cobra.Command, value any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
