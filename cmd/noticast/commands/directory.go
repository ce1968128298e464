package commands

import (
	"fmt"

	"github.com/goliatone/go-noticast/adapters/gocommand"
	"github.com/goliatone/go-noticast/core"
	noticastquery "github.com/goliatone/go-noticast/query"
	"github.com/spf13/cobra"
)

func directoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Maintain devices and groups",
	}
	cmd.AddCommand(directoryGroupCmd(), directoryDeviceCmd(), directoryResolveCmd())
	return cmd
}

func directoryGroupCmd() *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "add-group <arn>",
		Short: "Create or relabel a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{})
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.stores.DirectoryStore().SaveGroup(cmd.Context(), args[0], label)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "display label")
	return cmd
}

func directoryDeviceCmd() *cobra.Command {
	var (
		label string
		group string
	)
	cmd := &cobra.Command{
		Use:   "add-device <arn>",
		Short: "Create a device or move it to another group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{})
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.stores.DirectoryStore().SaveDevice(cmd.Context(), args[0], group, label)
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "display label")
	cmd.Flags().StringVar(&group, "group", "", "group arn")
	return cmd
}

func directoryResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <identifier>",
		Short: "Show the devices an identifier resolves to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), settings, runtimeNeeds{})
			if err != nil {
				return err
			}
			defer rt.Close()
			target, err := gocommand.Query[noticastquery.ResolveTargetMessage, core.ResolvedTarget](
				cmd.Context(),
				noticastquery.ResolveTargetMessage{Identifier: args[0]},
			)
			if err != nil {
				return err
			}
			kind := "device"
			if target.IsGroup {
				kind = "group"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%d devices)\n", kind, len(target.Devices))
			for _, arn := range target.DeviceARNs() {
				fmt.Fprintln(cmd.OutOrStdout(), "  "+arn)
			}
			return nil
		},
	}
}
